package service

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/meowecho-tech/vote/internal/apperr"
	"github.com/meowecho-tech/vote/internal/models"
	"github.com/meowecho-tech/vote/internal/session"
)

var (
	ErrInvalidInput    = apperr.New(apperr.KindValidation, "invalid_input", "invalid input")
	ErrMissingTokens   = apperr.New(apperr.KindServer, "missing_tokens", "verification response carried no tokens")
	ErrCredentialsReqd = apperr.New(apperr.KindValidation, "credentials_required", "email and password required")
)

type AuthService struct {
	api     API
	session *session.Session
	log     zerolog.Logger
}

func NewAuthService(api API, sess *session.Session, log zerolog.Logger) *AuthService {
	return &AuthService{api: api, session: sess, log: log}
}

type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) error {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	input.FullName = strings.TrimSpace(input.FullName)
	if input.Email == "" || input.Password == "" {
		return ErrCredentialsReqd
	}
	return s.api.Do(ctx, http.MethodPost, "/auth/register", input, &okResponse{})
}

type loginResponse struct {
	OTPRequired bool `json:"otp_required"`
}

// Login checks the password. A true result means a one-time code was sent
// and VerifyOTP must follow.
func (s *AuthService) Login(ctx context.Context, email, password string) (bool, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return false, ErrCredentialsReqd
	}
	var out loginResponse
	if err := s.api.Do(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &out); err != nil {
		return false, err
	}
	return out.OTPRequired, nil
}

// VerifyOTP exchanges the one-time code for tokens and starts the session.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) (Identity, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return Identity{}, ErrInvalidInput
	}
	var tokens session.Tokens
	if err := s.api.Do(ctx, http.MethodPost, "/auth/verify-otp", map[string]string{
		"email": email,
		"code":  code,
	}, &tokens); err != nil {
		return Identity{}, err
	}
	if tokens.AccessToken == "" {
		return Identity{}, ErrMissingTokens
	}
	if err := s.session.Persist(ctx, tokens.AccessToken, tokens.RefreshToken); err != nil {
		return Identity{}, err
	}
	id := s.WhoAmI()
	s.log.Info().Str("role", string(id.Role)).Msg("session started")
	return id, nil
}

func (s *AuthService) Logout(ctx context.Context) error {
	return s.session.Clear(ctx)
}

// Identity is what the console believes about the caller. It is advisory.
type Identity struct {
	Authenticated bool
	Role          models.Role
	KnownRole     bool
}

func (s *AuthService) WhoAmI() Identity {
	role, ok := s.session.Role()
	return Identity{
		Authenticated: s.session.Authenticated(),
		Role:          role,
		KnownRole:     ok,
	}
}
