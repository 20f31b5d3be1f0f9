package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/meowecho-tech/vote/internal/apperr"
	"github.com/meowecho-tech/vote/internal/config"
	"github.com/meowecho-tech/vote/internal/devstore"
	"github.com/meowecho-tech/vote/internal/guard"
	"github.com/meowecho-tech/vote/internal/lifecycle"
	"github.com/meowecho-tech/vote/internal/middleware"
	"github.com/meowecho-tech/vote/internal/models"
	"github.com/meowecho-tech/vote/internal/voterroll"
)

// OTPSink receives one-time codes. The contract server has no mail channel.
type OTPSink func(email, code string)

type HandlerSet struct {
	log         zerolog.Logger
	environment string
	security    config.SecurityConfig
	store       *devstore.Store
	reconciler  *voterroll.Reconciler
	otpSink     OTPSink
}

type Option func(*HandlerSet)

func WithOTPSink(sink OTPSink) Option {
	return func(h *HandlerSet) { h.otpSink = sink }
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, store *devstore.Store, opts ...Option) HandlerSet {
	h := HandlerSet{
		log:         log,
		environment: cfg.Environment,
		security:    cfg.DevServer.Security,
		store:       store,
		reconciler:  voterroll.NewReconciler(store, store, log),
	}
	h.otpSink = h.logOTP
	for _, opt := range opts {
		opt(&h)
	}
	return h
}

func (h HandlerSet) logOTP(email, code string) {
	if h.environment == "production" {
		h.log.Info().Str("email", email).Msg("one-time code issued")
		return
	}
	h.log.Info().Str("email", email).Str("otp", code).Msg("one-time code issued")
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/health", h.Health)

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/register", h.RegisterUser)
		auth.POST("/login", h.Login)
		auth.POST("/verify-otp", h.VerifyOTP)
		auth.POST("/refresh", h.Refresh)
	}

	protected := v1.Group("")
	protected.Use(middleware.Auth(h.security.JWTAccessSecret, h.store))

	read := middleware.RequireRoles(guard.RolesFor(guard.ActionViewElections)...)
	manage := middleware.RequireRoles(guard.RolesFor(guard.ActionManageElections)...)
	vote := middleware.RequireRoles(guard.RolesFor(guard.ActionVote)...)

	protected.GET("/organizations", read, h.ListOrganizations)
	protected.POST("/organizations", manage, h.CreateOrganization)

	protected.GET("/elections", read, h.ListElections)
	protected.POST("/elections", manage, h.CreateElection)
	protected.GET("/elections/:id", read, h.GetElection)
	protected.PATCH("/elections/:id", manage, h.UpdateElection)
	protected.PATCH("/elections/:id/publish", manage, h.PublishElection)
	protected.PATCH("/elections/:id/close", manage, h.CloseElection)
	protected.GET("/elections/:id/results", read, h.ElectionResults)

	protected.GET("/elections/:id/contests", read, h.ListContests)
	protected.POST("/elections/:id/contests", manage, h.CreateContest)
	protected.PATCH("/contests/:id", manage, h.UpdateContest)
	protected.DELETE("/contests/:id", manage, h.DeleteContest)

	protected.GET("/contests/:id/candidates", read, h.ListCandidates)
	protected.POST("/contests/:id/candidates", manage, h.CreateCandidate)
	protected.PATCH("/contests/:id/candidates/:candidateId", manage, h.UpdateCandidate)
	protected.DELETE("/contests/:id/candidates/:candidateId", manage, h.DeleteCandidate)

	protected.GET("/contests/:id/voter-rolls", read, h.ListVoters)
	protected.POST("/contests/:id/voter-rolls", manage, h.AddVoter)
	protected.POST("/contests/:id/voter-rolls/import", manage, h.ImportVoters)
	protected.DELETE("/contests/:id/voter-rolls/:userId", manage, h.RemoveVoter)

	protected.GET("/contests/:id/results", read, h.ContestResults)
	protected.GET("/contests/:id/ballot", h.Ballot)
	protected.POST("/contests/:id/vote", vote, h.CastVote)
	protected.GET("/me/contests/votable", h.Votable)
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"data": data})
}

func ok(c *gin.Context, status int) {
	respond(c, status, gin.H{"ok": true})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_request"})
}

// fail writes a classified error. Draft-gate refusals go out as 409 with the
// not_editable code; everything else follows its kind.
func (h HandlerSet) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, lifecycle.ErrNotEditable):
		status = http.StatusConflict
	default:
		switch apperr.KindOf(err) {
		case apperr.KindAuthentication:
			status = http.StatusUnauthorized
		case apperr.KindAuthorization:
			status = http.StatusForbidden
		case apperr.KindValidation:
			status = http.StatusBadRequest
		case apperr.KindNotFound:
			status = http.StatusNotFound
		case apperr.KindConflict:
			status = http.StatusConflict
		case apperr.KindRateLimited:
			status = http.StatusTooManyRequests
		}
	}

	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, gin.H{"error": "internal server error", "code": "internal_error"})
		return
	}

	body := gin.H{"error": err.Error()}
	if code := apperr.CodeOf(err); code != "" {
		body["code"] = code
	}
	c.JSON(status, body)
}

func pageRequest(c *gin.Context) models.PageRequest {
	page, _ := strconv.Atoi(c.Query("page"))
	perPage, _ := strconv.Atoi(c.Query("per_page"))
	return models.PageRequest{Page: page, PerPage: perPage}
}

func currentUser(c *gin.Context) models.User {
	user, _ := middleware.CurrentUser(c)
	return user
}
