package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/meowecho-tech/vote/internal/models"
	"github.com/meowecho-tech/vote/internal/security"
)

const testSecret = "middleware-secret"

type userMap map[string]models.User

func (m userMap) UserByID(id string) (models.User, error) {
	user, ok := m[id]
	if !ok {
		return models.User{}, errors.New("not found")
	}
	return user, nil
}

func newRouter(users userMap, roles ...models.Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(RequestID(), Recovery(zerolog.Nop()), CORS([]string{"https://console.example"}))
	engine.GET("/panic", func(c *gin.Context) { panic("boom") })
	protected := engine.Group("/", Auth(testSecret, users), RequireRoles(roles...))
	protected.GET("/secret", func(c *gin.Context) {
		user, _ := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"user": user.ID})
	})
	return engine
}

func do(t *testing.T, engine *gin.Engine, method, path, bearer string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestAuthAndRoles(t *testing.T) {
	users := userMap{
		"u-admin": {ID: "u-admin", Role: models.RoleAdmin},
		"u-voter": {ID: "u-voter", Role: models.RoleVoter},
	}
	engine := newRouter(users, models.RoleAdmin)

	rec := do(t, engine, http.MethodGet, "/secret", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "missing_token")

	rec = do(t, engine, http.MethodGet, "/secret", "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// The stored role wins over the token's claim.
	forged, err := security.GenerateAccessToken(testSecret, "u-voter", "", models.RoleAdmin, time.Minute)
	require.NoError(t, err)
	rec = do(t, engine, http.MethodGet, "/secret", forged, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	admin, err := security.GenerateAccessToken(testSecret, "u-admin", "", models.RoleAdmin, time.Minute)
	require.NoError(t, err)
	rec = do(t, engine, http.MethodGet, "/secret", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "u-admin")
	require.NotEmpty(t, rec.Header().Get(requestIDHeader))

	gone, err := security.GenerateAccessToken(testSecret, "u-deleted", "", models.RoleAdmin, time.Minute)
	require.NoError(t, err)
	rec = do(t, engine, http.MethodGet, "/secret", gone, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCORSAndRequestID(t *testing.T) {
	engine := newRouter(userMap{})

	rec := do(t, engine, http.MethodOptions, "/secret", "", map[string]string{"Origin": "https://console.example"})
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://console.example", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = do(t, engine, http.MethodOptions, "/secret", "", map[string]string{"Origin": "https://evil.example"})
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, engine, http.MethodGet, "/secret", "", map[string]string{requestIDHeader: "req-42"})
	require.Equal(t, "req-42", rec.Header().Get(requestIDHeader))
}

func TestRecovery(t *testing.T) {
	engine := newRouter(userMap{})
	rec := do(t, engine, http.MethodGet, "/panic", "", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "internal_error")
}
