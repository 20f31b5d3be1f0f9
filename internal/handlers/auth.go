package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/meowecho-tech/vote/internal/models"
	"github.com/meowecho-tech/vote/internal/security"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name" binding:"required"`
}

func (h HandlerSet) RegisterUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if _, err := h.store.CreateUser(req.Email, req.Password, req.FullName, models.RoleVoter); err != nil {
		h.fail(c, err)
		return
	}

	ok(c, http.StatusCreated)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	code, err := h.store.StartLogin(req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.otpSink(req.Email, code)

	respond(c, http.StatusOK, gin.H{"otp_required": true})
}

type verifyOTPRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (h HandlerSet) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.store.VerifyOTP(req.Email, req.Code)
	if err != nil {
		h.fail(c, err)
		return
	}

	refresh, err := h.store.IssueRefreshToken(user.ID, h.security.JWTRefreshTTL)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.sendTokens(c, user, refresh)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Refresh rotates the refresh token; the presented one stops working.
func (h HandlerSet) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, next, err := h.store.RotateRefreshToken(req.RefreshToken, h.security.JWTRefreshTTL)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.sendTokens(c, user, next)
}

func (h HandlerSet) sendTokens(c *gin.Context, user models.User, refresh string) {
	access, err := security.GenerateAccessToken(h.security.JWTAccessSecret, user.ID, user.Email, user.Role, h.security.JWTAccessTTL)
	if err != nil {
		h.fail(c, err)
		return
	}

	respond(c, http.StatusOK, tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
	})
}
