package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"learnstream/server/internal/auth"
	"learnstream/server/internal/model"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type userView struct {
	ID      string         `json:"id"`
	Email   string         `json:"email"`
	Role    model.UserRole `json:"role"`
	Status  string         `json:"status,omitempty"`
	IsAdmin bool           `json:"is_admin"`
}

func newUserView(u model.User) userView {
	return userView{ID: u.ID, Email: u.Email, Role: u.Role, Status: u.Status, IsAdmin: u.Role == model.RoleAdmin}
}

// sessionView carries a token pair; User is only set on login.
type sessionView struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresInSec int64     `json:"expires_in_sec"`
	User         *userView `json:"user,omitempty"`
}

func (s *Server) login(c *gin.Context) {
	if !requireJSON(c) {
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid login payload", false, nil)
		return
	}
	user, tokens, err := s.auth.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			writeError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", false, nil)
			return
		}
		s.log.Warn("login_rejected", "trace_id", traceIDFromContext(c), "error", err.Error())
		writeAuthError(c, err)
		return
	}
	view := newUserView(user)
	writeData(c, http.StatusOK, sessionView{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresInSec: tokens.ExpiresInSec,
		User:         &view,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (s *Server) refresh(c *gin.Context) {
	if !requireJSON(c) {
		return
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "refresh_token is required", false, nil)
		return
	}
	tokens, err := s.auth.Refresh(req.RefreshToken)
	if err != nil {
		writeAuthError(c, err)
		return
	}
	writeData(c, http.StatusOK, sessionView{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresInSec: tokens.ExpiresInSec,
	})
}

func (s *Server) logout(c *gin.Context) {
	if !requireJSON(c) {
		return
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "refresh_token is required", false, nil)
		return
	}
	if err := s.auth.Logout(req.RefreshToken); err != nil {
		writeAuthError(c, err)
		return
	}
	writeData(c, http.StatusOK, gin.H{"ok": true})
}

// me re-reads the account so a suspension takes effect before the access
// token expires.
func (s *Server) me(c *gin.Context) {
	user, err := s.users.GetUserByID(userIDFromContext(c))
	if err != nil {
		writeAuthError(c, err)
		return
	}
	if user.Status != "" && user.Status != "active" {
		writeAuthError(c, auth.ErrUserInactive)
		return
	}
	writeData(c, http.StatusOK, newUserView(user))
}
