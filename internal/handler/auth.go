package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/iliyamo/cms-backend/internal/auth"
	"github.com/iliyamo/cms-backend/internal/metrics"
	"github.com/iliyamo/cms-backend/internal/model"
	"github.com/iliyamo/cms-backend/internal/repository"
)

const (
	accessCookie       = "access_token"
	accessCookieLegacy = "accessToken"
	refreshCookie      = "refresh_token"

	requestTimeout = 5 * time.Second
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Svc        *auth.Service
	Production bool
	Log        *slog.Logger
	Metrics    *metrics.Auth // optional
}

func NewAuthHandler(svc *auth.Service, production bool, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{Svc: svc, Production: production, Log: log}
}

// ----- DTOs -----

type credentialsReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type googleReq struct {
	IDToken string `json:"id_token"`
}

type userPart struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Role          string `json:"role"`
}
type sessionResp struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	User        userPart `json:"user"`
}
type refreshResp struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Token: password login.
func (h *AuthHandler) Token(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid_body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	sess, err := h.Svc.Login(ctx, req.Email, req.Password)
	h.observe("token", err)
	if err != nil {
		return h.fail(c, err)
	}
	return h.session(c, http.StatusOK, sess)
}

// Signup: create a password account and sign it in.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid_body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	sess, err := h.Svc.Signup(ctx, req.Email, req.Password)
	h.observe("signup", err)
	if err != nil {
		return h.fail(c, err)
	}
	return h.session(c, http.StatusCreated, sess)
}

// Google: federated login with a Google ID token.
func (h *AuthHandler) Google(c echo.Context) error {
	var req googleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid_body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	sess, err := h.Svc.LoginGoogle(ctx, req.IDToken)
	h.observe("google", err)
	if err != nil {
		return h.fail(c, err)
	}
	return h.session(c, http.StatusOK, sess)
}

// Refresh: rotate the refresh cookie and return a new access token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	ck, err := c.Cookie(refreshCookie)
	if err != nil || ck.Value == "" {
		h.observe("refresh", auth.ErrNoRefresh)
		return h.fail(c, auth.ErrNoRefresh)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	pair, err := h.Svc.Refresh(ctx, ck.Value)
	h.observe("refresh", err)
	if err != nil {
		return h.fail(c, err)
	}
	h.setSessionCookies(c, pair)
	return c.JSON(http.StatusOK, refreshResp{AccessToken: pair.AccessToken, TokenType: "bearer"})
}

// Logout: revoke the refresh cookie's token and clear cookies.  Always 204.
func (h *AuthHandler) Logout(c echo.Context) error {
	if ck, err := c.Cookie(refreshCookie); err == nil && ck.Value != "" {
		ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
		defer cancel()
		h.Svc.Logout(ctx, ck.Value)
	}
	h.observe("logout", nil)
	for _, name := range []string{accessCookie, accessCookieLegacy, refreshCookie} {
		c.SetCookie(h.cookie(name, "", -1))
	}
	return c.NoContent(http.StatusNoContent)
}

// Me: the authenticated account, as seen by the user directory.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, _ := c.Get("user_id").(string)
	role, _ := c.Get("role").(string)
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Svc.Users().FindUserByID(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return h.fail(c, auth.ErrInvalidUser)
	}
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, toUserPart(u, model.Role(role)))
}

func (h *AuthHandler) session(c echo.Context, status int, sess auth.Session) error {
	h.setSessionCookies(c, sess.Tokens)
	return c.JSON(status, sessionResp{
		AccessToken: sess.Tokens.AccessToken,
		TokenType:   "bearer",
		User:        toUserPart(sess.User, sess.Role),
	})
}

func toUserPart(u *model.User, role model.Role) userPart {
	return userPart{ID: u.ID, Email: u.Email, EmailVerified: u.EmailVerified, Role: string(role)}
}

func (h *AuthHandler) setSessionCookies(c echo.Context, pair auth.TokenPair) {
	accessAge := int(auth.AccessTTL / time.Second)
	c.SetCookie(h.cookie(accessCookie, pair.AccessToken, accessAge))
	c.SetCookie(h.cookie(accessCookieLegacy, pair.AccessToken, accessAge))
	c.SetCookie(h.cookie(refreshCookie, pair.RefreshToken, int(auth.RefreshTTL/time.Second)))
}

// cookie builds a session cookie.  Cookies are always Secure, which
// SameSite=None requires.  Production uses SameSite=Lax; elsewhere
// SameSite=None lets a local admin UI on another origin send them.
func (h *AuthHandler) cookie(name, value string, maxAge int) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
	if h.Production {
		ck.SameSite = http.SameSiteLaxMode
	}
	return ck
}

// observe counts one endpoint call under its error code, or "ok".
func (h *AuthHandler) observe(endpoint string, err error) {
	outcome := "ok"
	if err != nil {
		if outcome = auth.Code(err); outcome == "" {
			outcome = "internal_error"
		}
	}
	h.Metrics.Request(endpoint, outcome)
}

// fail maps rejections to their status and logs everything else as a
// server fault.
func (h *AuthHandler) fail(c echo.Context, err error) error {
	var ae *auth.AuthError
	if errors.As(err, &ae) {
		status := http.StatusUnauthorized
		switch ae.Code {
		case auth.ErrEmailTaken.Code:
			status = http.StatusConflict
		case auth.ErrInvalidInput.Code:
			status = http.StatusBadRequest
		}
		return c.JSON(status, echo.Map{"message": ae.Code})
	}
	h.Log.Error("auth request failed", "method", c.Request().Method, "path", c.Path(), "err", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal_error"})
}
