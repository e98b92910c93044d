package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Saireddy1599/WatchTogether/internal/identity"
	"github.com/Saireddy1599/WatchTogether/internal/queue"
	"github.com/Saireddy1599/WatchTogether/internal/repository"
	"github.com/Saireddy1599/WatchTogether/internal/service"
	"github.com/Saireddy1599/WatchTogether/internal/utils"
)

// AuthHandler bundles dependencies for the token exchange endpoints.
type AuthHandler struct {
	JWTSecret string
	Users     repository.UserStore
	// Verifier is nil when no identity provider is configured.
	Verifier identity.Verifier
	Audit    service.Publisher
	Log      *slog.Logger
}

func NewAuthHandler(secret string, users repository.UserStore, verifier identity.Verifier, audit service.Publisher, log *slog.Logger) *AuthHandler {
	return &AuthHandler{JWTSecret: secret, Users: users, Verifier: verifier, Audit: audit, Log: log}
}

// ----- DTOs -----

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type firebaseLoginReq struct {
	IDToken string `json:"idToken"`
}

// Login exchanges a username/password pair for a session token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username and password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid credentials"})
		}
		h.Log.Error("user lookup failed", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid credentials"})
	}

	tok, err := utils.NewSessionToken(h.JWTSecret, u.Username, utils.RoleUser, "")
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	h.audit(c, u.Username, "password")
	return c.JSON(http.StatusOK, tok)
}

// FirebaseLogin exchanges an identity provider ID token for a session token
// keyed by the verified uid.
func (h *AuthHandler) FirebaseLogin(c echo.Context) error {
	var req firebaseLoginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.IDToken == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "idToken required"})
	}
	if h.Verifier == nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Firebase Admin not configured on server"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Verifier.Verify(ctx, req.IDToken)
	if err != nil {
		h.Log.Info("firebase token rejected", "err", err)
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid Firebase ID token"})
	}

	tok, err := utils.NewSessionToken(h.JWTSecret, id.UID, utils.RoleFirebase, id.Email)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	h.audit(c, id.UID, "firebase")
	return c.JSON(http.StatusOK, tok)
}

func (h *AuthHandler) audit(c echo.Context, subject, method string) {
	service.Emit(c.Request().Context(), h.Audit, h.Log, queue.AuditEvent{
		Type:     queue.EventTokenIssued,
		Subject:  subject,
		Method:   method,
		RemoteIP: c.RealIP(),
	})
}
