package handler

import (
    "context"       // provides context with cancellation for DB calls
    "errors"        // errors.Is for repository sentinels
    "net/http"      // HTTP status codes and cookies
    "strings"       // string manipulation utilities
    "time"          // timeouts and PIN expiry

    "github.com/labstack/echo/v4" // Echo framework for HTTP routing
    "go.uber.org/zap"

    "github.com/iliyamo/stuffworth/internal/config"     // app configuration
    "github.com/iliyamo/stuffworth/internal/middleware" // session cookie and claims
    "github.com/iliyamo/stuffworth/internal/model"
    "github.com/iliyamo/stuffworth/internal/queue"      // reset PIN mail events
    "github.com/iliyamo/stuffworth/internal/repository" // repository sentinels
    "github.com/iliyamo/stuffworth/internal/utils"      // hashing, PINs, token issuing
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  UserStore
	Pins   PinStore
	Events queue.Publisher
	Log    *zap.Logger
}

func NewAuthHandler(cfg config.Config, u UserStore, p PinStore, ev queue.Publisher, log *zap.Logger) *AuthHandler {
	if ev == nil {
		ev = queue.Discard{}
	}
	return &AuthHandler{Cfg: cfg, Users: u, Pins: p, Events: ev, Log: log}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type forgotReq struct {
	Email string `json:"email"`
}
type verifyPinReq struct {
	Email string `json:"email"`
	Pin   string `json:"pin"`
}
type resetPasswordReq struct {
	Email       string `json:"email"`
	Pin         string `json:"pin"`
	NewPassword string `json:"newPassword"`
}

type authResp struct {
	Success bool           `json:"success"`
	User    model.UserView `json:"user"`
	Token   string         `json:"token"`
	Expires time.Time      `json:"expires"`
}

// Register: create a free USER account and sign it in immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = repository.NormalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Name == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email, name and password are required"})
	}
	if err := utils.ValidatePassword(req.Password); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.Create(ctx, req.Email, req.Name, req.Password, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		h.Log.Error("register: create user", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}
	return h.signIn(c, http.StatusCreated, u)
}

// Login: verify credentials and issue a session token plus cookie.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = repository.NormalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		h.Log.Error("login: get user", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	return h.signIn(c, http.StatusOK, u)
}

// Logout clears the session cookie.  Tokens are stateless, so a copied
// Bearer token stays valid until it expires.
func (h *AuthHandler) Logout(c echo.Context) error {
	ck := h.cookie("", -1)
	ck.Expires = time.Unix(0, 0)
	c.SetCookie(ck)
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// Session returns the user carried by the session token.
func (h *AuthHandler) Session(c echo.Context) error {
	claims, ok := middleware.Session(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	uid, _ := claims.UserID()
	return c.JSON(http.StatusOK, echo.Map{
		"user":    model.UserView{ID: uid, Email: claims.Email, Name: claims.Name, Plan: claims.Plan, Role: claims.Role},
		"expires": claims.ExpiresAt.Time,
	})
}

// ForgotPassword issues a reset PIN for known users and queues the mail.  The
// response is identical whether or not the email exists.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = repository.NormalizeEmail(req.Email)
	if req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	h.issueResetPin(ctx, req.Email)
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// issueResetPin stores a fresh PIN for a known email and publishes the mail
// event.  Failures are logged only.
func (h *AuthHandler) issueResetPin(ctx context.Context, email string) {
	u, err := h.Users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			h.Log.Error("forgot-password: get user", zap.Error(err))
		}
		return
	}
	pin, err := utils.NewResetPin()
	if err != nil {
		h.Log.Error("forgot-password: generate pin", zap.Error(err))
		return
	}
	now := time.Now().UTC()
	exp := now.Add(h.Cfg.ResetPinTTL)
	if err := h.Pins.Store(ctx, u.Email, utils.HashPin(pin), exp); err != nil {
		h.Log.Error("forgot-password: store pin", zap.Error(err))
		return
	}
	ev := queue.PasswordResetRequested{
		Email:       u.Email,
		Name:        u.Name,
		Pin:         pin,
		ExpiresAt:   exp.Format(time.RFC3339),
		RequestedAt: now.Format(time.RFC3339),
	}
	if err := h.Events.PublishPasswordReset(ctx, ev); err != nil {
		h.Log.Warn("forgot-password: publish reset mail", zap.String("email", u.Email), zap.Error(err))
	}
}

// VerifyResetPin checks a PIN without consuming it or touching the password.
// Wrong guesses still count against the PIN's attempt limit.
func (h *AuthHandler) VerifyResetPin(c echo.Context) error {
	var req verifyPinReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = repository.NormalizeEmail(req.Email)
	req.Pin = strings.TrimSpace(req.Pin)
	if req.Email == "" || req.Pin == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and pin are required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	valid, err := h.Pins.VerifyResetToken(ctx, req.Email, utils.HashPin(req.Pin))
	if err != nil {
		h.Log.Error("verify-reset-pin", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	if !valid {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired PIN"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// ResetPassword sets a new password.  The PIN is consumed before the
// password changes, so a PIN can reset the password at most once.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = repository.NormalizeEmail(req.Email)
	req.Pin = strings.TrimSpace(req.Pin)
	if req.Email == "" || req.Pin == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email, pin and newPassword are required"})
	}
	if err := utils.ValidatePassword(req.NewPassword); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	hash, err := utils.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
	if err != nil {
		h.Log.Error("reset-password: hash", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	ok, err := h.Pins.ConsumeResetToken(ctx, req.Email, utils.HashPin(req.Pin))
	if err != nil {
		h.Log.Error("reset-password: consume pin", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired PIN"})
	}
	if err := h.Users.UpdatePassword(ctx, req.Email, hash); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired PIN"})
		}
		h.Log.Error("reset-password: update", zap.String("email", req.Email), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// signIn issues a session token for u, sets the cookie and writes the body.
func (h *AuthHandler) signIn(c echo.Context, status int, u model.User) error {
	tok, err := utils.NewSessionToken(h.Cfg.SessionSecret, utils.SessionUser{
		ID: u.ID, Email: u.Email, Name: u.Name, Plan: u.Plan, Role: u.Role,
	}, h.Cfg.SessionTTL)
	if err != nil {
		h.Log.Error("issue session token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue session failed"})
	}
	c.SetCookie(h.cookie(tok.Token, int(time.Until(tok.Exp).Seconds())))
	return c.JSON(status, authResp{Success: true, User: u.View(), Token: tok.Token, Expires: tok.Exp})
}

func (h *AuthHandler) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   strings.HasPrefix(h.Cfg.BaseURL, "https://"),
		SameSite: http.SameSiteLaxMode,
	}
}
