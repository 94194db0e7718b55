package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/service"
	"github.com/iliyamo/event-ticketing/internal/utils"
)

// AuthHandler bundles dependencies for auth and self-service endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Users    *repository.UserRepo
	Tokens   *repository.TokenRepo
	Roles    *repository.RoleRepo
	Profiles *service.UserService
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo, r *repository.RoleRepo, p *service.UserService) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Roles: r, Profiles: p}
}

// ----- DTOs -----

type registerReq struct {
	Email          string  `json:"email" validate:"required,email"`
	Username       string  `json:"username" validate:"required,min=3,max=150"`
	Password       string  `json:"password" validate:"required"`
	FirstName      string  `json:"first_name" validate:"required"`
	LastName       string  `json:"last_name" validate:"required"`
	Phone          string  `json:"phone" validate:"omitempty,max=30"`
	BirthDate      string  `json:"birth_date"`
	Document       string  `json:"document" validate:"omitempty,max=30"`
	Country        string  `json:"country"`
	CityID         *uint64 `json:"city_id"`
	CityText       string  `json:"city_text"`
	DepartmentText string  `json:"department_text"`
}

type loginReq struct {
	Login    string `json:"login"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password" validate:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type passwordReq struct {
	Current string `json:"current_password" validate:"required"`
	New     string `json:"new_password" validate:"required"`
}

type profileReq struct {
	Email          *string `json:"email" validate:"omitempty,email"`
	FirstName      *string `json:"first_name"`
	LastName       *string `json:"last_name"`
	Phone          *string `json:"phone"`
	BirthDate      *string `json:"birth_date"`
	Document       *string `json:"document"`
	Country        *string `json:"country"`
	CityID         *uint64 `json:"city_id"`
	CityText       *string `json:"city_text"`
	DepartmentText *string `json:"department_text"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type authResp struct {
	User    model.User `json:"user"`
	Access  tokenPart  `json:"access"`
	Refresh tokenPart  `json:"refresh"`
}

func timeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

// Register creates a Participante account and returns a token pair.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}
	if err := utils.CheckPasswordStrength(req.Password); err != nil {
		return writeError(c, fmt.Errorf("%w: %s", service.ErrWeakPassword, err))
	}
	birth, err := parseDate("birth_date", req.BirthDate)
	if err != nil {
		return writeError(c, err)
	}

	ctx, cancel := timeout(c)
	defer cancel()

	uid, err := h.Users.Create(ctx, repository.NewUser{
		Email:          req.Email,
		Username:       req.Username,
		Password:       req.Password,
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		Phone:          req.Phone,
		BirthDate:      birth,
		Document:       req.Document,
		Country:        req.Country,
		CityID:         req.CityID,
		CityText:       req.CityText,
		DepartmentText: req.DepartmentText,
		Roles:          []string{model.RoleParticipant},
	}, h.Cfg.BcryptCost)
	if err != nil {
		return writeError(c, err)
	}
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return writeError(c, err)
	}
	return h.issue(c, ctx, http.StatusCreated, u)
}

// Login accepts an email or a username together with the password.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}
	login := strings.TrimSpace(req.Login)
	if login == "" {
		login = strings.TrimSpace(req.Email)
	}
	if login == "" {
		login = strings.TrimSpace(req.Username)
	}
	if login == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email or username required"})
	}

	ctx, cancel := timeout(c)
	defer cancel()

	var u model.User
	var err error
	if strings.Contains(login, "@") {
		u, err = h.Users.GetByEmail(ctx, login)
	} else {
		u, err = h.Users.GetByUsername(ctx, login)
	}
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !utils.VerifyPassword(u.PasswordHash, req.Password)) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err != nil {
		return writeError(c, err)
	}
	if !u.IsActive {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account disabled"})
	}
	return h.issue(c, ctx, http.StatusOK, u)
}

func (h *AuthHandler) issue(c echo.Context, ctx context.Context, status int, u model.User) error {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Roles, h.Cfg.AccessTTLMin)
	if err != nil {
		return writeError(c, err)
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return writeError(c, err)
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return writeError(c, err)
	}
	return c.JSON(status, authResp{
		User:    u,
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	})
}

// Refresh rotates the refresh token. A token can be rotated only once.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := timeout(c)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil || !u.IsActive {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Roles, h.Cfg.AccessTTLMin)
	if err != nil {
		return writeError(c, err)
	}
	next, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return writeError(c, err)
	}
	if err := h.Tokens.Rotate(ctx, u.ID, hash, utils.HashRefreshRaw(next.Raw), next.Exp); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, authResp{
		User:    u,
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: next.Raw, Expires: next.Exp},
	})
}

// RefreshAccess issues an access token and keeps the refresh token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	ctx, cancel := timeout(c)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken)))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil || !u.IsActive {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Roles, h.Cfg.AccessTTLMin)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"access": tokenPart{Token: access.Token, Expires: access.Exp}})
}

// Logout revokes the refresh token in the body, or every session of the
// bearer when no refresh token is sent.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	refresh := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := timeout(c)
	defer cancel()

	if refresh != "" {
		hash := utils.HashRefreshRaw(refresh)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}

	raw, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "provide Authorization header or refresh_token"})
	}
	claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, raw)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	uid, _ := claims.UserID()
	if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the caller's profile, roles and permissions.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, _ := middleware.UserID(c)
	ctx, cancel := timeout(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return writeError(c, err)
	}
	perms, err := h.Roles.Permissions(ctx, uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": u, "permissions": perms})
}

// UpdateMe applies a partial profile update.
func (h *AuthHandler) UpdateMe(c echo.Context) error {
	var req profileReq
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}
	ch := service.ProfileChange{
		Email:          req.Email,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Phone:          req.Phone,
		Document:       req.Document,
		Country:        req.Country,
		CityID:         req.CityID,
		CityText:       req.CityText,
		DepartmentText: req.DepartmentText,
	}
	if req.BirthDate != nil {
		birth, err := parseDate("birth_date", *req.BirthDate)
		if err != nil {
			return writeError(c, err)
		}
		ch.BirthDate = birth
	}
	uid, _ := middleware.UserID(c)
	u, err := h.Profiles.UpdateProfile(c.Request().Context(), uid, ch)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// ChangePassword requires the current password and ends every session.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req passwordReq
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}
	if err := utils.CheckPasswordStrength(req.New); err != nil {
		return writeError(c, fmt.Errorf("%w: %s", service.ErrWeakPassword, err))
	}
	uid, _ := middleware.UserID(c)
	ctx, cancel := timeout(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return writeError(c, err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Current) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "current password is incorrect"})
	}
	hash, err := utils.HashPassword(req.New, h.Cfg.BcryptCost)
	if err != nil {
		return writeError(c, err)
	}
	if err := h.Users.UpdatePassword(ctx, uid, hash); err != nil {
		return writeError(c, err)
	}
	if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
