package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"accountd/internal/middleware"
	"accountd/internal/models"
	"accountd/internal/service"
)

// AccountFlows defines the account operations used by AccountHandler.
type AccountFlows interface {
	Register(ctx context.Context, in service.RegisterInput) service.Outcome
	Login(ctx context.Context, sess service.Session, in service.LoginInput) service.Outcome
	Logout(ctx context.Context, sess service.Session) service.Outcome
	CurrentUser(ctx context.Context, sess service.Session) *models.UserView
	UpdateProfile(ctx context.Context, sess service.Session, in service.UpdateProfileInput) service.Outcome
}

// AccountHandler maps HTTP requests onto account flows and flow outcomes
// onto status codes.
type AccountHandler struct {
	flows AccountFlows
}

func NewAccountHandler(flows AccountFlows) *AccountHandler {
	return &AccountHandler{flows: flows}
}

type RegisterRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Username        string `json:"username" validate:"required,min=3"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Remember bool   `json:"remember"`
}

type UpdateProfileRequest struct {
	Username           string `json:"username" validate:"required,min=3"`
	Email              string `json:"email" validate:"required,email"`
	CurrentPassword    string `json:"currentPassword" validate:"required"`
	NewPassword        string `json:"newPassword" validate:"omitempty,min=8"`
	ConfirmNewPassword string `json:"confirmNewPassword"`
}

type FlowResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *AccountHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	out := h.flows.Register(c.Request.Context(), service.RegisterInput{
		Email:           req.Email,
		Username:        req.Username,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	respondOutcome(c, out, http.StatusCreated)
}

func (h *AccountHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	out := h.flows.Login(c.Request.Context(), middleware.GetSession(c), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Remember: req.Remember,
	})
	respondOutcome(c, out, http.StatusOK)
}

func (h *AccountHandler) Logout(c *gin.Context) {
	out := h.flows.Logout(c.Request.Context(), middleware.GetSession(c))
	respondOutcome(c, out, http.StatusOK)
}

func (h *AccountHandler) Me(c *gin.Context) {
	view := h.flows.CurrentUser(c.Request.Context(), middleware.GetSession(c))
	if view == nil {
		middleware.RespondWithError(c, http.StatusUnauthorized, "please log in to access this resource")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *AccountHandler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	out := h.flows.UpdateProfile(c.Request.Context(), middleware.GetSession(c), service.UpdateProfileInput{
		Username:           req.Username,
		Email:              req.Email,
		CurrentPassword:    req.CurrentPassword,
		NewPassword:        req.NewPassword,
		ConfirmNewPassword: req.ConfirmNewPassword,
	})
	respondOutcome(c, out, http.StatusOK)
}

func respondOutcome(c *gin.Context, out service.Outcome, successStatus int) {
	c.JSON(statusFor(out, successStatus), FlowResponse{
		Success: out.OK,
		Message: out.Message,
	})
}

func statusFor(out service.Outcome, successStatus int) int {
	switch {
	case out.OK:
		return successStatus
	case errors.Is(out.Err, models.ErrValidation),
		errors.Is(out.Err, models.ErrPasswordMismatch):
		return http.StatusBadRequest
	case errors.Is(out.Err, models.ErrInvalidCredentials),
		errors.Is(out.Err, models.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(out.Err, models.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(out.Err, models.ErrDuplicateEmail),
		errors.Is(out.Err, models.ErrDuplicateUsername):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
