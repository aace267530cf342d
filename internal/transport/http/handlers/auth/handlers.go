package authhandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"evalportal/internal/identity"
	"evalportal/internal/store"
	"evalportal/internal/transport/http/api"
	"evalportal/internal/transport/http/middleware"
)

const tokenTTL = 8 * time.Hour

type Handler struct {
	Store     *store.Store
	JWTSecret string
	validate  *validator.Validate
}

func NewHandler(st *store.Store, jwtSecret string) *Handler {
	return &Handler{Store: st, JWTSecret: jwtSecret, validate: validator.New()}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var payload loginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_body", "invalid request body", reqID)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "validation_failed", "email and password are required", reqID)
		return
	}

	emp, err := h.Store.GetEmployeeByEmail(r.Context(), payload.Email)
	if errors.Is(err, store.ErrNotFound) {
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password", reqID)
		return
	}
	if err != nil {
		api.ServerError(w, "login_failed", "login failed", reqID)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(emp.PasswordHash), []byte(payload.Password)) != nil {
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password", reqID)
		return
	}

	token, err := identity.GenerateToken(h.JWTSecret, identity.Claims{
		EmployeeID: emp.ID,
		FullName:   emp.Name,
		ReportsTo:  emp.ReportsTo,
		IsManager:  emp.IsManager,
		IsHR:       emp.IsHR,
	}, tokenTTL)
	if err != nil {
		api.ServerError(w, "login_failed", "login failed", reqID)
		return
	}

	api.Success(w, map[string]any{
		"token":    token,
		"employee": emp,
	}, reqID)
}
