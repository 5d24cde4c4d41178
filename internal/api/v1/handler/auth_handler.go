package handler

import (
	"net/http"

	"meditation/internal/api/v1/dto"
	"meditation/internal/auth"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// CredentialChecker verifies the admin login.
type CredentialChecker interface {
	Check(email, password string) error
	// Email is the canonical admin address tokens are issued for.
	Email() string
}

// TokenIssuer signs admin session tokens.
type TokenIssuer interface {
	Issue(subject, role string) (string, *auth.Session, error)
}

// AuthHandler handles admin login
type AuthHandler struct {
	credentials CredentialChecker
	tokens      TokenIssuer
	validate    *validator.Validate
	logger      zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(credentials CredentialChecker, tokens TokenIssuer, validate *validator.Validate, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		credentials: credentials,
		tokens:      tokens,
		validate:    validate,
		logger:      logger.With().Str("handler", "auth").Logger(),
	}
}

// RegisterRoutes mounts auth routes
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, adminMw func(http.Handler) http.Handler) {
	mux.HandleFunc("POST /auth/login", h.login)
	mux.Handle("GET /admin/session", adminMw(http.HandlerFunc(h.session)))
}

// login godoc
// @Summary Admin login
// @Description Exchanges the admin email and password for a bearer token. Logout is discarding the token.
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body dto.LoginRequestDTO true "Admin credentials"
// @Success 200 {object} dto.LoginResponseDTO
// @Failure 400 {string} string "Invalid JSON payload or validation failed"
// @Failure 401 {string} string "Invalid email or password"
// @Router /auth/login [post]
func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequestDTO
	if !decodeAndValidate(w, r, &req, h.validate) {
		return
	}
	if err := h.credentials.Check(req.Email, req.Password); err != nil {
		h.logger.Warn().Str("email", req.Email).Msg("Rejected admin login")
		writeError(w, "Login failed", err)
		return
	}
	token, session, err := h.tokens.Issue(h.credentials.Email(), auth.RoleAdmin)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to issue token")
		http.Error(w, "Failed to issue token", http.StatusInternalServerError)
		return
	}
	h.logger.Info().Str("email", session.Subject).Msg("Admin logged in")
	writeJSON(w, http.StatusOK, dto.LoginResponseDTO{Token: token, ExpiresAt: session.ExpiresAt})
}

// session godoc
// @Summary Current admin session
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.SessionResponseDTO
// @Failure 401 {string} string "Unauthorized"
// @Router /admin/session [get]
func (h *AuthHandler) session(w http.ResponseWriter, r *http.Request) {
	s := auth.FromContext(r.Context())
	writeJSON(w, http.StatusOK, dto.SessionResponseDTO{Subject: s.Subject, Role: s.Role, ExpiresAt: s.ExpiresAt})
}
