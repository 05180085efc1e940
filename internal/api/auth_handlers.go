package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/example/inventory-audit/internal/api/middleware"
	"github.com/example/inventory-audit/internal/auth"
	"go.uber.org/zap"
)

// AuthHandlers issues admin access tokens
type AuthHandlers struct {
	admin      auth.Admin
	jwtService *auth.JWTService
	logger     *zap.Logger
}

func NewAuthHandlers(admin auth.Admin, jwtService *auth.JWTService, logger *zap.Logger) *AuthHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandlers{
		admin:      admin,
		jwtService: jwtService,
		logger:     logger.With(zap.String("component", "auth")),
	}
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the access token for API clients
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Login checks the admin credentials and returns an access token. The token
// is also set as an HttpOnly cookie for browser clients.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		respondJSONError(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	if err := h.admin.Authenticate(req.Username, req.Password); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.logger.Warn("login rejected",
				zap.String("username", req.Username),
				zap.String("remote_addr", r.RemoteAddr),
			)
			respondJSONError(w, "Invalid username or password", http.StatusUnauthorized)
			return
		}
		respondJSONError(w, "Server error", http.StatusInternalServerError)
		return
	}

	token, expiresAt, err := h.jwtService.GenerateAccessToken(req.Username, auth.RoleAdmin)
	if err != nil {
		h.logger.Error("failed to sign access token", zap.Error(err))
		respondJSONError(w, "Server error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	h.logger.Info("admin logged in", zap.String("username", req.Username))
	respondJSON(w, http.StatusOK, LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
	})
}
