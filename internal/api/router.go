package api

import (
	"net/http"

	"github.com/example/inventory-audit/internal/api/middleware"
	"github.com/example/inventory-audit/internal/auth"
	"go.uber.org/zap"
)

// NewRouter wires the inventory routes. When jwtService is nil the mutation
// routes are open and /auth/login is not registered.
func NewRouter(handlers *Handlers, authHandlers *AuthHandlers, jwtService *auth.JWTService, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()

	protect := func(h http.HandlerFunc) http.Handler {
		if jwtService == nil {
			return h
		}
		return middleware.AuthMiddleware(jwtService)(middleware.RequireRole(auth.RoleAdmin)(h))
	}
	createProduct := protect(handlers.CreateProduct)
	updateProduct := protect(handlers.UpdateProduct)
	deleteProduct := protect(handlers.DeleteProduct)

	// Products
	mux.HandleFunc("/products", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handlers.GetProducts(w, r)
		case http.MethodPost:
			createProduct.ServeHTTP(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/products/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handlers.GetProduct(w, r)
		case http.MethodPatch:
			updateProduct.ServeHTTP(w, r)
		case http.MethodDelete:
			deleteProduct.ServeHTTP(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/products/filter/category", getOnly(handlers.FilterByCategory))
	mux.HandleFunc("/products/filter/quantity", getOnly(handlers.FilterByQuantity))
	mux.HandleFunc("/products/paginated", getOnly(handlers.GetPaginatedProducts))

	// Event logs
	mux.HandleFunc("/event-logs", getOnly(handlers.GetEventLogs))

	// Auth
	if jwtService != nil && authHandlers != nil {
		mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w)
				return
			}
			authHandlers.Login(w, r)
		})
	}

	mux.HandleFunc("/healthz", getOnly(handlers.Health))

	var h http.Handler = mux
	h = middleware.Recover(logger)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.RequestID(h)
	return h
}

func getOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		next(w, r)
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	respondJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
}
