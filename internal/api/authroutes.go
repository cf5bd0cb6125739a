package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/smarteb/smarteb/internal/auth"
	"github.com/smarteb/smarteb/internal/storage"
)

func registerAuthRoutes(mux *http.ServeMux, authSvc *auth.Service) {
	// Login exchanges credentials for a bearer token.
	// @Summary Log in and obtain an API token
	// @Tags auth
	// @Accept json
	// @Produce json
	// @Router /api/v1/auth/login [post]
	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var req struct {
			Username  string `json:"username"`
			Password  string `json:"password"`
			ExpiresIn string `json:"expiresIn,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		u, err := authSvc.Authenticate(r.Context(), req.Username, req.Password)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}

		expiresAt, err := auth.ParseExpirationDuration(req.ExpiresIn)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		_, raw, err := authSvc.CreateToken(r.Context(), u.ID, "login", u.Role, expiresAt)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "could not create token")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"token":          raw,
			"role":           u.Role,
			"username":       u.Username,
			"consumerNumber": u.ConsumerNumber,
		})
	})

	// Register creates a user; admin only.
	// @Summary Register a user
	// @Tags auth
	// @Accept json
	// @Produce json
	// @Router /api/v1/auth/register [post]
	mux.Handle("/api/v1/auth/register", authSvc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		token, ok := r.Context().Value(auth.TokenContextKey).(*storage.Token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		allowed, err := authSvc.Enforce(token.UserID, "users", "write")
		if err != nil || !allowed {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}

		var req struct {
			Username       string `json:"username"`
			Password       string `json:"password"`
			Role           string `json:"role"`
			ConsumerNumber string `json:"consumerNumber,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		switch req.Role {
		case auth.RoleAdmin, auth.RoleOperator, auth.RoleConsumer:
		default:
			writeError(w, http.StatusBadRequest, "unknown role")
			return
		}
		if req.Role == auth.RoleConsumer && req.ConsumerNumber == "" {
			writeError(w, http.StatusBadRequest, "consumer accounts need a consumerNumber")
			return
		}

		u, err := authSvc.Register(r.Context(), req.Username, req.Password, req.Role, req.ConsumerNumber)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, u)
	})))

	// Token management for the authenticated user.
	// @Summary List or revoke API tokens
	// @Tags auth
	// @Produce json
	// @Router /api/v1/auth/tokens [get]
	// @Router /api/v1/auth/tokens/{id} [delete]
	mux.Handle("/api/v1/auth/tokens", authSvc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := auth.UserFromContext(r.Context())
		if u == nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		switch r.Method {
		case http.MethodGet:
			list, err := authSvc.ListTokens(r.Context(), u.ID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "could not list tokens")
				return
			}
			if list == nil {
				list = []storage.Token{}
			}
			writeJSON(w, http.StatusOK, list)

		case http.MethodPost:
			var req struct {
				Name      string `json:"name"`
				ExpiresIn string `json:"expiresIn,omitempty"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if req.Name == "" {
				writeError(w, http.StatusBadRequest, "token name required")
				return
			}
			expiresAt, err := auth.ParseExpirationDuration(req.ExpiresIn)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			tok, raw, err := authSvc.CreateToken(r.Context(), u.ID, req.Name, u.Role, expiresAt)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "could not create token")
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{
				"id":    tok.ID,
				"name":  tok.Name,
				"token": raw,
			})

		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})))

	mux.Handle("/api/v1/auth/tokens/", authSvc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		u := auth.UserFromContext(r.Context())
		if u == nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/api/v1/auth/tokens/")
		if id == "" {
			writeError(w, http.StatusBadRequest, "token id required")
			return
		}
		if err := authSvc.RevokeToken(r.Context(), u.ID, id); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})))
}
