package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) SetRoutes(r *chi.Mux) {
	r.Route("/v1", func(r chi.Router) {

		// public routes here
		r.Get("/health", h.HealthHandler)

		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)
			r.Use(requireCaller)

			r.Post("/games", h.CreateGame)
			r.Get("/games/{id}", h.GetGame)
			r.Post("/games/{id}/join", h.JoinGame)
			r.Post("/games/{id}/commit", h.CommitMove)
			r.Post("/games/{id}/reveal", h.RevealMove)
			r.Post("/games/{id}/timeout", h.ClaimTimeout)

			r.Post("/withdraw", h.Withdraw)
			r.Get("/balances/{account}", h.GetBalance)
		})
	})
}

// NewAuth builds the HS256 token authority shared by all services.
func NewAuth(secret string) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(secret), nil)
}

// IssueToken mints a token whose subject is the playing account.
func IssueToken(auth *jwtauth.JWTAuth, account string, ttl time.Duration) (string, error) {
	_, tokenString, err := auth.Encode(map[string]interface{}{
		"sub": account,
		"exp": time.Now().Add(ttl).Unix(),
	})
	return tokenString, err
}

// DebugToken logs a week long token for account. For local testing only.
func DebugToken(auth *jwtauth.JWTAuth, account string) {
	tokenString, err := IssueToken(auth, account, 7*24*time.Hour)
	if err != nil {
		log.WithError(err).Warn("could not mint debug token")
		return
	}
	log.Infof("DEBUG: JWT for %s : %s", account, tokenString)
}

type callerKey struct{}

// requireCaller rejects tokens without a subject and stores the subject as
// the acting account.
func requireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		sub, _ := claims["sub"].(string)
		if err != nil || sub == "" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, sub)))
	})
}

func caller(r *http.Request) string {
	sub, _ := r.Context().Value(callerKey{}).(string)
	return sub
}
