package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"ms-livestream/internal/logger"
	"ms-livestream/internal/models"
	"ms-livestream/internal/utils"
)

type contextKey string

const (
	userIDKey contextKey = "user_id"
	emailKey  contextKey = "email"
)

// Middleware requires a valid bearer ID token and stores the subject in the context.
func Middleware(verifier Verifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := BearerToken(r)
			if err != nil {
				unauthorized(w, err.Error())
				return
			}

			id, err := verifier.Verify(r.Context(), raw)
			if err != nil {
				if log != nil {
					log.LogSecurity("ID_TOKEN", err.Error())
				}
				unauthorized(w, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
		})
	}
}

// OptionalMiddleware attaches the identity when a valid token is present and
// otherwise lets the request through anonymously.
func OptionalMiddleware(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier != nil {
				if raw, err := BearerToken(r); err == nil {
					if id, err := verifier.Verify(r.Context(), raw); err == nil {
						r = r.WithContext(withIdentity(r.Context(), id))
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func withIdentity(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, userIDKey, id.Subject)
	return context.WithValue(ctx, emailKey, id.Email)
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(utils.ErrorResponse("Unauthorized", msg))
}

// UserID is empty for anonymous requests.
func UserID(ctx context.Context) string {
	if uid, ok := ctx.Value(userIDKey).(string); ok {
		return uid
	}
	return ""
}

func Email(ctx context.Context) string {
	if email, ok := ctx.Value(emailKey).(string); ok {
		return email
	}
	return ""
}

// Buyer is the signed-in identity, or a zero value when anonymous.
func Buyer(ctx context.Context) models.BuyerIdentity {
	return models.BuyerIdentity{UserID: UserID(ctx), Email: Email(ctx)}
}

var ErrMissingBearer = errors.New("missing Authorization header")
