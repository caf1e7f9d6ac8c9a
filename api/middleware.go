package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"reeltrack/internal/auth"
	"reeltrack/models"
)

// Principal is the owner of a bearer token.
type Principal struct {
	UserID string
	// SessionKey identifies the sign-in the token belongs to. It stays stable
	// across token refreshes so per-session state survives them.
	SessionKey string
}

// Authenticator resolves a bearer token to a principal.
type Authenticator interface {
	Authenticate(token string) (Principal, error)
}

type sessionValidator interface {
	Validate(token string) (models.Session, error)
}

type accountLookup interface {
	Get(id string) (models.Account, bool)
}

// ErrAccountGone is returned for a live session whose account was deleted.
var ErrAccountGone = errors.New("session account no longer exists")

// SessionAuthenticator accepts tokens issued by the local sessions service.
// When Accounts is set, sessions of deleted accounts are rejected.
type SessionAuthenticator struct {
	Sessions sessionValidator
	Accounts accountLookup
}

func (a SessionAuthenticator) Authenticate(token string) (Principal, error) {
	session, err := a.Sessions.Validate(token)
	if err != nil {
		return Principal{}, err
	}
	if a.Accounts != nil {
		if _, ok := a.Accounts.Get(session.AccountID); !ok {
			return Principal{}, ErrAccountGone
		}
	}
	return Principal{UserID: session.AccountID, SessionKey: session.Token}, nil
}

// SupabaseAuthenticator accepts Supabase access tokens.
type SupabaseAuthenticator struct {
	Verifier *auth.SupabaseVerifier
}

func (a SupabaseAuthenticator) Authenticate(token string) (Principal, error) {
	claims, err := a.Verifier.Claims(token)
	if err != nil {
		return Principal{}, err
	}
	key := claims.SessionID
	if key == "" {
		key = token
	}
	return Principal{UserID: claims.Subject, SessionKey: "supabase:" + key}, nil
}

// AuthMiddleware rejects requests without a valid bearer token and stores the
// caller in the request context.
func AuthMiddleware(authenticator Authenticator) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Always allow OPTIONS for CORS
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token := ExtractBearerToken(r)
			if token == "" {
				writeUnauthorized(w, "authentication required")
				return
			}

			principal, err := authenticator.Authenticate(token)
			if err != nil {
				log.Printf("[auth] rejected token for %s %s: %v", r.Method, r.URL.Path, err)
				writeUnauthorized(w, "invalid or expired session")
				return
			}

			ctx := auth.WithUserID(r.Context(), principal.UserID, principal.SessionKey)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ExtractBearerToken returns the token from an "Authorization: Bearer" header.
func ExtractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
