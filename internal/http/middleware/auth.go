package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const AdminIDKey contextKey = "admin_id"

// AdminID returns the session admin placed in the context by the session loader.
func AdminID(r *http.Request) (uuid.UUID, bool) {
	id, ok := r.Context().Value(AdminIDKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// RequireSession rejects API calls without an admin session with 401 and a
// JSON message body.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := AdminID(r); !ok {
			WriteJSON(w, http.StatusUnauthorized, ErrorBody{Message: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ErrorBody is the shape of every API error response.
type ErrorBody struct {
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
