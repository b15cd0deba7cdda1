package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"chefmate/pkg/requestcontext"
)

// RequestMeta assigns every request an ID and pins the request time in
// context so all downstream timestamps within one request agree.
// Applied first in the chain.
func RequestMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		ctx = requestcontext.WithTime(ctx, time.Now().UTC())

		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
