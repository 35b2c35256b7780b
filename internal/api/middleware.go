package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/cadenza-fm/cadenza/internal/recerr"
)

// HeaderExternalUserID is the trusted header the edge gateway sets after
// verifying the caller's identity. Bodies carrying an externalUserId are
// ignored in favor of this header.
const HeaderExternalUserID = "X-External-User-Id"

// maxUserIDLen bounds the opaque external user ID.
const maxUserIDLen = 255

type ctxKey int

const userIDKey ctxKey = iota

// UserID returns the authenticated external user ID from the request
// context, or "" when the identity middleware did not run.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// withUserID returns a copy of ctx carrying the external user ID. Exported to
// tests via handlers that read [UserID].
func withUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// requireIdentity extracts the external user ID from the trusted header and
// rejects requests without one. It runs after the edge has verified the
// caller, so an absent header means a misrouted or unauthenticated request.
func requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderExternalUserID)
		switch {
		case id == "":
			writeError(w, r, recerr.New(recerr.KindUnauthorized, "missing user identity"))
			return
		case len(id) > maxUserIDLen:
			writeError(w, r, recerr.Validationf("user id exceeds %d characters", maxUserIDLen))
			return
		}
		next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), id)))
	})
}

// requestID sets an X-Request-ID response header, preserving an inbound one
// so edge proxies can correlate.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}
