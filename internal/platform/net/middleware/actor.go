package middleware

import (
	"net/http"
	"strings"
	"unicode"

	"penwatch/internal/platform/logger"
	pnet "penwatch/internal/platform/net"
	pstrings "penwatch/internal/platform/strings"
)

// ActorHeader names the operator issuing an admin request
const ActorHeader = "X-Actor"

const maxActorLen = 64

// Actor copies the ActorHeader value into the request context
// The value is only an audit label, it is not authenticated
func Actor() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := cleanActor(r.Header.Get(ActorHeader))
			if actor == "" {
				next.ServeHTTP(w, r)
				return
			}
			reqID := pnet.RequestID(r.Context())
			ctx := pnet.WithRequest(r.Context(), reqID, actor)
			ctx = logger.WithRequest(ctx, reqID, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func cleanActor(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
	return pstrings.Clip(s, maxActorLen)
}
