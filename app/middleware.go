package app

import (
	"crypto/subtle"
	"net/http"
	"strings"

	gohttp "github.com/km-arc/go-modular/framework/http"
)

// RequireToken guards prefix and every path below it with a bearer token.
// An empty token leaves the routes open.
func RequireToken(prefix, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p := r.URL.Path; p != prefix && !strings.HasPrefix(p, prefix+"/") {
				next.ServeHTTP(w, r)
				return
			}
			got := gohttp.NewRequest(r).BearerToken()
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				gohttp.NewResponse(w).Error(http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
