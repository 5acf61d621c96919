package security

import (
	"net/http"
	"slices"
	"strings"
)

const (
	corsAllowMethods = "GET, POST, OPTIONS"
	corsAllowHeaders = "Content-Type, X-Request-ID"
	corsMaxAge       = "600"
)

// CORS answers preflight requests and adds Access-Control headers for the
// configured origins. "*" allows any origin.
type CORS struct {
	origins  []string
	wildcard bool
}

func NewCORS(origins []string) *CORS {
	c := &CORS{}
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			c.wildcard = true
			continue
		}
		if o != "" {
			c.origins = append(c.origins, o)
		}
	}
	return c
}

func (c *CORS) allowOrigin(origin string) string {
	if c.wildcard {
		return "*"
	}
	if origin != "" && slices.Contains(c.origins, origin) {
		return origin
	}
	return ""
}

func (c *CORS) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := c.allowOrigin(origin)

		headers := w.Header()
		if allowed != "" {
			headers.Set("Access-Control-Allow-Origin", allowed)
			if allowed != "*" {
				headers.Add("Vary", "Origin")
			}
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if allowed != "" {
				headers.Set("Access-Control-Allow-Methods", corsAllowMethods)
				headers.Set("Access-Control-Allow-Headers", corsAllowHeaders)
				headers.Set("Access-Control-Max-Age", corsMaxAge)
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
