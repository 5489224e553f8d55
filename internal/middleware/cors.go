package middleware

import (
	"net/http"
	"strings"
)

var (
	allowMethods = strings.Join([]string{"GET", "POST", "OPTIONS"}, ", ")
	allowHeaders = strings.Join([]string{"Authorization", "Content-Type", "X-Requested-With", "X-Request-Id"}, ", ")
)

type originSet struct {
	allowAll bool
	allowed  map[string]struct{}
}

func newOriginSet(origins []string) originSet {
	set := originSet{allowAll: len(origins) == 0, allowed: make(map[string]struct{}, len(origins))}
	for _, origin := range origins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "*" {
			set.allowAll = true
			continue
		}
		if origin != "" {
			set.allowed[origin] = struct{}{}
		}
	}
	return set
}

func (s originSet) allows(origin string) bool {
	if s.allowAll {
		return true
	}
	_, ok := s.allowed[origin]
	return ok
}

// OriginChecker returns a websocket.Upgrader CheckOrigin func that applies
// the same allowlist as CORS. Requests without an Origin header are not
// from a browser and pass.
func OriginChecker(origins []string) func(r *http.Request) bool {
	set := newOriginSet(origins)
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set.allows(origin)
	}
}

// CORS answers preflight requests and sets allow headers for the given
// origins. An empty list or "*" allows any origin.
func CORS(origins []string) func(http.Handler) http.Handler {
	set := newOriginSet(origins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				switch {
				case set.allowAll:
					w.Header().Set("Access-Control-Allow-Origin", "*")
				case set.allows(origin):
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
				}
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.Header().Set("Access-Control-Allow-Methods", allowMethods)
				w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
				w.Header().Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
