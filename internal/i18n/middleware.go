package i18n

import "net/http"

// Middleware attaches a localizer for the configured language to every
// request, so handlers can translate player-facing strings (login
// errors, game-over messages) through T/Td/Tp. The localizer is built
// once per server, not per request.
func Middleware(lang string) func(http.Handler) http.Handler {
	loc := NewLocalizer(lang)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithLocalizer(r.Context(), loc)))
		})
	}
}
