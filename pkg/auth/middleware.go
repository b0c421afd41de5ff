package auth

import "net/http"

// Middleware returns an HTTP middleware that rejects requests whose
// Authorization header does not carry the configured bearer token.
func (t *TokenAuthenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized: missing authorization header", http.StatusUnauthorized)
				return
			}

			token, err := ParseAuthHeader(authHeader)
			if err != nil {
				http.Error(w, "Unauthorized: invalid authorization header", http.StatusUnauthorized)
				return
			}

			if !t.Verify(token) {
				http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
