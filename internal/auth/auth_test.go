package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		cfg    Config
		method string
		header string
		want   int
	}{
		{"disabled allows writes", Config{}, http.MethodPost, "", http.StatusNoContent},
		{"reads are public", Config{Enabled: true, Token: "s3cret"}, http.MethodGet, "", http.StatusNoContent},
		{"head is public", Config{Enabled: true, Token: "s3cret"}, http.MethodHead, "", http.StatusNoContent},
		{"missing header", Config{Enabled: true, Token: "s3cret"}, http.MethodPost, "", http.StatusUnauthorized},
		{"wrong scheme", Config{Enabled: true, Token: "s3cret"}, http.MethodPost, "Basic s3cret", http.StatusUnauthorized},
		{"bare token", Config{Enabled: true, Token: "s3cret"}, http.MethodPost, "s3cret", http.StatusUnauthorized},
		{"wrong token", Config{Enabled: true, Token: "s3cret"}, http.MethodPost, "Bearer nope", http.StatusUnauthorized},
		{"valid token", Config{Enabled: true, Token: "s3cret"}, http.MethodPost, "Bearer s3cret", http.StatusNoContent},
		{"empty configured token", Config{Enabled: true}, http.MethodPost, "Bearer ", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/tle/reload", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			Middleware(tt.cfg)(next).ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if w.Code == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
				t.Error("401 without WWW-Authenticate")
			}
		})
	}
}
