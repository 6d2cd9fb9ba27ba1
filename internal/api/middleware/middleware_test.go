package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/video-stream/transcut/internal/auth"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestAuthMiddleware(t *testing.T) {
	svc := auth.NewJWTService("secret", time.Hour)
	token, err := svc.GenerateToken(1, "admin", "admin")
	if err != nil {
		t.Fatal(err)
	}

	var seen *auth.Claims
	h := AuthMiddleware(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetClaims(r)
	}))

	tests := []struct {
		name   string
		method string
		target string
		header string
		want   int
	}{
		{"bearer", http.MethodPost, "/", "Bearer " + token, http.StatusOK},
		{"missing", http.MethodGet, "/", "", http.StatusUnauthorized},
		{"bad format", http.MethodGet, "/", "Token " + token, http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/", "Bearer nope", http.StatusUnauthorized},
		{"query on get", http.MethodGet, "/?token=" + token, "", http.StatusOK},
		{"query on post", http.MethodPost, "/?token=" + token, "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusOK && (seen == nil || seen.Username != "admin") {
				t.Errorf("claims = %+v", seen)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	svc := auth.NewJWTService("secret", time.Hour)
	h := AuthMiddleware(svc)(RequireRole("admin")(okHandler))

	for role, want := range map[string]int{"admin": http.StatusOK, "editor": http.StatusForbidden} {
		token, _ := svc.GenerateToken(2, "u", role)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("role %s: status = %d, want %d", role, rec.Code, want)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	h := rl.Handler(okHandler)

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = ip
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	do("1.1.1.1:5000")
	do("1.1.1.1:5001")
	rec := do("1.1.1.1")
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") != "60" {
		t.Fatalf("status = %d, retry-after = %q", rec.Code, rec.Header().Get("Retry-After"))
	}
	if do("2.2.2.2").Code != http.StatusOK {
		t.Error("other IP should not be limited")
	}

	st := rl.Status()
	if st.Limit != 2 || len(st.Entries) != 2 {
		t.Errorf("status = %+v", st)
	}

	now = now.Add(61 * time.Second)
	if do("1.1.1.1").Code != http.StatusOK {
		t.Error("window should have reset")
	}
	rl.Clear()
	if len(rl.Status().Entries) != 0 {
		t.Error("clear left entries")
	}
}

func TestMaxBodySize(t *testing.T) {
	var readErr error
	h := MaxBodySize(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 16)
		_, readErr = r.Body.Read(buf)
		for readErr == nil {
			_, readErr = r.Body.Read(buf)
		}
	}))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789"))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if readErr == nil || readErr.Error() == "EOF" {
		t.Errorf("json body should be limited, err = %v", readErr)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if readErr == nil || readErr.Error() != "EOF" {
		t.Errorf("multipart body should pass, err = %v", readErr)
	}
}

func TestCORSOptions(t *testing.T) {
	if CORSOptions(nil).AllowCredentials {
		t.Error("wildcard must not allow credentials")
	}
	opts := CORSOptions([]string{"https://app.example"})
	if !opts.AllowCredentials || opts.AllowedOrigins[0] != "https://app.example" {
		t.Errorf("opts = %+v", opts)
	}
}
