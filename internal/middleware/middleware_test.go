package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"rehearsal-scheduler-api/internal/auth"
	"rehearsal-scheduler-api/internal/middleware"
)

const secret = "mw-test-secret"

func okHandler(t *testing.T, gotUID *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*gotUID = middleware.UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	var uid string
	h := middleware.Auth(secret, okHandler(t, &uid))

	// no header
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no header: got %d", rec.Code)
	}

	// wrong scheme
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Basic abc123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("basic auth: got %d", rec.Code)
	}

	// valid token threads the principal through
	tok, err := auth.MakeToken("user-42", secret)
	if err != nil {
		t.Fatalf("make token: %v", err)
	}
	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token: got %d", rec.Code)
	}
	if uid != "user-42" {
		t.Errorf("uid in context: got %q", uid)
	}
}

func TestRateLimit(t *testing.T) {
	rl := middleware.NewRateLimiter(1, 3)
	h := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	hit := func(addr string) int {
		req := httptest.NewRequest("POST", "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	// burst of 3, then throttled
	for i := 0; i < 3; i++ {
		if code := hit("10.0.0.1:1111"); code != http.StatusOK {
			t.Fatalf("request %d: got %d", i, code)
		}
	}
	if code := hit("10.0.0.1:1111"); code != http.StatusTooManyRequests {
		t.Errorf("over burst: got %d", code)
	}

	// limits are per client, another ip is unaffected
	if code := hit("10.0.0.2:2222"); code != http.StatusOK {
		t.Errorf("second ip: got %d", code)
	}
}
