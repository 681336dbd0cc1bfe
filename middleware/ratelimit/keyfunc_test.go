package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"portfolio-backend/middleware/ratelimit/domain"
)

func TestDefaultKeyFunc_PrefersHeaderWhenSet(t *testing.T) {
	fn := DefaultKeyFunc("X-Client")

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-Forwarded-For", "1.2.3.4")
	r.Header.Set("X-Client", " client-123 ")

	if got := fn(r); got != "client-123" {
		t.Fatalf("expected header key, got %q", got)
	}
}

func TestDefaultKeyFunc_XForwardedForUsesFirstEntry(t *testing.T) {
	fn := DefaultKeyFunc("")

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", " 1.2.3.4 , 5.6.7.8")
	r.Header.Set("X-Real-IP", "9.9.9.9")

	if got := fn(r); got != "1.2.3.4" {
		t.Fatalf("expected first XFF entry, got %q", got)
	}
}

func TestDefaultKeyFunc_XForwardedForIsNotValidated(t *testing.T) {
	fn := DefaultKeyFunc("")

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.Header.Set("X-Forwarded-For", "not-an-ip")

	if got := fn(r); got != "not-an-ip" {
		t.Fatalf("expected raw XFF value, got %q", got)
	}
}

func TestDefaultKeyFunc_XRealIPVerbatim(t *testing.T) {
	fn := DefaultKeyFunc("")

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Real-IP", "9.9.9.9")

	if got := fn(r); got != "9.9.9.9" {
		t.Fatalf("expected X-Real-IP, got %q", got)
	}
}

func TestDefaultKeyFunc_FallbacksToRemoteAddrHost(t *testing.T) {
	fn := DefaultKeyFunc("")

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"

	if got := fn(r); got != "10.0.0.9" {
		t.Fatalf("expected remote host, got %q", got)
	}

	r.RemoteAddr = "peer-without-port"
	if got := fn(r); got != "peer-without-port" {
		t.Fatalf("expected raw remote addr, got %q", got)
	}
}

func TestDefaultKeyFunc_UnknownWhenNothingIdentifiesClient(t *testing.T) {
	fn := DefaultKeyFunc("")

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = ""

	if got := fn(r); got != UnknownKey {
		t.Fatalf("expected unknown, got %q", got)
	}
}

func TestKeyMiddleware_StoresKeyInContext(t *testing.T) {
	var seen domain.Key
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = KeyFromRequest(r, "")
	})

	h := KeyMiddleware(DefaultKeyFunc(""))(next)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.Header.Set("X-Forwarded-For", "7.7.7.7")
	h.ServeHTTP(httptest.NewRecorder(), r)

	if seen != "7.7.7.7" {
		t.Fatalf("expected key from context, got %q", seen)
	}
}
