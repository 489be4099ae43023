package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowlist(t *testing.T) {
	a := NewAllowlist([]string{"10.1.0.0/16", "2001:db8::1", "not-an-ip", " "}, "")
	h := a.Wrap(ok)
	cases := []struct {
		remote string
		want   int
	}{
		{"10.1.2.3:1234", http.StatusNoContent},
		{"10.2.0.1:1234", http.StatusForbidden},
		{"[2001:db8::1]:443", http.StatusNoContent},
		{"[2001:db8::2]:443", http.StatusForbidden},
		{"garbage", http.StatusForbidden},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/metrics", nil)
		req.RemoteAddr = c.remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, c.want, rec.Code, c.remote)
	}
}

func TestAllowlistRealIPHeader(t *testing.T) {
	h := NewAllowlist([]string{"192.0.2.7"}, "X-Forwarded-For").Wrap(ok)
	req := httptest.NewRequest(http.MethodGet, "/api/metrics", nil)
	req.RemoteAddr = "127.0.0.1:9000"
	req.Header.Set("X-Forwarded-For", "192.0.2.7, 10.0.0.1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAllowlistEmptyPassesThrough(t *testing.T) {
	a := NewAllowlist(nil, "")
	assert.True(t, a.Empty())
	rec := httptest.NewRecorder()
	a.Wrap(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
