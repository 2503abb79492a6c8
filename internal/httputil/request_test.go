package httputil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "10.0.0.2:80", "203.0.113.9"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "10.0.0.2:80", "198.51.100.4"},
		{"remote addr", nil, "192.0.2.1:43210", "192.0.2.1"},
		{"ipv6 remote addr", nil, "[2001:db8::1]:443", "2001:db8::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}

func TestRemoteIP_IgnoresProxyHeaders(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:43210"
	r.Header.Set("X-Forwarded-For", "203.0.113.9")
	r.Header.Set("X-Real-IP", "198.51.100.4")

	assert.Equal(t, "192.0.2.1", RemoteIP(r))
	assert.Equal(t, "203.0.113.9", ClientIP(r))
}

func TestURLParamUUID(t *testing.T) {
	id := uuid.New()
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id.String())
	rctx.URLParams.Add("bad", "17")
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))

	got, ok := URLParamUUID(r, "id")
	assert.True(t, ok)
	assert.Equal(t, id, got)

	_, ok = URLParamUUID(r, "bad")
	assert.False(t, ok)
}

func TestQueryLimitAndCursor(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/posts?limit=15&cursor=abc", nil)
	limit, ok := QueryLimit(r)
	assert.True(t, ok)
	assert.Equal(t, 15, limit)
	assert.Equal(t, "abc", *QueryCursor(r))

	r = httptest.NewRequest(http.MethodGet, "/posts", nil)
	limit, ok = QueryLimit(r)
	assert.True(t, ok)
	assert.Zero(t, limit)
	assert.Nil(t, QueryCursor(r))

	for _, bad := range []string{"-1", "ten"} {
		r = httptest.NewRequest(http.MethodGet, "/posts?limit="+bad, nil)
		_, ok = QueryLimit(r)
		assert.False(t, ok, bad)
	}
}
