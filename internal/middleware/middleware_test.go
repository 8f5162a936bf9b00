package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestRateLimit(t *testing.T) {
	limited := 0
	limiter := NewIPRateLimiter(rate.Every(time.Hour), 2)
	h := RateLimit(limiter, func() { limited++ })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 0, 4)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/pair", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	other := httptest.NewRequest(http.MethodPost, "/api/pair", nil)
	other.RemoteAddr = "10.0.0.2:5000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	codes = append(codes, rec.Code)

	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests, http.StatusNoContent}, codes)
	assert.Equal(t, 1, limited)
}

func TestLimiterPrunesIdleEntries(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Limit(1), 1)
	now := time.Now()
	limiter.now = func() time.Time { return now }
	for i := 0; i <= cleanupThreshold; i++ {
		limiter.GetLimiter(strings.Repeat("x", i+1))
	}

	now = now.Add(maxIdleAge + time.Minute)
	limiter.GetLimiter("fresh")
	assert.Len(t, limiter.ips, 1)
}

func TestLoadControllerIsStable(t *testing.T) {
	sm := scs.New()
	sm.Store = memstore.New()

	var seen []string
	var paired []string
	h := sm.LoadAndSave(LoadController(sm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code, ok := ControllerFromContext(r.Context())
		require.True(t, ok)
		seen = append(seen, code)
		if r.URL.Path == "/pair" {
			RememberPaired(r.Context(), sm, []string{"ABC234", "XYZ789"})
		}
		if r.URL.Path == "/unpair" {
			ForgetPaired(r.Context(), sm, "ABC234")
		}
		paired = PairedDisplays(r.Context(), sm)
	})))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/pair", nil))
	cookies := first.Result().Cookies()
	require.NotEmpty(t, cookies)

	for _, path := range []string{"/unpair", "/"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	require.Len(t, seen, 3)
	assert.Equal(t, seen[0], seen[1])
	assert.Equal(t, seen[0], seen[2])
	assert.Equal(t, []string{"XYZ789"}, paired)
}
