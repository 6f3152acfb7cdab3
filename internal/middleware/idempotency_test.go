package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type idempotencyFixture struct {
	mr     *miniredis.Miniredis
	router *gin.Engine
	calls  int32
	status int
}

func newIdempotencyFixture(t *testing.T) *idempotencyFixture {
	t.Helper()
	f := &idempotencyFixture{mr: miniredis.RunT(t), status: http.StatusCreated}
	client := redis.NewClient(&redis.Options{Addr: f.mr.Addr()})
	t.Cleanup(func() { client.Close() })

	handle := func(c *gin.Context) {
		n := atomic.AddInt32(&f.calls, 1)
		c.JSON(f.status, gin.H{"call": n, "id": c.Param("id")})
	}

	f.router = gin.New()
	bookings := f.router.Group("/v1/bookings")
	bookings.Use(IdempotencyMiddleware(client))
	bookings.POST("", handle)
	bookings.GET("", handle)
	bookings.PUT("/:id/status", handle)
	return f
}

func (f *idempotencyFixture) do(method, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ReplaysSameRequest(t *testing.T) {
	f := newIdempotencyFixture(t)

	first := f.do(http.MethodPost, "/v1/bookings", "key-1")
	second := f.do(http.MethodPost, "/v1/bookings", "key-1")

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Empty(t, first.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.calls))
}

func TestIdempotency_KeysAreScopedToRoute(t *testing.T) {
	f := newIdempotencyFixture(t)

	f.do(http.MethodPost, "/v1/bookings", "key-1")
	put := f.do(http.MethodPut, "/v1/bookings/b-1/status", "key-1")
	other := f.do(http.MethodPut, "/v1/bookings/b-2/status", "key-1")
	again := f.do(http.MethodPut, "/v1/bookings/b-1/status", "key-1")

	assert.Empty(t, put.Header().Get("Idempotent-Replayed"))
	assert.Empty(t, other.Header().Get("Idempotent-Replayed"))
	assert.Contains(t, other.Body.String(), `"id":"b-2"`)
	assert.Equal(t, "true", again.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, int32(3), atomic.LoadInt32(&f.calls))
}

func TestIdempotency_PassThrough(t *testing.T) {
	f := newIdempotencyFixture(t)

	f.do(http.MethodPost, "/v1/bookings", "")
	f.do(http.MethodPost, "/v1/bookings", "")
	f.do(http.MethodGet, "/v1/bookings", "key-1")
	f.do(http.MethodGet, "/v1/bookings", "key-1")

	assert.Equal(t, int32(4), atomic.LoadInt32(&f.calls), "no key and reads are never replayed")
}

func TestIdempotency_ServerErrorsAreNotStored(t *testing.T) {
	f := newIdempotencyFixture(t)
	f.status = http.StatusServiceUnavailable

	f.do(http.MethodPost, "/v1/bookings", "key-1")
	retry := f.do(http.MethodPost, "/v1/bookings", "key-1")

	assert.Empty(t, retry.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&f.calls))
}

func TestIdempotency_RedisDownProceeds(t *testing.T) {
	f := newIdempotencyFixture(t)
	f.mr.Close()

	for i := 1; i <= 2; i++ {
		w := f.do(http.MethodPost, "/v1/bookings", "key-1")
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), `"call":`+strconv.Itoa(i))
	}
}
