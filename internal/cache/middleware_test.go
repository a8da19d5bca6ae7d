package cache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newCachedRouter(c Cache, calls *int, status int) *gin.Engine {
	r := gin.New()
	r.Use(Middleware(c, time.Minute))
	r.GET("/api/projects", func(ctx *gin.Context) {
		*calls++
		ctx.JSON(status, gin.H{"calls": *calls})
	})
	r.POST("/api/projects", func(ctx *gin.Context) {
		*calls++
		c.InvalidateAll(ctx.Request.Context())
		ctx.JSON(http.StatusCreated, gin.H{"ok": true})
	})
	return r
}

func do(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestMiddleware_HitAfterMiss(t *testing.T) {
	calls := 0
	r := newCachedRouter(NewMemory(), &calls, http.StatusOK)

	first := do(r, http.MethodGet, "/api/projects")
	second := do(r, http.MethodGet, "/api/projects")

	if first.Header().Get(HeaderStatus) != "MISS" {
		t.Errorf("first %s = %q, want MISS", HeaderStatus, first.Header().Get(HeaderStatus))
	}
	if second.Header().Get(HeaderStatus) != "HIT" {
		t.Errorf("second %s = %q, want HIT", HeaderStatus, second.Header().Get(HeaderStatus))
	}
	if calls != 1 {
		t.Errorf("handler calls = %d, want 1", calls)
	}
	if first.Body.String() != second.Body.String() {
		t.Errorf("bodies differ: %q vs %q", first.Body.String(), second.Body.String())
	}
}

func TestMiddleware_WriteInvalidates(t *testing.T) {
	calls := 0
	r := newCachedRouter(NewMemory(), &calls, http.StatusOK)

	do(r, http.MethodGet, "/api/projects")
	do(r, http.MethodPost, "/api/projects")
	w := do(r, http.MethodGet, "/api/projects")

	if w.Header().Get(HeaderStatus) != "MISS" {
		t.Errorf("%s = %q, want MISS after write", HeaderStatus, w.Header().Get(HeaderStatus))
	}
	if w.Body.String() != `{"calls":3}` {
		t.Errorf("body = %s, want fresh response", w.Body.String())
	}
}

func TestMiddleware_ErrorsNotCached(t *testing.T) {
	calls := 0
	r := newCachedRouter(NewMemory(), &calls, http.StatusInternalServerError)

	do(r, http.MethodGet, "/api/projects")
	do(r, http.MethodGet, "/api/projects")
	if calls != 2 {
		t.Errorf("handler calls = %d, want 2", calls)
	}
}

func TestMiddleware_QueryIsPartOfKey(t *testing.T) {
	calls := 0
	r := newCachedRouter(NewMemory(), &calls, http.StatusOK)

	do(r, http.MethodGet, "/api/projects?page=1")
	w := do(r, http.MethodGet, "/api/projects?page=2")
	if w.Header().Get(HeaderStatus) != "MISS" {
		t.Errorf("different query served from cache")
	}
}

// racingCache invalidates between the generation read and the store.
type racingCache struct {
	*Memory
}

func (r racingCache) Generation(ctx context.Context) (uint64, error) {
	gen, err := r.Memory.Generation(ctx)
	r.Memory.InvalidateAll(ctx)
	return gen, err
}

func TestMiddleware_StaleReadNotStored(t *testing.T) {
	m := NewMemory()
	calls := 0
	r := newCachedRouter(racingCache{m}, &calls, http.StatusOK)

	do(r, http.MethodGet, "/api/projects")
	if m.Len() != 0 {
		t.Errorf("Len = %d, want 0: stale response stored", m.Len())
	}
}
