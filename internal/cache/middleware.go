package cache

import (
	"bytes"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/boardsync/internal/logging"
)

// HeaderStatus reports HIT or MISS on cached routes.
const HeaderStatus = "X-Cache"

type recorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (r *recorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *recorder) WriteString(s string) (int, error) {
	r.body.WriteString(s)
	return r.ResponseWriter.WriteString(s)
}

// Middleware serves GET responses from c and stores successful JSON
// responses for ttl. Cache errors degrade to a pass-through.
func Middleware(c Cache, ttl time.Duration) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method != http.MethodGet {
			ctx.Next()
			return
		}
		reqCtx := ctx.Request.Context()
		log := logging.FromContext(reqCtx)
		key := ctx.Request.URL.RequestURI()

		if body, ok, err := c.Get(reqCtx, key); err != nil {
			log.Warn("cache get failed", slog.String("key", key), logging.Err(err))
		} else if ok {
			ctx.Header(HeaderStatus, "HIT")
			ctx.Data(http.StatusOK, "application/json; charset=utf-8", body)
			ctx.Abort()
			return
		}

		gen, err := c.Generation(reqCtx)
		if err != nil {
			log.Warn("cache generation failed", logging.Err(err))
			ctx.Next()
			return
		}

		ctx.Header(HeaderStatus, "MISS")
		rec := &recorder{ResponseWriter: ctx.Writer}
		ctx.Writer = rec
		ctx.Next()

		if rec.Status() != http.StatusOK || len(ctx.Errors) > 0 {
			return
		}
		if err := c.SetAt(reqCtx, gen, key, rec.body.Bytes(), ttl); err != nil {
			log.Warn("cache set failed", slog.String("key", key), logging.Err(err))
		}
	}
}
