package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/boardsync/internal/auth"
	"github.com/zulandar/boardsync/internal/board"
	"github.com/zulandar/boardsync/internal/db"
	"github.com/zulandar/boardsync/internal/logging"
	"github.com/zulandar/boardsync/internal/reorder"
	"github.com/zulandar/boardsync/internal/sequence"
)

// statusOf maps a domain error to its HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, sequence.ErrInvalidPosition), errors.Is(err, board.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, reorder.ErrItemNotFound), errors.Is(err, reorder.ErrContainerNotFound),
		errors.Is(err, board.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, reorder.ErrStoreUnavailable), db.IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as {"error": ...}. Server faults are logged and their
// detail withheld.
func fail(c *gin.Context, err error) {
	status := statusOf(err)
	msg := err.Error()
	switch status {
	case http.StatusServiceUnavailable:
		msg = "store unavailable, retry with fresh state"
	case http.StatusInternalServerError:
		msg = "internal error"
	}
	if status >= http.StatusInternalServerError {
		logging.FromContext(c.Request.Context()).Error("request failed", logging.Err(err))
	}
	c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
