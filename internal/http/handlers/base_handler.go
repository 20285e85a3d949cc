// README: Shared error mapping. Every rejected intent reports its kind plus
// the order's actual status so the caller can re-render true state.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"medrush/internal/modules/order"
	"medrush/internal/modules/rider"
	"medrush/internal/types"
)

func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, order.ErrBadRequest), errors.Is(err, rider.ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, rider.ErrNotFound):
		return http.StatusNotFound, "rider_not_found"
	case errors.Is(err, order.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, order.ErrAlreadyClaimed):
		return http.StatusConflict, "already_claimed"
	case errors.Is(err, order.ErrContention):
		return http.StatusConflict, "contention"
	case errors.Is(err, order.ErrPreconditionFailed):
		return http.StatusUnprocessableEntity, "precondition_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(c *gin.Context, err error) {
	code, kind := statusForError(err)
	c.JSON(code, gin.H{"error": kind})
}

// writeOrderError includes the order's current status alongside the failure
// kind when the order still exists.
func writeOrderError(c *gin.Context, svc *order.Service, id types.ID, err error) {
	code, kind := statusForError(err)
	body := gin.H{"error": kind}
	if o, getErr := svc.Get(c.Request.Context(), id); getErr == nil {
		body["status"] = o.Status
	}
	c.JSON(code, body)
}
