package v1

import (
	"errors"
	"net/http"

	"github.com/andreyxaxa/Photo-Pipeline/internal/controller/restapi/v1/response"
	"github.com/andreyxaxa/Photo-Pipeline/pkg/types/errs"
	"github.com/gofiber/fiber/v2"
)

func errorResponse(ctx *fiber.Ctx, code int, msg string) error {
	return ctx.Status(code).JSON(response.Error{Message: msg})
}

// handleError maps the domain error taxonomy to status codes; everything
// unknown is a 500 with the detail kept in the log.
func (r *V1) handleError(ctx *fiber.Ctx, err error, where string) error {
	var conflict *errs.ConflictError
	if errors.As(err, &conflict) {
		return ctx.Status(http.StatusConflict).JSON(response.Conflict{
			Message:       "project was modified concurrently, refetch and retry",
			ServerVersion: conflict.ServerVersion,
		})
	}

	var limit *errs.EditorLimitError
	if errors.As(err, &limit) {
		return ctx.Status(http.StatusTooManyRequests).JSON(response.EditorLimit{
			Message: "project is at editor capacity",
			Active:  limit.Active,
			Limit:   limit.Limit,
		})
	}

	switch {
	case errors.Is(err, errs.ErrRecordNotFound):
		return errorResponse(ctx, http.StatusNotFound, "not found")
	case errors.Is(err, errs.ErrPermissionDenied):
		return errorResponse(ctx, http.StatusForbidden, "permission denied")
	case errors.Is(err, errs.ErrQuotaDenied):
		return errorResponse(ctx, http.StatusPaymentRequired, "advanced operations quota exceeded")
	case errors.Is(err, errs.ErrUnknownProcedure):
		return errorResponse(ctx, http.StatusBadRequest, "unknown procedure")
	case errors.Is(err, errs.ErrEmptyPipeline):
		return errorResponse(ctx, http.StatusBadRequest, "project has no tools")
	case errors.Is(err, errs.ErrNoImages):
		return errorResponse(ctx, http.StatusBadRequest, "project has no images")
	}

	r.logger.Error(err, where)

	return errorResponse(ctx, http.StatusInternalServerError, "internal problems")
}
