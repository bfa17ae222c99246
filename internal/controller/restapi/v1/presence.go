package v1

import (
	"net/http"

	"github.com/andreyxaxa/Photo-Pipeline/internal/controller/restapi/v1/response"
	"github.com/gofiber/fiber/v2"
)

// @Summary 	Editor heartbeat
// @Description Refreshes the caller's presence slot; denied when the project is at editor capacity
// @Tags 		presence
// @Produce 	json
// @Param 		X-User-ID header string true "Editor id(uuid)"
// @Param 		X-Owner-ID header string false "Project owner when editing a shared project"
// @Param 		id path string true "Project id(uuid)"
// @Success 	200 {object} response.Presence
// @Failure 	429 {object} response.EditorLimit "Editor capacity reached"
// @Router 		/v1/projects/{id}/presence [post]
func (r *V1) heartbeat(ctx *fiber.Ctx) error {
	caller, ok := userID(ctx)
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "X-User-ID header is required")
	}

	owner, ok := ownerID(ctx, caller)
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "invalid X-Owner-ID header")
	}

	projectID, ok := uuidParam(ctx, "id")
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "invalid project id")
	}

	active, err := r.presence.EnsureSlot(ctx.UserContext(), owner, projectID, caller)
	if err != nil {
		return r.handleError(ctx, err, "restapi - v1 - heartbeat")
	}

	return ctx.JSON(response.Presence{Active: active})
}
