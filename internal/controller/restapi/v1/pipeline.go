package v1

import (
	"net/http"

	"github.com/andreyxaxa/Photo-Pipeline/internal/controller/restapi/v1/response"
	"github.com/andreyxaxa/Photo-Pipeline/internal/dto"
	"github.com/andreyxaxa/Photo-Pipeline/internal/entity"
	"github.com/gofiber/fiber/v2"
)

// @Summary 	Run pipeline
// @Description Reconciles the advanced-tool quota and dispatches step 0 for every image
// @Tags 		runs
// @Param 		X-User-ID header string true "Runner id(uuid)"
// @Param 		X-Owner-ID header string false "Project owner when running a shared project"
// @Param 		X-Share-Link header string false "Edit share link id(uuid)"
// @Param 		X-Project-Version header int true "Expected aggregate version"
// @Param 		id path string true "Project id(uuid)"
// @Success 	202 "Run started"
// @Failure 	400 {object} response.Error "Empty pipeline or no images"
// @Failure 	402 {object} response.Error "Quota denied"
// @Failure 	409 {object} response.Conflict "Version mismatch"
// @Router 		/v1/projects/{id}/run [post]
func (r *V1) runPipeline(ctx *fiber.Ctx) error {
	caller, ok := userID(ctx)
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "X-User-ID header is required")
	}

	owner, ok := ownerID(ctx, caller)
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "invalid X-Owner-ID header")
	}

	link, ok := shareLinkID(ctx)
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "invalid X-Share-Link header")
	}

	projectID, ok := uuidParam(ctx, "id")
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "invalid project id")
	}

	version, ok := expectedVersion(ctx)
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "X-Project-Version header is required")
	}

	err := r.pipeline.Run(ctx.UserContext(), owner, projectID, dto.RunInput{
		RunnerID:        caller,
		ShareLinkID:     link,
		ExpectedVersion: version,
	})
	if err != nil {
		return r.handleError(ctx, err, "restapi - v1 - runPipeline")
	}

	return ctx.SendStatus(http.StatusAccepted)
}

// @Summary 	Preview image
// @Description Runs the pipeline for one image into the preview namespace; cache hits bypass the pipeline
// @Tags 		runs
// @Param 		X-User-ID header string true "Runner id(uuid)"
// @Param 		X-Owner-ID header string false "Project owner when previewing a shared project"
// @Param 		X-Share-Link header string false "Edit share link id(uuid)"
// @Param 		X-Project-Version header int true "Expected aggregate version"
// @Param 		id path string true "Project id(uuid)"
// @Param 		imageId path string true "Image id(uuid)"
// @Success 	202 "Preview started or served from cache"
// @Failure 	402 {object} response.Error "Quota denied"
// @Failure 	409 {object} response.Conflict "Version mismatch"
// @Router 		/v1/projects/{id}/images/{imageId}/preview [post]
func (r *V1) previewImage(ctx *fiber.Ctx) error {
	caller, ok := userID(ctx)
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "X-User-ID header is required")
	}

	owner, ok := ownerID(ctx, caller)
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "invalid X-Owner-ID header")
	}

	link, ok := shareLinkID(ctx)
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "invalid X-Share-Link header")
	}

	projectID, ok := uuidParam(ctx, "id")
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "invalid project id")
	}

	imageID, ok := uuidParam(ctx, "imageId")
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "invalid image id")
	}

	version, ok := expectedVersion(ctx)
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "X-Project-Version header is required")
	}

	err := r.pipeline.Preview(ctx.UserContext(), owner, projectID, imageID, dto.RunInput{
		RunnerID:        caller,
		ShareLinkID:     link,
		ExpectedVersion: version,
	})
	if err != nil {
		return r.handleError(ctx, err, "restapi - v1 - previewImage")
	}

	return ctx.SendStatus(http.StatusAccepted)
}

// @Summary 	Cancel run
// @Description Drops outstanding processes and refunds the in-flight quota charge; idempotent
// @Tags 		runs
// @Param 		X-User-ID header string true "Caller id(uuid)"
// @Param 		X-Owner-ID header string false "Project owner when cancelling a shared project"
// @Param 		id path string true "Project id(uuid)"
// @Success 	204 "Cancelled"
// @Failure 	500 {object} response.Error
// @Router 		/v1/projects/{id}/cancel [post]
func (r *V1) cancelRun(ctx *fiber.Ctx) error {
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

	err := r.pipeline.Cancel(ctx.UserContext(), owner, projectID)
	if err != nil {
		return r.handleError(ctx, err, "restapi - v1 - cancelRun")
	}

	return ctx.SendStatus(http.StatusNoContent)
}

// @Summary 	List results
// @Tags 		runs
// @Produce 	json
// @Param 		X-User-ID header string true "Caller id(uuid)"
// @Param 		id path string true "Project id(uuid)"
// @Param 		kind query string false "result or preview" default(result)
// @Success 	200 {array} response.Result
// @Failure 	400 {object} response.Error
// @Router 		/v1/projects/{id}/results [get]
func (r *V1) listResults(ctx *fiber.Ctx) error {
	caller, ok := userID(ctx)
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "X-User-ID header is required")
	}

	projectID, ok := uuidParam(ctx, "id")
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "invalid project id")
	}

	kind := entity.ResultKind(ctx.Query("kind", string(entity.KindResult)))
	if kind != entity.KindResult && kind != entity.KindPreview {
		return errorResponse(ctx, http.StatusBadRequest, "kind must be result or preview")
	}

	results, err := r.project.ListResults(ctx.UserContext(), caller, projectID, kind)
	if err != nil {
		return r.handleError(ctx, err, "restapi - v1 - listResults")
	}

	resp := make([]response.Result, 0, len(results))
	for _, res := range results {
		resp = append(resp, response.NewResult(res))
	}

	return ctx.JSON(resp)
}
