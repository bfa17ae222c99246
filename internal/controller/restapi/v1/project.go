package v1

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/andreyxaxa/Photo-Pipeline/internal/controller/restapi/v1/response"
	"github.com/andreyxaxa/Photo-Pipeline/internal/controller/restapi/v1/validate"
	"github.com/andreyxaxa/Photo-Pipeline/internal/dto"
	"github.com/andreyxaxa/Photo-Pipeline/internal/entity"
	"github.com/gofiber/fiber/v2"
)

// @Summary 	Create project
// @Tags 		projects
// @Accept 		json
// @Produce 	json
// @Param 		X-User-ID header string true "Caller id(uuid)"
// @Param 		request body object{name=string} true "Project name"
// @Success 	201 {object} response.Project
// @Failure 	400 {object} response.Error
// @Failure 	500 {object} response.Error
// @Router 		/v1/projects [post]
func (r *V1) createProject(ctx *fiber.Ctx) error {
	caller, ok := userID(ctx)
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "X-User-ID header is required")
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := ctx.BodyParser(&body); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid request body")
	}

	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" {
		return errorResponse(ctx, http.StatusBadRequest, "name is required")
	}
	if len(body.Name) > validate.MaxProjectNameLen {
		return errorResponse(ctx, http.StatusBadRequest,
			fmt.Sprintf("name cant be longer than %d characters", validate.MaxProjectNameLen))
	}

	project, err := r.project.CreateProject(ctx.UserContext(), caller, body.Name)
	if err != nil {
		return r.handleError(ctx, err, "restapi - v1 - createProject")
	}

	return ctx.Status(http.StatusCreated).JSON(response.NewProject(project))
}

// @Summary 	List projects
// @Tags 		projects
// @Produce 	json
// @Param 		X-User-ID header string true "Caller id(uuid)"
// @Success 	200 {array} response.Project
// @Failure 	400 {object} response.Error
// @Failure 	500 {object} response.Error
// @Router 		/v1/projects [get]
func (r *V1) listProjects(ctx *fiber.Ctx) error {
	caller, ok := userID(ctx)
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "X-User-ID header is required")
	}

	projects, err := r.project.ListProjects(ctx.UserContext(), caller)
	if err != nil {
		return r.handleError(ctx, err, "restapi - v1 - listProjects")
	}

	resp := make([]response.Project, 0, len(projects))
	for _, p := range projects {
		resp = append(resp, response.NewProject(p))
	}

	return ctx.JSON(resp)
}

// @Summary 	Get project
// @Tags 		projects
// @Produce 	json
// @Param 		X-User-ID header string true "Caller id(uuid)"
// @Param 		id path string true "Project id(uuid)"
// @Success 	200 {object} response.Project
// @Failure 	404 {object} response.Error
// @Router 		/v1/projects/{id} [get]
func (r *V1) getProject(ctx *fiber.Ctx) error {
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

	project, err := r.project.GetProject(ctx.UserContext(), owner, projectID)
	if err != nil {
		return r.handleError(ctx, err, "restapi - v1 - getProject")
	}

	return ctx.JSON(response.NewProject(project))
}

// @Summary 	Rename project
// @Tags 		projects
// @Accept 		json
// @Produce 	json
// @Param 		X-User-ID header string true "Caller id(uuid)"
// @Param 		X-Project-Version header int true "Expected aggregate version"
// @Param 		id path string true "Project id(uuid)"
// @Param 		request body object{name=string} true "New name"
// @Success 	200 {object} response.Project
// @Failure 	409 {object} response.Conflict "Version mismatch"
// @Router 		/v1/projects/{id} [patch]
func (r *V1) renameProject(ctx *fiber.Ctx) error {
	caller, ok := userID(ctx)
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "X-User-ID header is required")
	}

	projectID, ok := uuidParam(ctx, "id")
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "invalid project id")
	}

	version, ok := expectedVersion(ctx)
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "X-Project-Version header is required")
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := ctx.BodyParser(&body); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid request body")
	}

	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" {
		return errorResponse(ctx, http.StatusBadRequest, "name is required")
	}

	project, err := r.project.RenameProject(ctx.UserContext(), caller, projectID, body.Name, version)
	if err != nil {
		return r.handleError(ctx, err, "restapi - v1 - renameProject")
	}

	return ctx.JSON(response.NewProject(project))
}

// @Summary 	Delete project
// @Description Deletes the aggregate and sweeps processes, results, blobs and presence
// @Tags 		projects
// @Param 		X-User-ID header string true "Caller id(uuid)"
// @Param 		X-Project-Version header int true "Expected aggregate version"
// @Param 		id path string true "Project id(uuid)"
// @Success 	204 "Deleted"
// @Failure 	409 {object} response.Conflict "Version mismatch"
// @Router 		/v1/projects/{id} [delete]
func (r *V1) deleteProject(ctx *fiber.Ctx) error {
	caller, ok := userID(ctx)
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "X-User-ID header is required")
	}

	projectID, ok := uuidParam(ctx, "id")
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "invalid project id")
	}

	version, ok := expectedVersion(ctx)
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "X-Project-Version header is required")
	}

	err := r.project.DeleteProject(ctx.UserContext(), caller, projectID, version)
	if err != nil {
		return r.handleError(ctx, err, "restapi - v1 - deleteProject")
	}

	return ctx.SendStatus(http.StatusNoContent)
}

// @Summary 	Add tool
// @Description Appends a tool to the pipeline; the procedure must exist in the registry
// @Tags 		pipeline
// @Accept 		json
// @Produce 	json
// @Param 		X-User-ID header string true "Caller id(uuid)"
// @Param 		X-Project-Version header int true "Expected aggregate version"
// @Param 		id path string true "Project id(uuid)"
// @Param 		request body dto.ToolInput true "Tool"
// @Success 	200 {object} response.Project
// @Failure 	400 {object} response.Error "Unknown procedure or missing params"
// @Failure 	409 {object} response.Conflict "Version mismatch"
// @Router 		/v1/projects/{id}/tools [post]
func (r *V1) addTool(ctx *fiber.Ctx) error {
	caller, ok := userID(ctx)
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "X-User-ID header is required")
	}

	projectID, ok := uuidParam(ctx, "id")
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "invalid project id")
	}

	version, ok := expectedVersion(ctx)
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "X-Project-Version header is required")
	}

	var body dto.ToolInput
	if err := ctx.BodyParser(&body); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid request body")
	}

	// валидация на границе, до похода в бд
	if err := entity.ValidateTool(body.Procedure, body.Params); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, err.Error())
	}

	project, err := r.project.AddTool(ctx.UserContext(), caller, projectID, body, version)
	if err != nil {
		return r.handleError(ctx, err, "restapi - v1 - addTool")
	}

	return ctx.JSON(response.NewProject(project))
}

// @Summary 	Remove tool
// @Tags 		pipeline
// @Produce 	json
// @Param 		X-User-ID header string true "Caller id(uuid)"
// @Param 		X-Project-Version header int true "Expected aggregate version"
// @Param 		id path string true "Project id(uuid)"
// @Param 		position path int true "Tool position"
// @Success 	200 {object} response.Project
// @Failure 	409 {object} response.Conflict "Version mismatch"
// @Router 		/v1/projects/{id}/tools/{position} [delete]
func (r *V1) removeTool(ctx *fiber.Ctx) error {
	caller, ok := userID(ctx)
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "X-User-ID header is required")
	}

	projectID, ok := uuidParam(ctx, "id")
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "invalid project id")
	}

	position, err := strconv.Atoi(ctx.Params("position"))
	if err != nil || position < 0 {
		return errorResponse(ctx, http.StatusBadRequest, "invalid tool position")
	}

	version, ok := expectedVersion(ctx)
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "X-Project-Version header is required")
	}

	project, err := r.project.RemoveTool(ctx.UserContext(), caller, projectID, position, version)
	if err != nil {
		return r.handleError(ctx, err, "restapi - v1 - removeTool")
	}

	return ctx.JSON(response.NewProject(project))
}

// @Summary 	Reorder tools
// @Description Applies a permutation of current tool positions
// @Tags 		pipeline
// @Accept 		json
// @Produce 	json
// @Param 		X-User-ID header string true "Caller id(uuid)"
// @Param 		X-Project-Version header int true "Expected aggregate version"
// @Param 		id path string true "Project id(uuid)"
// @Param 		request body object{order=[]int} true "Permutation of positions"
// @Success 	200 {object} response.Project
// @Failure 	400 {object} response.Error "Not a permutation"
// @Failure 	409 {object} response.Conflict "Version mismatch"
// @Router 		/v1/projects/{id}/tools/order [put]
func (r *V1) reorderTools(ctx *fiber.Ctx) error {
	caller, ok := userID(ctx)
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "X-User-ID header is required")
	}

	projectID, ok := uuidParam(ctx, "id")
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "invalid project id")
	}

	version, ok := expectedVersion(ctx)
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "X-Project-Version header is required")
	}

	var body struct {
		Order []int `json:"order"`
	}
	if err := ctx.BodyParser(&body); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid request body")
	}

	project, err := r.project.ReorderTools(ctx.UserContext(), caller, projectID, body.Order, version)
	if err != nil {
		return r.handleError(ctx, err, "restapi - v1 - reorderTools")
	}

	return ctx.JSON(response.NewProject(project))
}

// @Summary 	Add image
// @Description Uploads a source image to the blob store and registers it on the aggregate
// @Tags 		images
// @Accept 		mpfd
// @Produce 	json
// @Param 		X-User-ID header string true "Caller id(uuid)"
// @Param 		X-Project-Version header int true "Expected aggregate version"
// @Param 		id path string true "Project id(uuid)"
// @Param 		file formData file true "Image file(jpg, png, webp)"
// @Success 	201 {object} response.Project
// @Failure 	413 {object} response.Error "File too large"
// @Failure 	415 {object} response.Error "Unsupported format"
// @Failure 	409 {object} response.Conflict "Version mismatch"
// @Router 		/v1/projects/{id}/images [post]
func (r *V1) addImage(ctx *fiber.Ctx) error {
	caller, ok := userID(ctx)
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "X-User-ID header is required")
	}

	projectID, ok := uuidParam(ctx, "id")
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "invalid project id")
	}

	version, ok := expectedVersion(ctx)
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "X-Project-Version header is required")
	}

	file, err := ctx.FormFile("file")
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "file is required")
	}

	// 1. валидация размера
	if file.Size == 0 {
		return errorResponse(ctx, http.StatusBadRequest, "file is empty")
	}

	if file.Size > validate.MaxFileSize {
		return errorResponse(ctx, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file size cant be more than %d bytes", validate.MaxFileSize))
	}

	// 2. валидация content type
	contentType := file.Header.Get("Content-Type")
	if !validate.AllowedContentTypes[contentType] {
		return errorResponse(ctx, http.StatusUnsupportedMediaType, "unsupported file type. Allowed: jpeg, png, webp")
	}

	// 3. валидация расширения
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !validate.AllowedExtensions[ext] {
		return errorResponse(ctx, http.StatusUnsupportedMediaType, "unsupported file extension. Allowed: .jpg, .jpeg, .png, .webp")
	}

	fileReader, err := file.Open()
	if err != nil {
		r.logger.Error(err, "restapi - v1 - addImage")

		return errorResponse(ctx, http.StatusInternalServerError, "problems with opening the file")
	}
	defer fileReader.Close()

	project, err := r.project.AddImage(ctx.UserContext(), caller, projectID, fileReader, file.Filename, contentType, file.Size, version)
	if err != nil {
		return r.handleError(ctx, err, "restapi - v1 - addImage")
	}

	return ctx.Status(http.StatusCreated).JSON(response.NewProject(project))
}

// @Summary 	Remove image
// @Tags 		images
// @Produce 	json
// @Param 		X-User-ID header string true "Caller id(uuid)"
// @Param 		X-Project-Version header int true "Expected aggregate version"
// @Param 		id path string true "Project id(uuid)"
// @Param 		imageId path string true "Image id(uuid)"
// @Success 	200 {object} response.Project
// @Failure 	409 {object} response.Conflict "Version mismatch"
// @Router 		/v1/projects/{id}/images/{imageId} [delete]
func (r *V1) removeImage(ctx *fiber.Ctx) error {
	caller, ok := userID(ctx)
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "X-User-ID header is required")
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

	project, err := r.project.RemoveImage(ctx.UserContext(), caller, projectID, imageID, version)
	if err != nil {
		return r.handleError(ctx, err, "restapi - v1 - removeImage")
	}

	return ctx.JSON(response.NewProject(project))
}

// @Summary 	Create share link
// @Tags 		sharing
// @Accept 		json
// @Produce 	json
// @Param 		X-User-ID header string true "Caller id(uuid)"
// @Param 		X-Project-Version header int true "Expected aggregate version"
// @Param 		id path string true "Project id(uuid)"
// @Param 		request body object{permission=string} true "Permission" Enums(read, edit)
// @Success 	201 {object} response.Project
// @Failure 	409 {object} response.Conflict "Version mismatch"
// @Router 		/v1/projects/{id}/share-links [post]
func (r *V1) createShareLink(ctx *fiber.Ctx) error {
	caller, ok := userID(ctx)
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "X-User-ID header is required")
	}

	projectID, ok := uuidParam(ctx, "id")
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "invalid project id")
	}

	version, ok := expectedVersion(ctx)
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "X-Project-Version header is required")
	}

	var body struct {
		Permission string `json:"permission"`
	}
	if err := ctx.BodyParser(&body); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid request body")
	}

	permission := entity.Permission(body.Permission)
	if permission != entity.PermissionRead && permission != entity.PermissionEdit {
		return errorResponse(ctx, http.StatusBadRequest, "permission must be read or edit")
	}

	project, err := r.project.CreateShareLink(ctx.UserContext(), caller, projectID, permission, version)
	if err != nil {
		return r.handleError(ctx, err, "restapi - v1 - createShareLink")
	}

	return ctx.Status(http.StatusCreated).JSON(response.NewProject(project))
}

// @Summary 	Revoke share link
// @Tags 		sharing
// @Produce 	json
// @Param 		X-User-ID header string true "Caller id(uuid)"
// @Param 		X-Project-Version header int true "Expected aggregate version"
// @Param 		id path string true "Project id(uuid)"
// @Param 		linkId path string true "Share link id(uuid)"
// @Success 	200 {object} response.Project
// @Failure 	409 {object} response.Conflict "Version mismatch"
// @Router 		/v1/projects/{id}/share-links/{linkId} [delete]
func (r *V1) revokeShareLink(ctx *fiber.Ctx) error {
	caller, ok := userID(ctx)
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "X-User-ID header is required")
	}

	projectID, ok := uuidParam(ctx, "id")
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "invalid project id")
	}

	linkID, ok := uuidParam(ctx, "linkId")
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "invalid share link id")
	}

	version, ok := expectedVersion(ctx)
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "X-Project-Version header is required")
	}

	project, err := r.project.RevokeShareLink(ctx.UserContext(), caller, projectID, linkID, version)
	if err != nil {
		return r.handleError(ctx, err, "restapi - v1 - revokeShareLink")
	}

	return ctx.JSON(response.NewProject(project))
}
