package v1

import (
	"github.com/andreyxaxa/Photo-Pipeline/internal/usecase"
	"github.com/andreyxaxa/Photo-Pipeline/pkg/logger"
	"github.com/gofiber/fiber/v2"
)

func NewProjectRoutes(
	apiV1Group fiber.Router,
	project usecase.ProjectUseCase,
	pipeline usecase.PipelineUseCase,
	presence usecase.PresenceUseCase,
	l logger.Interface,
) {
	r := &V1{project: project, pipeline: pipeline, presence: presence, logger: l}

	{
		// Projects
		apiV1Group.Post("/projects", r.createProject)
		apiV1Group.Get("/projects", r.listProjects)
		apiV1Group.Get("/projects/:id", r.getProject)
		apiV1Group.Patch("/projects/:id", r.renameProject)
		apiV1Group.Delete("/projects/:id", r.deleteProject)

		// Pipeline editing
		apiV1Group.Post("/projects/:id/tools", r.addTool)
		apiV1Group.Delete("/projects/:id/tools/:position", r.removeTool)
		apiV1Group.Put("/projects/:id/tools/order", r.reorderTools)

		// Images
		apiV1Group.Post("/projects/:id/images", r.addImage)
		apiV1Group.Delete("/projects/:id/images/:imageId", r.removeImage)

		// Sharing
		apiV1Group.Post("/projects/:id/share-links", r.createShareLink)
		apiV1Group.Delete("/projects/:id/share-links/:linkId", r.revokeShareLink)

		// Runs
		apiV1Group.Post("/projects/:id/run", r.runPipeline)
		apiV1Group.Post("/projects/:id/images/:imageId/preview", r.previewImage)
		apiV1Group.Post("/projects/:id/cancel", r.cancelRun)
		apiV1Group.Get("/projects/:id/results", r.listResults)

		// Presence
		apiV1Group.Post("/projects/:id/presence", r.heartbeat)
	}
}
