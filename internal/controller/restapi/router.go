package restapi

import (
	"github.com/andreyxaxa/Photo-Pipeline/config"
	v1 "github.com/andreyxaxa/Photo-Pipeline/internal/controller/restapi/v1"
	"github.com/andreyxaxa/Photo-Pipeline/internal/usecase"
	"github.com/andreyxaxa/Photo-Pipeline/pkg/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
)

// @title Photo pipeline
// @version 1.0.0
// @host localhost:8080
// @BasePath /v1
func NewRouter(
	app *fiber.App,
	cfg *config.Config,
	project usecase.ProjectUseCase,
	pipeline usecase.PipelineUseCase,
	presence usecase.PresenceUseCase,
	l logger.Interface,
) {
	// Swagger
	if cfg.Swagger.Enabled {
		app.Get("/swagger/*", swagger.HandlerDefault)
	}

	// Routers
	apiV1Group := app.Group("/v1")
	{
		v1.NewProjectRoutes(apiV1Group, project, pipeline, presence, l)
	}
}
