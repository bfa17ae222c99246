package v1

import (
	"strconv"

	"github.com/andreyxaxa/Photo-Pipeline/internal/usecase"
	"github.com/andreyxaxa/Photo-Pipeline/pkg/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Identity and concurrency-control headers. Authentication itself lives at
// the gateway; the service trusts the forwarded user id.
const (
	HeaderUserID         = "X-User-ID"
	HeaderOwnerID        = "X-Owner-ID"
	HeaderShareLink      = "X-Share-Link"
	HeaderProjectVersion = "X-Project-Version"
)

type V1 struct {
	project  usecase.ProjectUseCase
	pipeline usecase.PipelineUseCase
	presence usecase.PresenceUseCase
	logger   logger.Interface
}

func userID(ctx *fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Get(HeaderUserID))
	if err != nil {
		return uuid.Nil, false
	}

	return id, true
}

// ownerID resolves the project owner: the caller by default, the X-Owner-ID
// header when acting on a shared project.
func ownerID(ctx *fiber.Ctx, caller uuid.UUID) (uuid.UUID, bool) {
	raw := ctx.Get(HeaderOwnerID)
	if raw == "" {
		return caller, true
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}

	return id, true
}

func shareLinkID(ctx *fiber.Ctx) (*uuid.UUID, bool) {
	raw := ctx.Get(HeaderShareLink)
	if raw == "" {
		return nil, true
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, false
	}

	return &id, true
}

func expectedVersion(ctx *fiber.Ctx) (int64, bool) {
	v, err := strconv.ParseInt(ctx.Get(HeaderProjectVersion), 10, 64)
	if err != nil || v < 0 {
		return 0, false
	}

	return v, true
}

func uuidParam(ctx *fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Params(name))
	if err != nil {
		return uuid.Nil, false
	}

	return id, true
}
