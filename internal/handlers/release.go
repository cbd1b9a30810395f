package handlers

import (
	"time"

	"github.com/axisops/releasehub/internal/audit"
	"github.com/axisops/releasehub/internal/config"
	"github.com/axisops/releasehub/internal/services"
	"github.com/axisops/releasehub/internal/types"
	"github.com/axisops/releasehub/internal/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// ReleaseHandler handles release composition, assignment, and export routes
type ReleaseHandler struct {
	DB  *gorm.DB
	Cfg *config.Config
}

type createReleaseRequest struct {
	Name          string                 `json:"name"`
	Version       string                 `json:"version"`
	Description   string                 `json:"description"`
	BaseReleaseID *uint64                `json:"base_release_id"`
	BusinessApps  types.FlexList[string] `json:"business_apps"`
}

// CreateRelease handles POST /api/releases
// @Summary Create a release
// @Description Create a draft release containing all core apps plus the requested business apps
// @Tags Releases
// @Accept json
// @Produce json
// @Param body body createReleaseRequest true "Release definition"
// @Success 201 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /releases [post]
func (h *ReleaseHandler) CreateRelease(c *fiber.Ctx) error {
	var req createReleaseRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ValidationErrorResponse(c, "invalid request body")
	}

	db := audit.WithActor(h.DB, actorFrom(c))
	release, err := services.CreateRelease(db, services.CreateReleaseInput{
		Name:          req.Name,
		Version:       req.Version,
		Description:   req.Description,
		BaseReleaseID: req.BaseReleaseID,
		BusinessApps:  req.BusinessApps.Slice(),
	})
	if err != nil {
		return domainErrorResponse(c, err, "createRelease")
	}

	return utils.MutationSuccessResponse(c, release, fiber.StatusCreated)
}

// ActivateRelease handles POST /api/releases/:id/activate
// @Summary Activate a release
// @Description Publish a draft release after verifying every core app is attached
// @Tags Releases
// @Produce json
// @Param id path int true "Release ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /releases/{id}/activate [post]
func (h *ReleaseHandler) ActivateRelease(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return domainErrorResponse(c, err, "activateRelease")
	}

	db := audit.WithActor(h.DB, actorFrom(c))
	release, err := services.ActivateRelease(db, id)
	if err != nil {
		return domainErrorResponse(c, err, "activateRelease")
	}

	return utils.MutationSuccessResponse(c, release, fiber.StatusOK)
}

type assignReleaseRequest struct {
	BeneficiaryID types.FlexUint64 `json:"beneficiary_id"`
	ActiveFrom    *time.Time       `json:"active_from"`
}

// AssignRelease handles POST /api/releases/:id/assign
// @Summary Assign a release to a client
// @Description Make a published release the client's single active release
// @Tags Releases
// @Accept json
// @Produce json
// @Param id path int true "Release ID"
// @Param body body assignReleaseRequest true "Assignment"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /releases/{id}/assign [post]
func (h *ReleaseHandler) AssignRelease(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return domainErrorResponse(c, err, "assignRelease")
	}
	var req assignReleaseRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ValidationErrorResponse(c, "invalid request body")
	}
	if req.BeneficiaryID == 0 {
		return utils.ValidationErrorResponse(c, "beneficiary_id is required")
	}

	db := audit.WithActor(h.DB, actorFrom(c))
	assignment, err := services.AssignToClient(db, id, req.BeneficiaryID.Uint64(), req.ActiveFrom)
	if err != nil {
		return domainErrorResponse(c, err, "assignRelease")
	}

	return utils.MutationSuccessResponse(c, assignment, fiber.StatusOK)
}

// ExportReleaseData handles POST /api/releases/:id/export/data
// @Summary Export release data
// @Description Generate the release's JSON data manifest and publish the release
// @Tags Releases
// @Produce json
// @Param id path int true "Release ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /releases/{id}/export/data [post]
func (h *ReleaseHandler) ExportReleaseData(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return domainErrorResponse(c, err, "exportReleaseData")
	}

	db := audit.WithActor(h.DB, actorFrom(c))
	svc, err := services.NewExportService(db, h.Cfg.ExportDir, id)
	if err != nil {
		return domainErrorResponse(c, err, "exportReleaseData")
	}
	path, err := svc.GenerateExport()
	if err != nil {
		return domainErrorResponse(c, err, "exportReleaseData")
	}

	return utils.MutationSuccessResponse(c, fiber.Map{"file": path}, fiber.StatusOK)
}

// ExportReleaseSource handles POST /api/releases/:id/export/source
// @Summary Export release source
// @Description Generate the pruned source archive for the release's licensed app set
// @Tags Releases
// @Produce json
// @Param id path int true "Release ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /releases/{id}/export/source [post]
func (h *ReleaseHandler) ExportReleaseSource(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return domainErrorResponse(c, err, "exportReleaseSource")
	}

	db := audit.WithActor(h.DB, actorFrom(c))
	svc, err := services.NewExportService(db, h.Cfg.ExportDir, id)
	if err != nil {
		return domainErrorResponse(c, err, "exportReleaseSource")
	}
	path, err := svc.GenerateSourceExport(h.Cfg.SourceRoot)
	if err != nil {
		return domainErrorResponse(c, err, "exportReleaseSource")
	}

	return utils.MutationSuccessResponse(c, fiber.Map{"file": path}, fiber.StatusOK)
}
