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

// UpdateHandler handles incremental update routes
type UpdateHandler struct {
	DB  *gorm.DB
	Cfg *config.Config
}

type updateItemRequest struct {
	ItemType     string  `json:"item_type"`
	ChangeType   string  `json:"change_type"`
	AppLabel     *string `json:"app_label"`
	DescriptorID *uint64 `json:"descriptor_id"`
	FilePath     string  `json:"file_path"`
	Description  string  `json:"description"`
	Order        int     `json:"order"`
}

func (r updateItemRequest) toInput() services.UpdateItemInput {
	return services.UpdateItemInput{
		ItemType:     r.ItemType,
		ChangeType:   r.ChangeType,
		AppLabel:     r.AppLabel,
		DescriptorID: r.DescriptorID,
		FilePath:     r.FilePath,
		Description:  r.Description,
		Order:        r.Order,
	}
}

type createUpdateRequest struct {
	Name                 string              `json:"name"`
	Version              string              `json:"version"`
	BaseReleaseID        types.FlexUint64    `json:"base_release_id"`
	UpdateType           string              `json:"update_type"`
	Description          string              `json:"description"`
	Changelog            string              `json:"changelog"`
	RequiresMigration    bool                `json:"requires_migration"`
	IsMandatory          bool                `json:"is_mandatory"`
	MinCompatibleVersion string              `json:"min_compatible_version"`
	Items                []updateItemRequest `json:"items"`
}

// CreateUpdate handles POST /api/updates
// @Summary Create an update
// @Description Create a draft update with its initial change items
// @Tags Updates
// @Accept json
// @Produce json
// @Param body body createUpdateRequest true "Update definition"
// @Success 201 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /updates [post]
func (h *UpdateHandler) CreateUpdate(c *fiber.Ctx) error {
	var req createUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ValidationErrorResponse(c, "invalid request body")
	}

	input := services.CreateUpdateInput{
		Name:                 req.Name,
		Version:              req.Version,
		BaseReleaseID:        req.BaseReleaseID.Uint64(),
		UpdateType:           req.UpdateType,
		Description:          req.Description,
		Changelog:            req.Changelog,
		RequiresMigration:    req.RequiresMigration,
		IsMandatory:          req.IsMandatory,
		MinCompatibleVersion: req.MinCompatibleVersion,
		CreatedBy:            actorFrom(c),
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, item.toInput())
	}

	db := audit.WithActor(h.DB, actorFrom(c))
	update, err := services.CreateUpdate(db, input)
	if err != nil {
		return domainErrorResponse(c, err, "createUpdate")
	}

	return utils.MutationSuccessResponse(c, update, fiber.StatusCreated)
}

// AddUpdateItem handles POST /api/updates/:id/items
// @Summary Add an update item
// @Description Append a change item to a draft or testing update
// @Tags Updates
// @Accept json
// @Produce json
// @Param id path int true "Update ID"
// @Param body body updateItemRequest true "Item"
// @Success 201 {object} utils.SuccessResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /updates/{id}/items [post]
func (h *UpdateHandler) AddUpdateItem(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return domainErrorResponse(c, err, "addUpdateItem")
	}
	var req updateItemRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ValidationErrorResponse(c, "invalid request body")
	}

	db := audit.WithActor(h.DB, actorFrom(c))
	item, err := services.AddUpdateItem(db, id, req.toInput())
	if err != nil {
		return domainErrorResponse(c, err, "addUpdateItem")
	}

	return utils.MutationSuccessResponse(c, item, fiber.StatusCreated)
}

// GenerateUpdatePackage handles POST /api/updates/:id/package
// @Summary Generate an update package
// @Description Build the update's archive and mark it ready
// @Tags Updates
// @Produce json
// @Param id path int true "Update ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /updates/{id}/package [post]
func (h *UpdateHandler) GenerateUpdatePackage(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return domainErrorResponse(c, err, "generateUpdatePackage")
	}

	db := audit.WithActor(h.DB, actorFrom(c))
	path, err := services.GenerateUpdatePackage(db, h.Cfg.ExportDir, id, actorFrom(c))
	if err != nil {
		return domainErrorResponse(c, err, "generateUpdatePackage")
	}

	return utils.MutationSuccessResponse(c, fiber.Map{"file": path}, fiber.StatusOK)
}

// ValidateCompatibility handles GET /api/updates/:id/compatibility/:beneficiaryId
// @Summary Check update compatibility
// @Description Check whether an update can be applied to a beneficiary's active release
// @Tags Updates
// @Produce json
// @Param id path int true "Update ID"
// @Param beneficiaryId path int true "Beneficiary ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /updates/{id}/compatibility/{beneficiaryId} [get]
func (h *UpdateHandler) ValidateCompatibility(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return domainErrorResponse(c, err, "validateCompatibility")
	}
	beneficiaryID, err := parseIDParam(c, "beneficiaryId")
	if err != nil {
		return domainErrorResponse(c, err, "validateCompatibility")
	}

	result, err := services.ValidateCompatibility(h.DB, id, beneficiaryID)
	if err != nil {
		return domainErrorResponse(c, err, "validateCompatibility")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"compatible": result.Compatible,
		"message":    result.Message,
	})
}

type applyUpdateRequest struct {
	BeneficiaryIDs types.FlexList[types.FlexUint64] `json:"beneficiary_ids"`
	ScheduledAt    *time.Time                       `json:"scheduled_at"`
	Notes          string                           `json:"notes"`
}

// ApplyUpdate handles POST /api/updates/:id/apply
// @Summary Apply an update
// @Description Attach a ready or deployed update to each beneficiary's active release
// @Tags Updates
// @Accept json
// @Produce json
// @Param id path int true "Update ID"
// @Param body body applyUpdateRequest true "Targets"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /updates/{id}/apply [post]
func (h *UpdateHandler) ApplyUpdate(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return domainErrorResponse(c, err, "applyUpdate")
	}
	var req applyUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ValidationErrorResponse(c, "invalid request body")
	}
	if len(req.BeneficiaryIDs) == 0 {
		return utils.ValidationErrorResponse(c, "beneficiary_ids is required")
	}

	beneficiaryIDs := make([]uint64, 0, len(req.BeneficiaryIDs))
	for _, fid := range req.BeneficiaryIDs {
		beneficiaryIDs = append(beneficiaryIDs, fid.Uint64())
	}

	db := audit.WithActor(h.DB, actorFrom(c))
	created, err := services.ApplyUpdate(db, id, beneficiaryIDs, req.ScheduledAt, req.Notes, actorFrom(c))
	if err != nil {
		return domainErrorResponse(c, err, "applyUpdate")
	}

	return utils.MutationSuccessResponse(c, fiber.Map{
		"created": created,
		"count":   len(created),
	}, fiber.StatusOK)
}

// CompleteClientUpdate handles POST /api/client-updates/:id/complete
// @Summary Mark a client update completed
// @Tags Updates
// @Produce json
// @Param id path int true "Client update ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /client-updates/{id}/complete [post]
func (h *UpdateHandler) CompleteClientUpdate(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return domainErrorResponse(c, err, "completeClientUpdate")
	}

	db := audit.WithActor(h.DB, actorFrom(c))
	row, err := services.MarkUpdateCompleted(db, id, actorFrom(c))
	if err != nil {
		return domainErrorResponse(c, err, "completeClientUpdate")
	}

	return utils.MutationSuccessResponse(c, row, fiber.StatusOK)
}

type failClientUpdateRequest struct {
	ErrorMessage string `json:"error_message"`
}

// FailClientUpdate handles POST /api/client-updates/:id/fail
// @Summary Mark a client update failed
// @Tags Updates
// @Accept json
// @Produce json
// @Param id path int true "Client update ID"
// @Param body body failClientUpdateRequest false "Failure detail"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /client-updates/{id}/fail [post]
func (h *UpdateHandler) FailClientUpdate(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return domainErrorResponse(c, err, "failClientUpdate")
	}
	var req failClientUpdateRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return utils.ValidationErrorResponse(c, "invalid request body")
	}

	db := audit.WithActor(h.DB, actorFrom(c))
	row, err := services.MarkUpdateFailed(db, id, req.ErrorMessage, actorFrom(c))
	if err != nil {
		return domainErrorResponse(c, err, "failClientUpdate")
	}

	return utils.MutationSuccessResponse(c, row, fiber.StatusOK)
}

// RollbackClientUpdate handles POST /api/client-updates/:id/rollback
// @Summary Roll back a client update
// @Description Revert a completed, failed, or in-progress client update; single use
// @Tags Updates
// @Produce json
// @Param id path int true "Client update ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /client-updates/{id}/rollback [post]
func (h *UpdateHandler) RollbackClientUpdate(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return domainErrorResponse(c, err, "rollbackClientUpdate")
	}

	db := audit.WithActor(h.DB, actorFrom(c))
	row, err := services.RollbackUpdate(db, id, actorFrom(c))
	if err != nil {
		return domainErrorResponse(c, err, "rollbackClientUpdate")
	}

	return utils.MutationSuccessResponse(c, row, fiber.StatusOK)
}

// PendingUpdates handles GET /api/beneficiaries/:id/pending-updates
// @Summary List pending updates for a beneficiary
// @Description List ready or deployed updates for the beneficiary's active release not yet applied
// @Tags Updates
// @Produce json
// @Param id path int true "Beneficiary ID"
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /beneficiaries/{id}/pending-updates [get]
func (h *UpdateHandler) PendingUpdates(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return domainErrorResponse(c, err, "pendingUpdates")
	}

	updates, err := services.GetPendingUpdatesForBeneficiary(h.DB, id)
	if err != nil {
		return domainErrorResponse(c, err, "pendingUpdates")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"updates": updates,
		"count":   len(updates),
	})
}

// UpdateStats handles GET /api/updates/:id/stats
// @Summary Deployment statistics for an update
// @Tags Updates
// @Produce json
// @Param id path int true "Update ID"
// @Success 200 {object} services.UpdateStats
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /updates/{id}/stats [get]
func (h *UpdateHandler) UpdateStats(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return domainErrorResponse(c, err, "updateStats")
	}

	stats, err := services.GetUpdateStats(h.DB, id)
	if err != nil {
		return domainErrorResponse(c, err, "updateStats")
	}

	return c.Status(fiber.StatusOK).JSON(stats)
}
