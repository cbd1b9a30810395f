package handlers

import (
	"github.com/axisops/releasehub/internal/audit"
	"github.com/axisops/releasehub/internal/catalog"
	"github.com/axisops/releasehub/internal/services"
	"github.com/axisops/releasehub/internal/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// CatalogHandler handles catalogue registry and hierarchy routes
type CatalogHandler struct {
	DB *gorm.DB
}

// ListModules handles GET /api/catalog/modules
// @Summary List registered modules
// @Description List every registered module label with its model names
// @Tags Catalog
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /catalog/modules [get]
func (h *CatalogHandler) ListModules(c *fiber.Ctx) error {
	modules := make(map[string][]string)
	for _, label := range catalog.KnownLabels() {
		modules[label] = catalog.ModelsFor(label)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"modules":   modules,
		"core_apps": catalog.CoreAppLabels,
	})
}

type reparentRequest struct {
	ParentLabel *string `json:"parent_label"`
	ParentID    *uint64 `json:"parent_id"`
}

// ReparentApplication handles POST /api/catalog/apps/:label/parent
// @Summary Re-parent an application
// @Description Move an application under a new parent, rejecting cycles
// @Tags Catalog
// @Accept json
// @Produce json
// @Param label path string true "Application label"
// @Param body body reparentRequest true "New parent"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /catalog/apps/{label}/parent [post]
func (h *CatalogHandler) ReparentApplication(c *fiber.Ctx) error {
	label := c.Params("label")
	var req reparentRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ValidationErrorResponse(c, "invalid request body")
	}

	db := audit.WithActor(h.DB, actorFrom(c))
	if err := services.ReparentApplication(db, label, req.ParentLabel); err != nil {
		return domainErrorResponse(c, err, "reparentApplication")
	}
	return utils.MutationSuccessResponse(c, fiber.Map{"app_label": label}, fiber.StatusOK)
}

// ReparentCoding handles POST /api/catalog/codings/:id/parent
// @Summary Re-parent a coding
// @Tags Catalog
// @Accept json
// @Produce json
// @Param id path int true "Coding ID"
// @Param body body reparentRequest true "New parent"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /catalog/codings/{id}/parent [post]
func (h *CatalogHandler) ReparentCoding(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return domainErrorResponse(c, err, "reparentCoding")
	}
	var req reparentRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ValidationErrorResponse(c, "invalid request body")
	}

	db := audit.WithActor(h.DB, actorFrom(c))
	if err := services.ReparentCoding(db, id, req.ParentID); err != nil {
		return domainErrorResponse(c, err, "reparentCoding")
	}
	return utils.MutationSuccessResponse(c, fiber.Map{"coding_id": id}, fiber.StatusOK)
}

// ReparentCodingCategory handles POST /api/catalog/coding-categories/:id/parent
// @Summary Re-parent a coding category
// @Tags Catalog
// @Accept json
// @Produce json
// @Param id path int true "Category ID"
// @Param body body reparentRequest true "New parent"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /catalog/coding-categories/{id}/parent [post]
func (h *CatalogHandler) ReparentCodingCategory(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return domainErrorResponse(c, err, "reparentCodingCategory")
	}
	var req reparentRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ValidationErrorResponse(c, "invalid request body")
	}

	db := audit.WithActor(h.DB, actorFrom(c))
	if err := services.ReparentCodingCategory(db, id, req.ParentID); err != nil {
		return domainErrorResponse(c, err, "reparentCodingCategory")
	}
	return utils.MutationSuccessResponse(c, fiber.Map{"category_id": id}, fiber.StatusOK)
}
