package catalog

import (
	"fmt"

	"github.com/axisops/releasehub/internal/models"
	"gorm.io/gorm"
)

// CoreAppLabels is the seeding allowlist for mandatory modules. The
// Application.IsCore flag is the source of truth at runtime; this list only
// backfills catalogues migrated before the flag existed and must agree with it.
var CoreAppLabels = []string{"users", "activity_logs", "clients", "apps"}

// registry maps each module label to the data-entity types it owns. The
// release composer and permission seeding read this instead of reflecting
// over a live schema registry.
var registry = map[string][]string{
	"users":         {"user", "group", "role", "permission"},
	"clients":       {"beneficiary", "level", "structure"},
	"apps":          {"apptype", "app", "appversion"},
	"codings":       {"codingcategory", "coding"},
	"activity_logs": {"activitylog"},
	"releases":      {"release", "releaseapp", "releasemodel", "clientrelease", "update", "updateitem", "clientupdate", "updatelog"},
	"crm":           {"customer", "contact", "lead", "opportunity", "note"},
}

// permissionActions mirrors the conventional per-model capability set.
var permissionActions = []string{"add", "view", "change", "delete"}

// KnownLabels returns every registered module label.
func KnownLabels() []string {
	labels := make([]string, 0, len(registry))
	for label := range registry {
		labels = append(labels, label)
	}
	return labels
}

// ModelsFor returns the model names registered under a module label.
func ModelsFor(label string) []string {
	return registry[label]
}

// IsKnownLabel reports whether label is a registered module.
func IsKnownLabel(label string) bool {
	_, ok := registry[label]
	return ok
}

// Seed idempotently creates the ModelDescriptor row for every registered
// model and the four capability Permission rows per descriptor. Run at
// startup after migrations.
func Seed(db *gorm.DB) error {
	for label, modelNames := range registry {
		for _, modelName := range modelNames {
			descriptor := models.ModelDescriptor{AppLabel: label, Model: modelName}
			if err := db.Where("app_label = ? AND model = ?", label, modelName).
				FirstOrCreate(&descriptor).Error; err != nil {
				return fmt.Errorf("failed to seed descriptor %s.%s: %w", label, modelName, err)
			}

			for _, action := range permissionActions {
				perm := models.Permission{
					Codename:     fmt.Sprintf("%s_%s", action, modelName),
					Name:         fmt.Sprintf("Can %s %s", action, modelName),
					DescriptorID: descriptor.DescriptorID,
				}
				if err := db.Where("codename = ? AND descriptor_id = ?", perm.Codename, descriptor.DescriptorID).
					FirstOrCreate(&perm).Error; err != nil {
					return fmt.Errorf("failed to seed permission %s: %w", perm.Codename, err)
				}
			}
		}
	}
	return nil
}
