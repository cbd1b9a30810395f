package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/axisops/releasehub/internal/models"
	"github.com/axisops/releasehub/internal/types"
	"gorm.io/gorm"
)

// ReleaseManifest is the portable data-export document for one release.
type ReleaseManifest struct {
	Release       ManifestRelease       `json:"release"`
	Beneficiaries []ManifestBeneficiary `json:"beneficiaries"`
	Apps          []ManifestApp         `json:"apps"`
	Groups        []ManifestGroup       `json:"groups"`
	Users         []ManifestUser        `json:"users"`
}

// ManifestRelease is the manifest's release metadata section.
type ManifestRelease struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
	Date        string `json:"date"`
	GeneratedAt string `json:"generated_at"`
}

// ManifestBeneficiary describes one eligible beneficiary with its structures.
type ManifestBeneficiary struct {
	PublicName  string              `json:"public_name"`
	PrivateName string              `json:"private_name"`
	Structures  []ManifestStructure `json:"structures"`
	Levels      []ManifestLevel     `json:"levels"`
}

// ManifestStructure is one organizational unit row.
type ManifestStructure struct {
	Name        string `json:"name"`
	IsBranch    bool   `json:"is_branch"`
	Description string `json:"description"`
	LevelName   string `json:"level_name"`
}

// ManifestLevel is one hierarchy level row.
type ManifestLevel struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ManifestApp describes one attached application with its codings and
// app-scoped permissions.
type ManifestApp struct {
	Label       string               `json:"label"`
	Name        string               `json:"name"`
	IsCore      bool                 `json:"is_core"`
	URL         string               `json:"url"`
	Codings     []interface{}        `json:"codings"`
	Permissions []ManifestPermission `json:"permissions"`
}

// ManifestPermission is one permission row.
type ManifestPermission struct {
	Codename string `json:"codename"`
	Name     string `json:"name"`
}

// ManifestGroup is one eligible group with flattened permission codenames.
type ManifestGroup struct {
	Name        string   `json:"name"`
	IsRole      bool     `json:"is_role"`
	Permissions []string `json:"permissions"`
}

// ManifestUser is one eligible user with role names and direct permissions.
type ManifestUser struct {
	Username          string   `json:"username"`
	Email             string   `json:"email"`
	FirstName         string   `json:"first_name"`
	LastName          string   `json:"last_name"`
	Roles             []string `json:"roles"`
	DirectPermissions []string `json:"direct_permissions"`
}

// ExportService produces data and source exports for one release.
type ExportService struct {
	DB        *gorm.DB
	ExportDir string
	Release   *models.Release
}

// NewExportService loads the release and returns an exporter bound to it.
func NewExportService(db *gorm.DB, exportDir string, releaseID uint64) (*ExportService, error) {
	var release models.Release
	if err := db.First(&release, releaseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &types.NotFoundError{Entity: "release", ID: releaseID}
		}
		return nil, err
	}
	return &ExportService{DB: db, ExportDir: exportDir, Release: &release}, nil
}

// GenerateExport builds the release's data manifest, stores it as a JSON
// document under the export directory, and publishes the release. The
// snapshot is read-only except for the release's own artifact reference and
// status, which are persisted only after the file is completely written.
func (s *ExportService) GenerateExport() (string, error) {
	now := time.Now().UTC()

	manifest := ReleaseManifest{
		Release: ManifestRelease{
			Name:        s.Release.Name,
			Description: s.Release.Description,
			Version:     s.Release.Version,
			Date:        s.Release.ReleaseDate.Format(time.RFC3339),
			GeneratedAt: now.Format(time.RFC3339),
		},
	}

	var err error
	if manifest.Beneficiaries, err = s.beneficiariesData(); err != nil {
		return "", err
	}
	if manifest.Apps, err = s.appsData(); err != nil {
		return "", err
	}
	if manifest.Groups, err = s.groupsData(); err != nil {
		return "", err
	}
	if manifest.Users, err = s.usersData(); err != nil {
		return "", err
	}

	content, err := json.MarshalIndent(manifest, "", "    ")
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.ExportDir, 0o755); err != nil {
		return "", err
	}
	filename := fmt.Sprintf("release_%d_%s.json", s.Release.ReleaseID, now.Format("20060102150405"))
	path := filepath.Join(s.ExportDir, filename)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", err
	}

	// Artifact reference and status land in one short transaction, after the
	// document exists on disk.
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		return tx.Model(s.Release).Updates(map[string]interface{}{
			"exported_file": path,
			"status":        models.ReleaseStatusPublished,
		}).Error
	})
	if err != nil {
		return "", err
	}

	s.Release.ExportedFile = path
	s.Release.Status = models.ReleaseStatusPublished
	return path, nil
}

func (s *ExportService) beneficiariesData() ([]ManifestBeneficiary, error) {
	var rows []models.ReleaseBeneficiary
	if err := s.DB.Preload("Beneficiary").
		Where("release_id = ?", s.Release.ReleaseID).Find(&rows).Error; err != nil {
		return nil, err
	}

	data := make([]ManifestBeneficiary, 0, len(rows))
	for _, row := range rows {
		if row.Beneficiary == nil {
			continue
		}

		var structures []models.Structure
		if err := s.DB.Preload("Level").
			Where("beneficiary_id = ?", row.BeneficiaryID).Find(&structures).Error; err != nil {
			return nil, err
		}

		entry := ManifestBeneficiary{
			PublicName:  row.Beneficiary.PublicName,
			PrivateName: row.Beneficiary.PrivateName,
			Structures:  make([]ManifestStructure, 0, len(structures)),
			Levels:      []ManifestLevel{},
		}

		seenLevels := make(map[uint64]struct{})
		for _, structure := range structures {
			levelName := ""
			if structure.Level != nil {
				levelName = structure.Level.Name
				if _, seen := seenLevels[structure.Level.LevelID]; !seen {
					seenLevels[structure.Level.LevelID] = struct{}{}
					entry.Levels = append(entry.Levels, ManifestLevel{
						Name:  structure.Level.Name,
						Count: structure.Level.Count,
					})
				}
			}
			entry.Structures = append(entry.Structures, ManifestStructure{
				Name:        structure.Name,
				IsBranch:    structure.IsBranch,
				Description: structure.Description,
				LevelName:   levelName,
			})
		}

		data = append(data, entry)
	}

	return data, nil
}

func (s *ExportService) appsData() ([]ManifestApp, error) {
	var rows []models.ReleaseApp
	if err := s.DB.Preload("Application").
		Preload("Application.Codings").
		Preload("Application.Codings.Category").
		Preload("Application.CodingCategories").
		Where("release_id = ?", s.Release.ReleaseID).Find(&rows).Error; err != nil {
		return nil, err
	}

	data := make([]ManifestApp, 0, len(rows))
	for _, row := range rows {
		app := row.Application
		if app == nil {
			continue
		}

		// Flattened codings when the app carries them directly; otherwise the
		// category tree with its codes.
		var codings []interface{}
		if len(app.Codings) > 0 {
			for _, coding := range app.Codings {
				category := ""
				if coding.Category != nil {
					category = coding.Category.GeneralName
				}
				codings = append(codings, map[string]interface{}{
					"name":     coding.Name,
					"category": category,
					"order":    coding.Order,
				})
			}
		} else {
			for _, category := range app.CodingCategories {
				var codes []models.Coding
				if err := s.DB.Preload("Parent").
					Where("category_id = ?", category.CategoryID).Find(&codes).Error; err != nil {
					return nil, err
				}
				codeRows := make([]map[string]interface{}, 0, len(codes))
				for _, code := range codes {
					parentName := ""
					if code.Parent != nil {
						parentName = code.Parent.Name
					}
					codeRows = append(codeRows, map[string]interface{}{
						"name":   code.Name,
						"order":  code.Order,
						"parent": parentName,
					})
				}
				codings = append(codings, map[string]interface{}{
					"category": category.GeneralName,
					"is_tree":  category.Type == "tree",
					"codes":    codeRows,
				})
			}
		}

		var perms []models.Permission
		if err := s.DB.
			Joins("JOIN model_descriptors ON model_descriptors.descriptor_id = permissions.descriptor_id").
			Where("model_descriptors.app_label = ?", app.AppLabel).
			Find(&perms).Error; err != nil {
			return nil, err
		}
		permRows := make([]ManifestPermission, 0, len(perms))
		for _, perm := range perms {
			permRows = append(permRows, ManifestPermission{Codename: perm.Codename, Name: perm.Name})
		}

		data = append(data, ManifestApp{
			Label:       app.AppLabel,
			Name:        app.Name,
			IsCore:      row.IsCore,
			URL:         app.URL,
			Codings:     codings,
			Permissions: permRows,
		})
	}

	return data, nil
}

func (s *ExportService) groupsData() ([]ManifestGroup, error) {
	var rows []models.ReleaseGroup
	if err := s.DB.Preload("Group").Preload("Group.Permissions").
		Where("release_id = ?", s.Release.ReleaseID).Find(&rows).Error; err != nil {
		return nil, err
	}

	data := make([]ManifestGroup, 0, len(rows))
	for _, row := range rows {
		if row.Group == nil {
			continue
		}
		codenames := make([]string, 0, len(row.Group.Permissions))
		for _, perm := range row.Group.Permissions {
			codenames = append(codenames, perm.Codename)
		}
		data = append(data, ManifestGroup{
			Name:        row.Group.Name,
			IsRole:      row.Group.IsRole,
			Permissions: codenames,
		})
	}

	return data, nil
}

func (s *ExportService) usersData() ([]ManifestUser, error) {
	var rows []models.ReleaseUser
	if err := s.DB.Preload("User").Preload("User.Groups").Preload("User.Permissions").
		Where("release_id = ?", s.Release.ReleaseID).Find(&rows).Error; err != nil {
		return nil, err
	}

	data := make([]ManifestUser, 0, len(rows))
	for _, row := range rows {
		if row.User == nil {
			continue
		}
		roles := make([]string, 0, len(row.User.Groups))
		for _, group := range row.User.Groups {
			roles = append(roles, group.Name)
		}
		direct := make([]string, 0, len(row.User.Permissions))
		for _, perm := range row.User.Permissions {
			direct = append(direct, perm.Codename)
		}
		data = append(data, ManifestUser{
			Username:          row.User.Username,
			Email:             row.User.Email,
			FirstName:         row.User.FirstName,
			LastName:          row.User.LastName,
			Roles:             roles,
			DirectPermissions: direct,
		})
	}

	return data, nil
}
