package services

import (
	"archive/zip"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/axisops/releasehub/internal/models"
	"github.com/axisops/releasehub/internal/rewrite"
	"gorm.io/gorm"
)

// systemModules are backend folders shipped with every export regardless of
// the release's app set: the API gateway layer, the export service, and the
// asset directories.
var systemModules = []string{"api", "export", "media", "static"}

// frontendMapping maps backend module labels to their frontend directory
// names under src/apps.
var frontendMapping = map[string]string{
	"users":         "UserManagement",
	"clients":       "ClientManagement",
	"apps":          "AppManagement",
	"activity_logs": "LogManagement",
	"codings":       "Codings",
	"releases":      "ReleaseManagement",
	"crm":           "CRM",
}

// routeMapping maps backend module labels to the frontend route variables
// imported by the root route file.
var routeMapping = map[string]string{
	"users":         "UserRoutes",
	"clients":       "ClientRoutes",
	"apps":          "AppRoutes",
	"activity_logs": "LogRoutes",
	"codings":       "CodingRoutes",
	"releases":      "ReleasesRoutes",
	"crm":           "CrmRoutes",
}

// commonFrontendDirs are copied verbatim; they are shared by every module.
var commonFrontendDirs = []string{
	"assets", "components", "config", "context", "hooks", "locales",
	"pages", "services", "utils", "styles", "layout", "auth",
}

// apiSectionHeaders maps module labels to their section markers in the
// generated API client.
var apiSectionHeaders = map[string]string{
	"crm":      "// ============ CRM API ============",
	"codings":  "// ============ CODINGS API ============",
	"apps":     "// ============ APPS API ============",
	"releases": "// ============ RELEASES API ============",
}

// beneficiaryFuncs are stripped from the API client unconditionally; the
// organizational-hierarchy feature never ships in exported packages.
var beneficiaryFuncs = []string{
	"getBeneficiaries", "createBeneficiary", "updateBeneficiary", "deleteBeneficiary",
}

var (
	beneficiaryImportRe = regexp.MustCompile(`import\s+Beneficiaries\s+from\s+['"]\./Beneficiaries['"];?\n?`)
	beneficiaryRouteRe  = regexp.MustCompile(`\s*<Route[^>]*moduleId=['"]beneficiaries['"][^>]*>[\s\S]*?</Route>,?`)
	sharedButtonRe      = regexp.MustCompile(`<SharedButton[^>]*icon="pi pi-plus"[^>]*onClick=\{handleCreate\}[^/]*/>`)
	actionsColumnRe     = regexp.MustCompile(`<Column[^>]*header="Actions"[^/]*/>`)
	statusCodeLineRe    = regexp.MustCompile(`\s*(created|updated|deleted|frozen)_code\s*=\s*[^\n]+\n`)
	unifiedImportRe     = regexp.MustCompile(`from api\.base import UnifiedModelViewSet\n?`)
)

// GenerateSourceExport produces a pruned, self-consistent copy of the whole
// platform source tree restricted to the release's licensed application set,
// archives it, and records the archive as the release's export artifact. The
// artifact reference is only persisted once the archive is complete.
func (s *ExportService) GenerateSourceExport(sourceRoot string) (string, error) {
	if sourceRoot == "" {
		return "", fmt.Errorf("source export: no source root configured")
	}

	var releaseApps []models.ReleaseApp
	if err := s.DB.Where("release_id = ?", s.Release.ReleaseID).Find(&releaseApps).Error; err != nil {
		return "", err
	}
	allowed := make(map[string]struct{}, len(releaseApps))
	for _, ra := range releaseApps {
		allowed[ra.AppLabel] = struct{}{}
	}

	tempDir, err := os.MkdirTemp("", "release_source_export")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tempDir)

	version := s.Release.Version
	if version == "" {
		version = fmt.Sprintf("%d", s.Release.ReleaseID)
	}
	baseDirName := fmt.Sprintf("release_%s_system", version)
	basePath := filepath.Join(tempDir, baseDirName)
	backendDest := filepath.Join(basePath, "backend")
	frontendDest := filepath.Join(basePath, "frontend")
	if err := os.MkdirAll(backendDest, 0o755); err != nil {
		return "", err
	}
	if err := os.MkdirAll(frontendDest, 0o755); err != nil {
		return "", err
	}

	ctx := &exportContext{
		allowed:      allowed,
		localModules: discoverLocalModules(sourceRoot),
	}

	if err := s.exportBackend(sourceRoot, backendDest, ctx); err != nil {
		return "", err
	}
	if err := s.exportFrontend(sourceRoot, frontendDest, ctx); err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.ExportDir, 0o755); err != nil {
		return "", err
	}
	zipName := fmt.Sprintf("release_system_%d_%s.zip", s.Release.ReleaseID, time.Now().UTC().Format("20060102150405"))
	archivePath := filepath.Join(s.ExportDir, zipName)
	if err := zipDirectory(tempDir, baseDirName, archivePath); err != nil {
		// Never leave a half-written archive referenced by the release.
		os.Remove(archivePath)
		return "", err
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		return tx.Model(s.Release).Update("exported_file", archivePath).Error
	})
	if err != nil {
		return "", err
	}

	s.Release.ExportedFile = archivePath
	return archivePath, nil
}

// exportContext carries the allow set and discovered local module labels
// through the rewrite rules.
type exportContext struct {
	allowed      map[string]struct{}
	localModules map[string]struct{}
}

// excluded reports whether name is a known local module outside the allow set.
// Third-party or framework names are never excluded.
func (c *exportContext) excluded(name string) bool {
	if _, local := c.localModules[name]; !local {
		return false
	}
	if _, ok := c.allowed[name]; ok {
		return false
	}
	for _, sys := range systemModules {
		if name == sys {
			return false
		}
	}
	return true
}

// discoverLocalModules lists directories under the source root that carry a
// module registration file; these are the names eligible for pruning.
func discoverLocalModules(sourceRoot string) map[string]struct{} {
	modules := make(map[string]struct{})
	entries, err := os.ReadDir(sourceRoot)
	if err != nil {
		return modules
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(sourceRoot, entry.Name(), "apps.py")); err == nil {
			modules[entry.Name()] = struct{}{}
		}
	}
	return modules
}

func (s *ExportService) exportBackend(sourceRoot, backendDest string, ctx *exportContext) error {
	// manage.py first; everything else references it.
	if err := copyFile(filepath.Join(sourceRoot, "manage.py"), filepath.Join(backendDest, "manage.py")); err != nil {
		log.Printf("source export: skipping manage.py: %v", err)
	}

	for _, item := range systemModules {
		src := filepath.Join(sourceRoot, item)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		skip := []string{"__pycache__", ".pyc"}
		if item == "media" {
			// Exported archives must not re-pack prior exports.
			skip = append(skip, "release_exports", ".zip", ".rar")
		}
		if err := copyTree(src, filepath.Join(backendDest, item), skip); err != nil {
			return err
		}
	}

	for label := range ctx.allowed {
		if isSystemModule(label) {
			continue
		}
		src := filepath.Join(sourceRoot, label)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := copyTree(src, filepath.Join(backendDest, label), []string{"__pycache__", ".pyc"}); err != nil {
			return err
		}
	}

	rules := []rewriteRule{
		{
			path: filepath.Join("api", "settings.py"),
			apply: func(content string) string {
				content = rewrite.FilterRegistrationList(content,
					[]string{"INSTALLED_APPS = [", "PROJECT_APPS = ["}, ctx.excluded)
				// The gateway package was renamed historically; the generic
				// rewrite does not know the entry-point module moved into it.
				return rewrite.ReplaceAll(content,
					"WSGI_APPLICATION = 'wsgi.application'",
					"WSGI_APPLICATION = 'api.wsgi.application'")
			},
		},
		{
			path: filepath.Join("api", "urls.py"),
			apply: func(content string) string {
				return rewrite.FilterRouteIncludes(content, ctx.excluded)
			},
		},
		{
			// Beneficiary routes never ship, even when clients is licensed.
			path: filepath.Join("clients", "urls.py"),
			apply: func(content string) string {
				return rewrite.FilterLines(content, func(line string) bool {
					if strings.Contains(line, "import") {
						return true
					}
					return !strings.Contains(line, "r'beneficiaries'") &&
						!strings.Contains(line, "BeneficiaryViewSet")
				})
			},
		},
		{
			path:  filepath.Join("apps", "views.py"),
			apply: makeBackendViewsReadOnly,
		},
	}
	applyRules(backendDest, rules)

	return nil
}

func (s *ExportService) exportFrontend(sourceRoot, frontendDest string, ctx *exportContext) error {
	feRoot := filepath.Join(sourceRoot, "frontend")
	feSrcRoot := filepath.Join(feRoot, "src")
	feDestRoot := filepath.Join(frontendDest, "src")
	if err := os.MkdirAll(feDestRoot, 0o755); err != nil {
		return err
	}

	// Root files (package.json and friends) plus the public directory.
	if entries, err := os.ReadDir(feRoot); err == nil {
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			_ = copyFile(filepath.Join(feRoot, entry.Name()), filepath.Join(frontendDest, entry.Name()))
		}
	}
	if _, err := os.Stat(filepath.Join(feRoot, "public")); err == nil {
		if err := copyTree(filepath.Join(feRoot, "public"), filepath.Join(frontendDest, "public"), nil); err != nil {
			return err
		}
	}
	if entries, err := os.ReadDir(feSrcRoot); err == nil {
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			_ = copyFile(filepath.Join(feSrcRoot, entry.Name()), filepath.Join(feDestRoot, entry.Name()))
		}
	}

	for _, dir := range commonFrontendDirs {
		src := filepath.Join(feSrcRoot, dir)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := copyTree(src, filepath.Join(feDestRoot, dir), nil); err != nil {
			return err
		}
	}

	// Per-module UI folders, only for licensed backend labels.
	appsDest := filepath.Join(feDestRoot, "apps")
	if err := os.MkdirAll(appsDest, 0o755); err != nil {
		return err
	}
	for label := range ctx.allowed {
		mapped, ok := frontendMapping[label]
		if !ok {
			continue
		}
		src := filepath.Join(feSrcRoot, "apps", mapped)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := copyTree(src, filepath.Join(appsDest, mapped), nil); err != nil {
			return err
		}
	}

	excludedRouteVars := make([]string, 0)
	for label, routeVar := range routeMapping {
		if _, ok := ctx.allowed[label]; !ok {
			excludedRouteVars = append(excludedRouteVars, routeVar)
		}
	}

	rules := []rewriteRule{
		{
			path: "App.jsx",
			apply: func(content string) string {
				content = rewrite.RemoveImportLines(content, excludedRouteVars)
				return rewrite.RemoveGuardedRouteBlocks(content, ctx.excluded)
			},
		},
		{
			path: filepath.Join("config", "modules.jsx"),
			apply: func(content string) string {
				content = rewrite.RemoveKeyedArrayEntries(content, ctx.excluded)
				// The beneficiaries menu entry never ships.
				return rewrite.RemoveObjectByID(content, "beneficiaries")
			},
		},
		{
			path: filepath.Join("components", "Layout.jsx"),
			apply: func(content string) string {
				return rewrite.RemovePathBranches(content, ctx.excluded)
			},
		},
		{
			path: "api.js",
			apply: func(content string) string {
				for _, fn := range beneficiaryFuncs {
					content = rewrite.RemoveAsyncFunction(content, fn)
				}
				for label, header := range apiSectionHeaders {
					// The release engine itself is always stripped from
					// exported packages.
					if label == "releases" || ctx.excluded(label) {
						content = rewrite.RemoveSection(content, header)
					}
				}
				return content
			},
		},
		{
			path: filepath.Join("apps", "ClientManagement", "routes.jsx"),
			apply: func(content string) string {
				content = beneficiaryImportRe.ReplaceAllString(content, "")
				return beneficiaryRouteRe.ReplaceAllString(content, "")
			},
		},
	}
	applyRules(feDestRoot, rules)

	// The app-management module ships read-only: catalogue screens keep their
	// tables but lose every mutation path.
	appManagement := filepath.Join(appsDest, "AppManagement")
	if _, err := os.Stat(appManagement); err == nil {
		makeScreenReadOnly(filepath.Join(appManagement, "Applications.jsx"), "createApp", "updateApp", "deleteApp", "AppFormModal")
		makeScreenReadOnly(filepath.Join(appManagement, "AppTypes.jsx"), "createAppType", "updateAppType", "deleteAppType", "AppTypeFormModal")
		makeScreenReadOnly(filepath.Join(appManagement, "AppVersions.jsx"), "createAppVersion", "updateAppVersion", "deleteAppVersion", "AppVersionFormModal")
	}

	// The beneficiaries screen is removed outright.
	_ = os.Remove(filepath.Join(appsDest, "ClientManagement", "Beneficiaries.jsx"))

	return nil
}

// rewriteRule associates a collaborator file with its edit. Missing files are
// skipped; the exporter degrades gracefully when the platform layout shifts.
type rewriteRule struct {
	path  string
	apply func(content string) string
}

func applyRules(root string, rules []rewriteRule) {
	for _, rule := range rules {
		path := filepath.Join(root, rule.path)
		content, err := os.ReadFile(path)
		if err != nil {
			log.Printf("source export: skipping %s: %v", rule.path, err)
			continue
		}
		edited := rule.apply(string(content))
		if edited == string(content) {
			continue
		}
		if err := os.WriteFile(path, []byte(edited), 0o644); err != nil {
			log.Printf("source export: failed to rewrite %s: %v", rule.path, err)
		}
	}
}

// makeBackendViewsReadOnly swaps the writable viewset base class for the
// read-only equivalent, drops per-action response-code attributes, and prunes
// the now-unused import.
func makeBackendViewsReadOnly(content string) string {
	if !strings.Contains(content, "ReadOnlyModelViewSet") {
		content = rewrite.ReplaceAll(content,
			"from rest_framework import viewsets, permissions",
			"from rest_framework import viewsets, permissions\nfrom rest_framework.viewsets import ReadOnlyModelViewSet")
	}

	for _, viewSet := range []string{"AppTypeViewSet", "AppViewSet", "AppVersionViewSet"} {
		content = rewrite.ReplaceAll(content,
			fmt.Sprintf("class %s(UnifiedModelViewSet):", viewSet),
			fmt.Sprintf("class %s(ReadOnlyModelViewSet):", viewSet))
	}

	content = statusCodeLineRe.ReplaceAllString(content, "\n")

	if !strings.Contains(content, "UnifiedModelViewSet") {
		content = unifiedImportRe.ReplaceAllString(content, "")
	}

	return content
}

// makeScreenReadOnly strips the create/update/delete surface of a frontend
// catalogue screen: API bindings, action buttons, row actions, handlers, and
// the form modal with its state.
func makeScreenReadOnly(path, createFunc, updateFunc, deleteFunc, modalName string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return
	}
	content := string(raw)

	for _, fn := range []string{createFunc, updateFunc, deleteFunc} {
		content = rewrite.RemoveRegexMatches(content, regexp.MustCompile(`,?\s*`+regexp.QuoteMeta(fn)))
	}

	content = rewrite.RemoveRegexMatches(content, sharedButtonRe)
	content = rewrite.RemoveArrowFunction(content, "const actionBodyTemplate = (rowData) =>")
	content = rewrite.RemoveRegexMatches(content, actionsColumnRe)
	content = rewrite.RemoveArrowFunction(content, "const handleCreate = () =>")
	content = rewrite.RemoveArrowFunction(content, "const handleEdit = (")
	content = rewrite.RemoveArrowFunction(content, "const handleDelete = async")
	content = rewrite.RemoveArrowFunction(content, "const handleSubmit = async")

	content = rewrite.RemoveRegexMatches(content, regexp.MustCompile(`(?s)<`+regexp.QuoteMeta(modalName)+`.*?/>`))
	content = rewrite.RemoveRegexMatches(content, regexp.MustCompile(`const \[showModal, setShowModal\] = useState\([^)]*\);?\n?`))
	content = rewrite.RemoveRegexMatches(content, regexp.MustCompile(`const \[modalData, setModalData\] = useState\([^)]*\);?\n?`))
	content = rewrite.RemoveRegexMatches(content, regexp.MustCompile(`import `+regexp.QuoteMeta(modalName)+` from ['"][^'"]+['"];?\n?`))

	_ = os.WriteFile(path, []byte(content), 0o644)
}

func isSystemModule(label string) bool {
	for _, sys := range systemModules {
		if label == sys {
			return true
		}
	}
	return false
}

// copyFile copies a single file, creating parent directories as needed.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// copyTree copies a directory recursively, skipping any path whose name
// contains one of the skip fragments.
func copyTree(src, dst string, skip []string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		for _, fragment := range skip {
			if strings.Contains(name, fragment) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

// zipDirectory archives root/baseDir into a single zip at archivePath.
func zipDirectory(root, baseDir, archivePath string) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer out.Close()

	writer := zip.NewWriter(out)
	defer writer.Close()

	base := filepath.Join(root, baseDir)
	err = filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		entry, err := writer.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()

		_, err = io.Copy(entry, in)
		return err
	})
	if err != nil {
		return err
	}
	return writer.Close()
}
