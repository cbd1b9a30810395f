package services

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/axisops/releasehub/internal/models"
)

func writeTreeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", rel, err)
	}
}

// fakeSourceTree lays out a minimal platform checkout with one licensed
// business-capable module set and one unlicensed module (crm).
func fakeSourceTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	writeTreeFile(t, root, "manage.py", "#!/usr/bin/env python\n")

	writeTreeFile(t, root, filepath.Join("api", "settings.py"), `INSTALLED_APPS = [
    'django.contrib.admin',
    'rest_framework',
    'users',
    'clients',
    'crm',
]

PROJECT_APPS = [
    'users',
    'clients',
    'crm',
]

WSGI_APPLICATION = 'wsgi.application'
`)
	writeTreeFile(t, root, filepath.Join("api", "urls.py"), `urlpatterns = [
    path('api/users/', include('users.urls')),
    path('api/crm/', include('crm.urls')),
]
`)

	writeTreeFile(t, root, filepath.Join("users", "apps.py"), "class UsersConfig:\n    name = 'users'\n")
	writeTreeFile(t, root, filepath.Join("users", "views.py"), "class UserViewSet:\n    pass\n")
	writeTreeFile(t, root, filepath.Join("clients", "apps.py"), "class ClientsConfig:\n    name = 'clients'\n")
	writeTreeFile(t, root, filepath.Join("clients", "urls.py"), `from rest_framework import routers
from clients.views import StructureViewSet, BeneficiaryViewSet
router.register(r'structures', StructureViewSet)
router.register(r'beneficiaries', BeneficiaryViewSet)
`)
	writeTreeFile(t, root, filepath.Join("crm", "apps.py"), "class CrmConfig:\n    name = 'crm'\n")
	writeTreeFile(t, root, filepath.Join("crm", "models.py"), "class Customer:\n    pass\n")

	writeTreeFile(t, root, filepath.Join("frontend", "package.json"), "{\n  \"name\": \"frontend\"\n}\n")
	writeTreeFile(t, root, filepath.Join("frontend", "src", "App.jsx"), `import UserRoutes from './apps/UserManagement/routes';
import CrmRoutes from './apps/CRM/routes';
<Routes>
  <Route element={<Guard appLabel="users" />}>
    <Route path="/users/*" element={<UserRoutes />} />
  </Route>
  <Route element={<Guard appLabel="crm" />}>
    <Route path="/crm/*" element={<CrmRoutes />} />
  </Route>
</Routes>
`)
	writeTreeFile(t, root, filepath.Join("frontend", "src", "api.js"), `export const getBeneficiaries = async () => {
  return client.get('/beneficiaries');
};
// ============ APPS API ============
export const getApps = async () => {};
// ============ CRM API ============
export const getCustomers = async () => {};
// ============ RELEASES API ============
export const getReleases = async () => {};
`)
	writeTreeFile(t, root, filepath.Join("frontend", "src", "config", "modules.jsx"), `export const MODULES = {
'users': [
  { id: 'users', label: 'Users' },
],
'crm': [
  { id: 'customers', label: 'Customers' },
],
};
const menu = [
  {
    id: 'users',
    label: 'Users',
  },
  {
    id: 'beneficiaries',
    label: 'Beneficiaries',
  },
];
`)
	writeTreeFile(t, root, filepath.Join("frontend", "src", "components", "Layout.jsx"), `if (path.includes('/users')) {
  title = 'Users';
} else if (path.includes('/crm')) {
  title = 'CRM';
} else {
  title = 'Home';
}
`)
	writeTreeFile(t, root, filepath.Join("frontend", "src", "apps", "UserManagement", "index.jsx"), "export default Users;\n")
	writeTreeFile(t, root, filepath.Join("frontend", "src", "apps", "CRM", "index.jsx"), "export default Crm;\n")

	return root
}

func readArchive(t *testing.T, archivePath string) map[string]string {
	t.Helper()
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	defer reader.Close()

	entries := make(map[string]string, len(reader.File))
	for _, file := range reader.File {
		rc, err := file.Open()
		if err != nil {
			t.Fatalf("failed to open %s: %v", file.Name, err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("failed to read %s: %v", file.Name, err)
		}
		entries[file.Name] = string(raw)
	}
	return entries
}

func TestGenerateSourceExportPrunesTree(t *testing.T) {
	db := setupTestDB(t)
	seedCatalog(t, db)
	sourceRoot := fakeSourceTree(t)

	release, err := CreateRelease(db, CreateReleaseInput{Name: "Core", Version: "1.0.0"})
	if err != nil {
		t.Fatalf("CreateRelease failed: %v", err)
	}

	exporter, err := NewExportService(db, t.TempDir(), release.ReleaseID)
	if err != nil {
		t.Fatalf("NewExportService failed: %v", err)
	}
	archivePath, err := exporter.GenerateSourceExport(sourceRoot)
	if err != nil {
		t.Fatalf("GenerateSourceExport failed: %v", err)
	}

	entries := readArchive(t, archivePath)
	base := "release_1.0.0_system/"

	if _, ok := entries[base+"backend/manage.py"]; !ok {
		t.Error("archive must carry manage.py")
	}
	if _, ok := entries[base+"backend/users/views.py"]; !ok {
		t.Error("licensed module sources must be copied")
	}
	for name := range entries {
		if strings.HasPrefix(name, base+"backend/crm/") {
			t.Errorf("unlicensed module file leaked: %s", name)
		}
		if strings.HasPrefix(name, base+"frontend/src/apps/CRM/") {
			t.Errorf("unlicensed UI folder leaked: %s", name)
		}
	}

	settings := entries[base+"backend/api/settings.py"]
	if strings.Contains(settings, "'crm'") {
		t.Error("settings must drop unlicensed app registrations")
	}
	if !strings.Contains(settings, "'rest_framework'") || !strings.Contains(settings, "'users'") {
		t.Error("settings must keep framework and licensed registrations")
	}
	if !strings.Contains(settings, "WSGI_APPLICATION = 'api.wsgi.application'") {
		t.Error("settings must point WSGI at the gateway package")
	}

	urls := entries[base+"backend/api/urls.py"]
	if strings.Contains(urls, "crm.urls") {
		t.Error("gateway routes must drop unlicensed includes")
	}
	if !strings.Contains(urls, "users.urls") {
		t.Error("gateway routes must keep licensed includes")
	}

	clientURLs := entries[base+"backend/clients/urls.py"]
	if strings.Contains(clientURLs, "r'beneficiaries'") {
		t.Error("beneficiary routes never ship")
	}
	if !strings.Contains(clientURLs, "import") {
		t.Error("route imports must survive the beneficiary filter")
	}
	if !strings.Contains(clientURLs, "r'structures'") {
		t.Error("other client routes must survive")
	}

	app := entries[base+"frontend/src/App.jsx"]
	if strings.Contains(app, "CrmRoutes") || strings.Contains(app, `appLabel="crm"`) {
		t.Error("frontend routes must drop unlicensed modules")
	}
	if !strings.Contains(app, "UserRoutes") {
		t.Error("licensed frontend routes must survive")
	}

	api := entries[base+"frontend/src/api.js"]
	if strings.Contains(api, "getBeneficiaries") {
		t.Error("beneficiary API bindings never ship")
	}
	if strings.Contains(api, "getCustomers") {
		t.Error("unlicensed API sections must be stripped")
	}
	if strings.Contains(api, "getReleases") {
		t.Error("the release-engine API section never ships")
	}
	if !strings.Contains(api, "getApps") {
		t.Error("licensed API sections must survive")
	}

	modules := entries[base+"frontend/src/config/modules.jsx"]
	if strings.Contains(modules, "'crm'") || strings.Contains(modules, "beneficiaries") {
		t.Error("module menu must drop unlicensed and beneficiary entries")
	}

	layout := entries[base+"frontend/src/components/Layout.jsx"]
	if strings.Contains(layout, "'CRM'") {
		t.Error("layout title branches must drop unlicensed modules")
	}
	if !strings.Contains(layout, "'Users'") || !strings.Contains(layout, "'Home'") {
		t.Error("other layout branches must survive")
	}

	var reloaded models.Release
	db.First(&reloaded, release.ReleaseID)
	if reloaded.ExportedFile != archivePath {
		t.Errorf("expected exported file %s, got %s", archivePath, reloaded.ExportedFile)
	}
}

func TestGenerateSourceExportRequiresRoot(t *testing.T) {
	db := setupTestDB(t)
	seedCatalog(t, db)

	release, err := CreateRelease(db, CreateReleaseInput{Name: "Core", Version: "1.0.0"})
	if err != nil {
		t.Fatalf("CreateRelease failed: %v", err)
	}
	exporter, err := NewExportService(db, t.TempDir(), release.ReleaseID)
	if err != nil {
		t.Fatalf("NewExportService failed: %v", err)
	}

	if _, err := exporter.GenerateSourceExport(""); err == nil {
		t.Fatal("expected an error without a configured source root")
	}
}
