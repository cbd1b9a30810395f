package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/axisops/releasehub/internal/config"
	"github.com/axisops/releasehub/internal/database"
	"github.com/axisops/releasehub/internal/services"
	"github.com/axisops/releasehub/internal/testutil"
)

// TestE2EWithFullStack runs the whole stack in containers: database,
// Authorizer, and the server built from the repository Dockerfile.
func TestE2EWithFullStack(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}

	ctx := context.Background()

	tc, err := testutil.CreateAllTestContainers(t)
	if err != nil {
		t.Fatalf("Failed to start test containers: %v", err)
	}
	defer tc.Terminate(t)

	serverHost, _ := tc.ServerContainer.Host(ctx)
	serverPort, _ := tc.ServerContainer.MappedPort(ctx, "3000")
	baseURL := fmt.Sprintf("http://%s:%s", serverHost, serverPort.Port())

	// Let migrations and seeding settle.
	time.Sleep(5 * time.Second)

	t.Run("HealthCheck", func(t *testing.T) {
		testHealthCheck(t, tc)
	})

	t.Run("PrometheusMetrics", func(t *testing.T) {
		testPrometheusMetrics(t, baseURL)
	})

	t.Run("SwaggerUI", func(t *testing.T) {
		testSwaggerUI(t, baseURL)
	})

	t.Run("PublicCatalog", func(t *testing.T) {
		testPublicCatalog(t, baseURL)
	})

	t.Run("UnauthorizedMutation", func(t *testing.T) {
		testUnauthorizedMutation(t, baseURL)
	})

	t.Run("UnknownRoute", func(t *testing.T) {
		testUnknownRoute(t, baseURL)
	})
}

func testHealthCheck(t *testing.T, tc *testutil.TestContainers) {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Point at the mapped ports on localhost, not the container network names.
	dbHost, _ := tc.DBContainer.Host(ctx)
	dbPort, _ := tc.DBContainer.MappedPort(ctx, "3306")
	cfg.DBHost = dbHost
	cfg.DBPort = dbPort.Port()

	authzHost, _ := tc.AuthorizerContainer.Host(ctx)
	authzPort, _ := tc.AuthorizerContainer.MappedPort(ctx, "8080")
	cfg.AuthzURL = fmt.Sprintf("http://%s:%s", authzHost, authzPort.Port())

	cfg.ExportDir = os.TempDir()

	gormDB, err := database.Connect(cfg)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	defer database.Close(gormDB)

	result := services.HealthCheck(cfg, gormDB)
	if result.Status != "healthy" {
		t.Errorf("Health check failed: %+v", result)
	}
}

func testPrometheusMetrics(t *testing.T, baseURL string) {
	resp, err := http.Get(baseURL + "/metrics")
	if err != nil {
		t.Fatalf("Failed to get metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Errorf("Expected status 200 for metrics, got %d. Body: %s", resp.StatusCode, string(body))
	}
}

func testSwaggerUI(t *testing.T, baseURL string) {
	resp, err := http.Get(baseURL + "/swagger/index.html")
	if err != nil {
		t.Fatalf("Failed to get Swagger UI: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200 for Swagger UI, got %d", resp.StatusCode)
	}
}

func testPublicCatalog(t *testing.T, baseURL string) {
	resp, err := http.Get(baseURL + "/api/catalog/modules")
	if err != nil {
		t.Fatalf("Failed to get catalog modules: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200 for catalog modules, got %d", resp.StatusCode)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Response is not valid JSON: %v", err)
	}
	if _, ok := result["modules"]; !ok {
		t.Errorf("Expected a modules map, got %v", result)
	}
}

func testUnauthorizedMutation(t *testing.T, baseURL string) {
	resp, err := http.Post(baseURL+"/api/releases", "application/json", nil)
	if err != nil {
		t.Fatalf("Failed to post release: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		body, _ := io.ReadAll(resp.Body)
		t.Errorf("Expected status 403 without a session, got %d. Body: %s", resp.StatusCode, string(body))
	}
}

func testUnknownRoute(t *testing.T, baseURL string) {
	resp, err := http.Get(baseURL + "/api/does-not-exist")
	if err != nil {
		t.Fatalf("Failed to access unknown route: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.StatusCode)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Errorf("Response is not valid JSON: %v", err)
	}
}
