// Package testutil provisions the container stack used by integration and
// end-to-end tests: a database, an Authorizer instance, and the server itself
// built from the repository Dockerfile.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/axisops/releasehub/data"
	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"
)

type TestContainers struct {
	Network                *testcontainers.DockerNetwork
	DBContainer            testcontainers.Container
	AuthorizerContainer    testcontainers.Container
	ServerContainer        testcontainers.Container
	ServerBuilderContainer testcontainers.Container
}

func (tc *TestContainers) Terminate(t *testing.T) {
	ctx := context.Background()
	if tc.ServerContainer != nil {
		if err := tc.ServerContainer.Terminate(ctx); err != nil {
			logMessage(t, "Failed to terminate server: %v", err)
		}
	}
	if tc.ServerBuilderContainer != nil {
		if err := tc.ServerBuilderContainer.Terminate(ctx); err != nil {
			logMessage(t, "Failed to terminate server builder: %v", err)
		}
	}
	if tc.AuthorizerContainer != nil {
		if err := tc.AuthorizerContainer.Terminate(ctx); err != nil {
			logMessage(t, "Failed to terminate Authorizer: %v", err)
		}
	}
	if tc.DBContainer != nil {
		if err := tc.DBContainer.Terminate(ctx); err != nil {
			logMessage(t, "Failed to terminate database: %v", err)
		}
	}
	if tc.Network != nil {
		if err := tc.Network.Remove(ctx); err != nil {
			logMessage(t, "Failed to remove network: %v", err)
		}
	}
}

// CreateAllTestContainers starts the full stack. With a nil *testing.T it
// logs to stdout and exits on failure, so the standalone runner can use it.
func CreateAllTestContainers(t *testing.T) (*TestContainers, error) {
	ctx := context.Background()
	testContainers := &TestContainers{}

	// Create a network
	nw, err := network.New(ctx)
	if err != nil {
		exitWithError(t, err, "Failed to create network")
	}
	testContainers.Network = nw
	networkName := nw.Name

	// Create and start the database container
	dbType := os.Getenv("DB_TYPE")
	dbNetworkName := os.Getenv("DB_HOST")
	tcpDbPort, err := nat.NewPort("tcp", os.Getenv("DB_PORT"))
	if err != nil {
		testContainers.Terminate(t)
		exitWithError(t, err, "Failed to create DB port")
	}
	dbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        os.Getenv("DB_IMAGE"),
			ExposedPorts: []string{string(tcpDbPort)},
			Env:          getDBInitEnvMap(dbType),
			WaitingFor:   wait.ForListeningPort(tcpDbPort).WithStartupTimeout(60 * time.Second),
			Networks:     []string{networkName},
			NetworkAliases: map[string][]string{
				networkName: {dbNetworkName},
			},
		},
		Started: true,
	})
	if err != nil {
		testContainers.Terminate(t)
		exitWithError(t, err, "Failed to start database")
	}
	testContainers.DBContainer = dbContainer

	// Initialize the database(s)
	dbHost, _ := dbContainer.Host(ctx)
	dbPort, _ := dbContainer.MappedPort(ctx, tcpDbPort)
	switch dbType {
	case "mysql", "mariadb":
		if err := performMySqlDBInit(t, testContainers, dbHost, dbPort); err != nil {
			testContainers.Terminate(t)
			exitWithError(t, err, "Failed to initialize databases")
		}
	default:
		testContainers.Terminate(t)
		exitWithError(t, fmt.Errorf("DB_TYPE %q not supported by the container stack", dbType), "Failed to initialize databases")
	}

	// Create and start the Authorizer container
	authzNetworkName := "authorizer"
	tcpAuthzPort, err := nat.NewPort("tcp", os.Getenv("AUTHZ_PORT"))
	if err != nil {
		testContainers.Terminate(t)
		exitWithError(t, err, "Failed to create Authorizer port")
	}
	authzDbConnection := fmt.Sprintf("root:%s@tcp(%s:%s)/%s",
		os.Getenv("DB_ROOT_PASSWORD"), dbNetworkName, os.Getenv("DB_PORT"), os.Getenv("AUTHZ_DATABASE"))
	authorizerContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        os.Getenv("AUTHZ_IMAGE"),
			ExposedPorts: []string{string(tcpAuthzPort)},
			Env: map[string]string{
				"ENV":           "production",
				"CLIENT_ID":     os.Getenv("AUTHZ_CLIENT_ID"),
				"PORT":          os.Getenv("AUTHZ_PORT"),
				"DATABASE_TYPE": dbType,
				"DATABASE_NAME": os.Getenv("AUTHZ_DATABASE"),
				"DATABASE_URL":  authzDbConnection,
				"ADMIN_SECRET":  os.Getenv("AUTHZ_ADMIN_SECRET"),
				"ROLES":         "admin,user",
				"DEFAULT_ROLES": "user",
				"LOG_LEVEL":     "info",
			},
			WaitingFor: wait.ForLog("Authorizer running at PORT:").WithStartupTimeout(10 * time.Second),
			Networks:   []string{networkName},
			NetworkAliases: map[string][]string{
				networkName: {authzNetworkName},
			},
		},
		Started: true,
	})
	if err != nil {
		testContainers.Terminate(t)
		exitWithError(t, err, "Failed to start Authorizer")
	}
	testContainers.AuthorizerContainer = authorizerContainer

	authzHost, _ := authorizerContainer.Host(ctx)
	authzPort, _ := authorizerContainer.MappedPort(ctx, tcpAuthzPort)
	logMessage(t, "AUTHZ_URL=%s:%s", authzHost, authzPort.Port())

	imageName := "releasehub-test:latest"

	exists, err := imageExists(ctx, imageName)
	if err != nil {
		testContainers.Terminate(t)
		exitWithError(t, err, "Failed to check if image exists")
	}

	serverPortNumber := os.Getenv("PORT")
	tcpServerPort, err := nat.NewPort("tcp", serverPortNumber)
	if err != nil {
		testContainers.Terminate(t)
		exitWithError(t, err, "Failed to create server port")
	}

	serverContainerRequest := testcontainers.ContainerRequest{
		ExposedPorts: []string{string(tcpServerPort)},
		Env: map[string]string{
			"DB_TYPE":             dbType,
			"DB_HOST":             dbNetworkName,
			"DB_PORT":             os.Getenv("DB_PORT"),
			"DB_DATABASE":         os.Getenv("DB_DATABASE"),
			"DB_USER":             os.Getenv("DB_USER"),
			"DB_PASSWORD":         os.Getenv("DB_PASSWORD"),
			"DB_CONNECTION_LIMIT": os.Getenv("DB_CONNECTION_LIMIT"),
			"AUTHZ_URL":           fmt.Sprintf("http://%s:%s", authzNetworkName, os.Getenv("AUTHZ_PORT")),
			"AUTHZ_CLIENT_ID":     os.Getenv("AUTHZ_CLIENT_ID"),
			"PORT":                serverPortNumber,
			"SOURCE_ROOT":         os.Getenv("SOURCE_ROOT"),
			"EXPORT_DIR":          os.Getenv("EXPORT_DIR"),
		},
		WaitingFor: wait.ForHTTP("/metrics").WithPort(tcpServerPort).WithStartupTimeout(30 * time.Second),
		Networks:   []string{networkName},
	}

	if !exists {
		// Build the runtime image, keeping the builder stage cached for reuse.
		resourceReaperSessionID := uuid.New().String()
		buildArgs := map[string]*string{
			"RESOURCE_REAPER_SESSION_ID": &resourceReaperSessionID,
		}

		buildContext := os.Getenv("TESTCONTAINERS_BUILD_CONTEXT")
		if buildContext == "" {
			buildContext = "../.."
		}

		logMessage(t, "Image %s does not exist, building...", imageName)
		builderContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				FromDockerfile: testcontainers.FromDockerfile{
					Context:    buildContext,
					Dockerfile: "Dockerfile",
					Repo:       "releasehub-test-builder",
					Tag:        "latest",
					BuildArgs:  buildArgs,
					BuildOptionsModifier: func(opts *build.ImageBuildOptions) {
						opts.Target = "builder"
					},
					PrintBuildLog: true,
				},
			},
			Started: false,
		})
		if err != nil {
			testContainers.Terminate(t)
			exitWithError(t, err, "Failed to build releasehub-test-builder")
		}
		testContainers.ServerBuilderContainer = builderContainer

		imageNameParts := strings.Split(imageName, ":")
		serverContainerRequest.FromDockerfile = testcontainers.FromDockerfile{
			Context:    buildContext,
			Dockerfile: "Dockerfile",
			Repo:       imageNameParts[0],
			Tag:        imageNameParts[1],
			KeepImage:  true,
			BuildArgs:  buildArgs,
			BuildOptionsModifier: func(opts *build.ImageBuildOptions) {
				opts.Target = "runtime"
			},
			PrintBuildLog: true,
		}
	} else {
		logMessage(t, "Image %s exists, reusing...", imageName)
		serverContainerRequest.Image = imageName
	}

	serverContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: serverContainerRequest,
		Started:          true,
	})
	if err != nil {
		testContainers.Terminate(t)
		exitWithError(t, err, "Failed to start server")
	}
	testContainers.ServerContainer = serverContainer

	serverHost, _ := serverContainer.Host(ctx)
	serverPort, _ := serverContainer.MappedPort(ctx, tcpServerPort)
	logMessage(t, "BASE_URL=%s:%s", serverHost, serverPort.Port())

	logMessage(t, "Container stack started successfully")
	return testContainers, nil
}

// CreateDBTestContainer starts only the database container and returns a DSN
// for the application database. Service tests that depend on real row-locking
// semantics use this instead of the full stack.
func CreateDBTestContainer(t *testing.T) (*TestContainers, string) {
	ctx := context.Background()
	testContainers := &TestContainers{}

	dbImage := envOr("DB_IMAGE", "mariadb:11")
	rootPassword := envOr("DB_ROOT_PASSWORD", "insecure-root")
	dbName := envOr("DB_DATABASE", "releasehub_test")

	tcpDbPort, err := nat.NewPort("tcp", "3306")
	if err != nil {
		exitWithError(t, err, "Failed to create DB port")
	}

	dbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        dbImage,
			ExposedPorts: []string{string(tcpDbPort)},
			Env: map[string]string{
				"MYSQL_ROOT_PASSWORD": rootPassword,
				"MYSQL_DATABASE":      dbName,
			},
			WaitingFor: wait.ForListeningPort(tcpDbPort).WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		exitWithError(t, err, "Failed to start database")
	}
	testContainers.DBContainer = dbContainer

	dbHost, _ := dbContainer.Host(ctx)
	dbPort, _ := dbContainer.MappedPort(ctx, tcpDbPort)
	dsn := fmt.Sprintf("root:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		rootPassword, dbHost, dbPort.Port(), dbName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		testContainers.Terminate(t)
		exitWithError(t, err, "Failed to connect to database")
	}
	defer db.Close()
	for i := 0; i < 30; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(1 * time.Second)
	}
	if err != nil {
		testContainers.Terminate(t)
		exitWithError(t, err, "Database not ready after 30 seconds")
	}

	return testContainers, dsn
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDBInitEnvMap(dbType string) map[string]string {
	switch dbType {
	case "mariadb", "mysql":
		return map[string]string{
			"MYSQL_ROOT_PASSWORD": os.Getenv("DB_ROOT_PASSWORD"),
			"MYSQL_DATABASE":      os.Getenv("DB_DATABASE"),
			"MYSQL_USER":          os.Getenv("DB_USER"),
			"MYSQL_PASSWORD":      os.Getenv("DB_PASSWORD"),
		}
	}
	return nil
}

func performMySqlDBInit(t *testing.T, testContainers *TestContainers, dbHost string, dbPort nat.Port) error {
	db, err := sql.Open("mysql", fmt.Sprintf("root:%s@tcp(%s:%s)/", os.Getenv("DB_ROOT_PASSWORD"), dbHost, dbPort.Port()))
	if err != nil {
		testContainers.Terminate(t)
		exitWithError(t, err, "Failed to connect to database for setup")
	}
	defer db.Close()

	// Wait for connection to be really ready
	for i := 0; i < 30; i++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(1 * time.Second)
	}
	if err != nil {
		testContainers.Terminate(t)
		exitWithError(t, err, "Database not ready after 30 seconds")
	}

	statements := []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", os.Getenv("DB_DATABASE")),
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", os.Getenv("AUTHZ_DATABASE")),
		fmt.Sprintf("CREATE USER IF NOT EXISTS '%s'@'%%' IDENTIFIED BY '%s'", os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD")),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.authorizer_users (id CHAR(36) NOT NULL PRIMARY KEY)", os.Getenv("AUTHZ_DATABASE")),
		fmt.Sprintf("GRANT ALL PRIVILEGES ON *.* TO 'root'@'%%' IDENTIFIED BY '%s' WITH GRANT OPTION", os.Getenv("DB_ROOT_PASSWORD")),
		"FLUSH PRIVILEGES",
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			testContainers.Terminate(t)
			exitWithError(t, err, fmt.Sprintf("Failed to execute setup statement: %s", stmt))
		}
	}

	if err := executeSQL(db, data.InitdbMariaDBPrivileges); err != nil {
		testContainers.Terminate(t)
		exitWithError(t, err, "Failed to execute privileges init sql")
	}

	return nil
}

// executeSQL runs a multi-statement script, stripping line comments.
func executeSQL(db *sql.DB, script string) error {
	lines := strings.Split(script, "\n")

	var ncls []string
	for _, l := range lines {
		ncls = append(ncls, excludeComment(l))
	}

	joined := strings.Join(ncls, "")
	queries := strings.Split(joined, ";")
	queries = queries[:len(queries)-1]

	for _, q := range queries {
		if strings.TrimSpace(q) == "" {
			continue
		}
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("%s : when executing > %s", err.Error(), q)
		}
	}
	return nil
}

// excludeComment strips a trailing "--" comment from a line, respecting
// quoted strings.
func excludeComment(line string) string {
	d := "\""
	s := "'"
	c := "--"

	var nc string
	ck := line
	mx := len(line) + 1

	for {
		if len(ck) == 0 {
			return nc
		}

		di := strings.Index(ck, d)
		si := strings.Index(ck, s)
		ci := strings.Index(ck, c)

		if di < 0 {
			di = mx
		}
		if si < 0 {
			si = mx
		}
		if ci < 0 {
			ci = mx
		}

		var ei int

		if di < si && di < ci {
			nc += ck[:di+1]
			ck = ck[di+1:]
			ei = strings.Index(ck, d)
		} else if si < di && si < ci {
			nc += ck[:si+1]
			ck = ck[si+1:]
			ei = strings.Index(ck, s)
		} else if ci < di && ci < si {
			return nc + ck[:ci]
		} else {
			return nc + ck
		}

		nc += ck[:ei+1]
		ck = ck[ei+1:]
	}
}

func imageExists(ctx context.Context, imageName string) (bool, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return false, err
	}
	defer cli.Close()

	images, err := cli.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return false, err
	}

	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag == imageName {
				return true, nil
			}
		}
	}

	return false, nil
}

func exitWithError(t *testing.T, err error, msg string) {
	if t != nil {
		t.Fatalf(msg+": %v", err)
	} else {
		fmt.Printf(msg+": %v\n", err)
		os.Exit(1)
	}
}

func logMessage(t *testing.T, format string, args ...any) {
	if t != nil {
		t.Logf(format, args...)
	} else {
		fmt.Printf(format+"\n", args...)
	}
}
