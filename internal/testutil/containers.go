// This file starts a MariaDB testcontainer for the integration tests and the
// standalone testcontainers command. Callers without a *testing.T pass nil.

package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	_ "github.com/go-sql-driver/mysql"
	"github.com/localnerve/juriiq/data"
	"github.com/localnerve/juriiq/internal/config"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// DefaultMariaDBImage is used when DB_IMAGE is not set
const DefaultMariaDBImage = "mariadb:11.4"

// MariaDBOptions describes the database to create in the container
type MariaDBOptions struct {
	Image        string
	RootPassword string
	Database     string
	User         string
	Password     string
	// HostPort binds the server to a fixed host port instead of a random one
	HostPort string
}

// MariaDB is a running MariaDB container prepared for the service
type MariaDB struct {
	Container testcontainers.Container
	Host      string
	Port      string
	opts      MariaDBOptions
}

// MariaDBOptionsFromEnv reads the container settings the same way the service reads its own
func MariaDBOptionsFromEnv() MariaDBOptions {
	return MariaDBOptions{
		Image:        envOr("DB_IMAGE", DefaultMariaDBImage),
		RootPassword: envOr("DB_ROOT_PASSWORD", "rootpass"),
		Database:     envOr("DB_DATABASE", "juriiq"),
		User:         envOr("DB_APP_USER", "juriiq"),
		Password:     envOr("DB_APP_PASSWORD", "juriiqpass"),
		HostPort:     os.Getenv("DB_HOST_PORT"),
	}
}

// StartMariaDB starts the container, waits for it to accept connections, then
// creates the database and application account with the embedded init scripts
func StartMariaDB(ctx context.Context, t *testing.T, opts MariaDBOptions) (*MariaDB, error) {
	if opts.Image == "" {
		opts.Image = DefaultMariaDBImage
	}

	tcpPort, err := nat.NewPort("tcp", "3306")
	if err != nil {
		return nil, fmt.Errorf("failed to create DB port: %w", err)
	}

	if exists, err := imageExists(ctx, opts.Image); err != nil {
		logMessage(t, "Could not list local images: %v", err)
	} else if !exists {
		logMessage(t, "Image %s not found locally, pulling...", opts.Image)
	}

	hostConfigModifier := func(hostConfig *container.HostConfig) {
		// data lives in memory, the container is thrown away after the run
		hostConfig.Tmpfs = map[string]string{"/var/lib/mysql": "rw"}
		if opts.HostPort != "" {
			hostConfig.PortBindings = nat.PortMap{
				tcpPort: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: opts.HostPort}},
			}
		}
	}

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        opts.Image,
			ExposedPorts: []string{string(tcpPort)},
			Env: map[string]string{
				"MARIADB_ROOT_PASSWORD": opts.RootPassword,
			},
			HostConfigModifier: hostConfigModifier,
			WaitingFor: wait.ForAll(
				wait.ForLog("ready for connections").WithOccurrence(2),
				wait.ForListeningPort(tcpPort),
			).WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start MariaDB: %w", err)
	}

	m := &MariaDB{Container: c, opts: opts}
	if m.Host, err = c.Host(ctx); err != nil {
		m.Terminate(t)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	mapped, err := c.MappedPort(ctx, tcpPort)
	if err != nil {
		m.Terminate(t)
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}
	m.Port = mapped.Port()

	if err := m.init(ctx); err != nil {
		m.Terminate(t)
		return nil, err
	}

	logMessage(t, "MariaDB testcontainer listening at %s:%s", m.Host, m.Port)
	return m, nil
}

func (m *MariaDB) init(ctx context.Context) error {
	db, err := sql.Open("mysql", fmt.Sprintf("root:%s@tcp(%s:%s)/", m.opts.RootPassword, m.Host, m.Port))
	if err != nil {
		return fmt.Errorf("failed to connect to MariaDB for setup: %w", err)
	}
	defer db.Close()

	// Wait for connection to be really ready
	for i := 0; i < 30; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		return fmt.Errorf("MariaDB not ready after 30 seconds: %w", err)
	}

	scripts, err := data.RenderMariaDBInit(data.InitParams{
		Database: m.opts.Database,
		User:     m.opts.User,
		Password: m.opts.Password,
	})
	if err != nil {
		return err
	}
	for _, script := range scripts {
		for _, stmt := range data.SplitStatements(script) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("%w : when executing > %s", err, stmt)
			}
		}
	}
	return nil
}

// Config returns a service configuration pointing at the container
func (m *MariaDB) Config() *config.Config {
	return &config.Config{
		DBType:               "mariadb",
		DBHost:               m.Host,
		DBPort:               m.Port,
		DBDatabase:           m.opts.Database,
		DBAppUser:            m.opts.User,
		DBAppPassword:        m.opts.Password,
		DBAppConnectionLimit: 5,
		LogLevel:             "warn",
		Security:             config.DefaultSecurity(),
	}
}

// Terminate stops and removes the container
func (m *MariaDB) Terminate(t *testing.T) {
	if m == nil || m.Container == nil {
		return
	}
	if err := m.Container.Terminate(context.Background()); err != nil {
		logMessage(t, "Failed to terminate MariaDB: %v", err)
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

	for _, image := range images {
		for _, tag := range image.RepoTags {
			if tag == imageName {
				return true, nil
			}
		}
	}

	return false, nil
}

func logMessage(t *testing.T, format string, args ...any) {
	if t != nil {
		t.Logf(format, args...)
	} else {
		fmt.Printf(format+"\n", args...)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
