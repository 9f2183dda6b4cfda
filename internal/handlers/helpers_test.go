package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/juriiq/internal/config"
	"github.com/localnerve/juriiq/internal/handlers"
	"github.com/localnerve/juriiq/internal/ingest"
	"github.com/localnerve/juriiq/internal/models"
	"github.com/localnerve/juriiq/internal/server"
	"github.com/localnerve/juriiq/internal/services"
	"github.com/localnerve/juriiq/internal/testutil"
	"github.com/localnerve/juriiq/internal/textproc"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	testSecret   = "test-secret-that-is-long-enough-for-hs256"
	testPassword = "correct-horse"
)

type testEnv struct {
	t        *testing.T
	db       *gorm.DB
	app      *fiber.App
	cfg      *config.Config
	guard    *services.AccountGuard
	pipeline *ingest.Pipeline
}

type envOption func(*server.Options)

func withoutIngestion() envOption {
	return func(o *server.Options) {
		o.Ingest = nil
		o.Config.Ingestion.Enabled = false
	}
}

func withBaseContext(ctx context.Context) envOption {
	return func(o *server.Options) {
		o.BaseContext = ctx
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{
		DBType:     "sqlite-pure",
		DBDatabase: ":memory:",
		Security:   config.DefaultSecurity(),
		Ingestion: config.IngestionConfig{
			Enabled:   true,
			InputDir:  filepath.Join(root, "in"),
			DoneDir:   filepath.Join(root, "done"),
			FailedDir: filepath.Join(root, "failed"),
		},
	}
	require.NoError(t, os.MkdirAll(cfg.Ingestion.InputDir, 0o755))

	db := testutil.NewTestDB(t)
	tokens := services.NewTokenIssuer(testSecret, "juriiq", time.Hour)
	guard := services.NewAccountGuard(tokens, cfg.Security, nil)
	guard.HashCost = bcrypt.MinCost

	finder, err := services.NewRelatedFinder(16)
	require.NoError(t, err)
	pipeline, err := ingest.NewPipeline(db, cfg.Ingestion, nil)
	require.NoError(t, err)

	o := server.Options{
		Config: cfg,
		DB:     db,
		Tokens: tokens,
		Guard:  guard,
		Finder: finder,
		Ingest: pipeline,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &testEnv{t: t, db: db, app: server.New(o), cfg: cfg, guard: guard, pipeline: pipeline}
}

// do sends a JSON request. A non-empty token is sent as a bearer credential.
func (e *testEnv) do(method, path string, body interface{}, token string) *http.Response {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(e.t, err)
	return resp
}

// register creates an account through the API and returns its token
func (e *testEnv) register(email string, tier models.SubscriptionType) string {
	e.t.Helper()
	resp := e.do("POST", "/api/auth/register", handlers.RegisterRequest{
		Email:            email,
		Password:         testPassword,
		FirstName:        "Mehmet",
		LastName:         "Öztürk",
		SubscriptionType: string(tier),
	}, "")
	testutil.AssertStatus(e.t, resp, fiber.StatusCreated)
	var result services.AuthResult
	testutil.ParseJSON(e.t, resp, &result)
	return result.Token
}

func (e *testEnv) login(email, password, deviceID string) *http.Response {
	e.t.Helper()
	return e.do("POST", "/api/auth/login", handlers.LoginRequest{
		Email:      email,
		Password:   password,
		DeviceID:   deviceID,
		DeviceName: deviceID + " laptop",
		DeviceType: "desktop",
	}, "")
}

// loginToken signs in and returns the device bound token
func (e *testEnv) loginToken(email, deviceID string) string {
	e.t.Helper()
	resp := e.login(email, testPassword, deviceID)
	testutil.AssertStatus(e.t, resp, fiber.StatusOK)
	var result services.AuthResult
	testutil.ParseJSON(e.t, resp, &result)
	require.NotEmpty(e.t, result.Token)
	return result.Token
}

// adminToken seeds an admin account and signs it in
func (e *testEnv) adminToken() (string, *models.User) {
	e.t.Helper()
	admin, err := e.guard.EnsureAdmin(e.db, "admin@juriiq.test", testPassword)
	require.NoError(e.t, err)
	return e.loginToken("admin@juriiq.test", "admin-console"), admin
}

// seedDocument stores a processed document the way the ingestion pipeline does
func (e *testEnv) seedDocument(title, content string, dt models.DocumentType) *models.Document {
	e.t.Helper()
	summary := textproc.Summarize(content)
	doc := &models.Document{
		Title:         title,
		FilePath:      filepath.Join(e.cfg.Ingestion.InputDir, title+".txt"),
		FileName:      title + ".txt",
		FileExtension: ".txt",
		FileSize:      int64(len(content)),
		Content:       content,
		Summary:       &summary,
		DocumentType:  dt,
		Status:        models.StatusProcessing,
	}
	require.NoError(e.t, services.CreateDocument(e.db, doc))
	require.NoError(e.t, services.CompleteDocument(e.db, doc, textproc.ExtractKeywords(content)))
	return doc
}

// errorBody is the error envelope written by the handlers
type errorBody struct {
	Status           int    `json:"status"`
	Message          string `json:"message"`
	Ok               bool   `json:"ok"`
	URL              string `json:"url"`
	Type             string `json:"type"`
	RemainingMinutes int    `json:"remainingMinutes"`
}

func (e *testEnv) expectError(resp *http.Response, status int) errorBody {
	e.t.Helper()
	testutil.AssertStatus(e.t, resp, status)
	var body errorBody
	testutil.ParseJSON(e.t, resp, &body)
	require.False(e.t, body.Ok)
	require.Equal(e.t, status, body.Status)
	return body
}
