package handlers_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofrs/flock"
	"github.com/localnerve/juriiq/internal/handlers"
	"github.com/localnerve/juriiq/internal/ingest"
	"github.com/localnerve/juriiq/internal/models"
	"github.com/localnerve/juriiq/internal/services"
	"github.com/localnerve/juriiq/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminRoutesRequireAdmin(t *testing.T) {
	env := newTestEnv(t)
	token := env.register("reader@example.com", models.SubscriptionSimple)

	body := env.expectError(env.do("GET", "/api/admin/stats", nil, token), fiber.StatusForbidden)
	assert.Equal(t, "auth.authorization.admin", body.Type)
	env.expectError(env.do("GET", "/api/admin/stats", nil, ""), fiber.StatusUnauthorized)

	admin, _ := env.adminToken()
	resp := env.do("GET", "/api/admin/stats", nil, admin)
	testutil.AssertStatus(t, resp, fiber.StatusOK)
	var stats services.AdminStatistics
	testutil.ParseJSON(t, resp, &stats)
	assert.Equal(t, int64(2), stats.Users)
	assert.Equal(t, int64(1), stats.ProUsers)
}

func TestAdminBlacklistAndUnblock(t *testing.T) {
	env := newTestEnv(t)
	admin, adminUser := env.adminToken()
	env.register("suspect@example.com", models.SubscriptionSimple)
	userToken := env.loginToken("suspect@example.com", "dev-1")

	resp := env.do("GET", "/api/admin/users?search=suspect", nil, admin)
	testutil.AssertStatus(t, resp, fiber.StatusOK)
	var list services.UserList
	testutil.ParseJSON(t, resp, &list)
	require.Len(t, list.Users, 1)
	suspect := list.Users[0]

	usersPath := fmt.Sprintf("/api/admin/users/%d", suspect.ID)
	resp = env.do("POST", usersPath+"/block", handlers.BlockRequest{Reason: "shared credentials"}, admin)
	testutil.AssertStatus(t, resp, fiber.StatusOK)

	// an issued token stops working and sign in is refused
	env.expectError(env.do("GET", "/api/auth/me", nil, userToken), fiber.StatusForbidden)
	body := env.expectError(env.login("suspect@example.com", testPassword, "dev-1"), fiber.StatusForbidden)
	assert.Contains(t, body.Message, "shared credentials")
	assert.Equal(t, "auth.blacklisted", body.Type)

	resp = env.do("GET", "/api/admin/users?blacklisted=true", nil, admin)
	testutil.ParseJSON(t, resp, &list)
	require.Len(t, list.Users, 1)
	assert.Equal(t, suspect.ID, list.Users[0].ID)

	resp = env.do("POST", usersPath+"/unblock", nil, admin)
	testutil.AssertStatus(t, resp, fiber.StatusOK)
	env.loginToken("suspect@example.com", "dev-1")

	env.expectError(env.do("POST", fmt.Sprintf("/api/admin/users/%d/block", adminUser.ID), nil, admin), fiber.StatusBadRequest)
	env.expectError(env.do("POST", "/api/admin/users/9999/block", nil, admin), fiber.StatusNotFound)
}

func TestAdminUnblockClearsLockout(t *testing.T) {
	env := newTestEnv(t)
	admin, _ := env.adminToken()
	env.register("forgetful@example.com", models.SubscriptionSimple)

	for i := 0; i < 5; i++ {
		env.login("forgetful@example.com", "wrong-password", "dev-1")
	}
	env.expectError(env.login("forgetful@example.com", testPassword, "dev-1"), fiber.StatusLocked)

	user, err := services.GetUserByEmail(env.db, "forgetful@example.com")
	require.NoError(t, err)
	resp := env.do("POST", fmt.Sprintf("/api/admin/users/%d/unblock", user.ID), nil, admin)
	testutil.AssertStatus(t, resp, fiber.StatusOK)
	var unblocked models.User
	testutil.ParseJSON(t, resp, &unblocked)
	assert.Zero(t, unblocked.FailedLoginAttempts)
	assert.Nil(t, unblocked.BlockedUntil)

	env.loginToken("forgetful@example.com", "dev-1")
}

func TestAdminSubscriptionAndDevices(t *testing.T) {
	env := newTestEnv(t)
	admin, _ := env.adminToken()
	env.register("upgrade@example.com", models.SubscriptionSimple)
	env.loginToken("upgrade@example.com", "desk")
	env.expectError(env.login("upgrade@example.com", testPassword, "phone"), fiber.StatusForbidden)

	user, err := services.GetUserByEmail(env.db, "upgrade@example.com")
	require.NoError(t, err)
	usersPath := fmt.Sprintf("/api/admin/users/%d", user.ID)

	env.expectError(env.do("PUT", usersPath+"/subscription", handlers.SubscriptionRequest{SubscriptionType: "Platinum"}, admin), fiber.StatusBadRequest)
	resp := env.do("PUT", usersPath+"/subscription", handlers.SubscriptionRequest{SubscriptionType: "pro"}, admin)
	testutil.AssertStatus(t, resp, fiber.StatusOK)
	var updated models.User
	testutil.ParseJSON(t, resp, &updated)
	assert.Equal(t, models.SubscriptionPro, updated.SubscriptionType)

	env.loginToken("upgrade@example.com", "phone")

	resp = env.do("GET", usersPath+"/devices", nil, admin)
	testutil.AssertStatus(t, resp, fiber.StatusOK)
	var devices []models.Device
	testutil.ParseJSON(t, resp, &devices)
	assert.Len(t, devices, 2)

	resp = env.do("DELETE", usersPath+"/devices/desk", nil, admin)
	testutil.AssertStatus(t, resp, fiber.StatusOK)
	env.expectError(env.do("GET", "/api/admin/users/9999/devices", nil, admin), fiber.StatusNotFound)
}

func TestAdminProcessDocuments(t *testing.T) {
	env := newTestEnv(t)
	admin, _ := env.adminToken()
	in := env.cfg.Ingestion.InputDir

	testutil.WriteFile(t, in, "YARGITAY_3_HD_2021-1234.txt", leaseText)
	testutil.WriteFile(t, in, "eski.doc", "binary")

	resp := env.do("POST", "/api/admin/documents/process", nil, admin)
	testutil.AssertStatus(t, resp, fiber.StatusOK)
	var result ingest.RunResult
	testutil.ParseJSON(t, resp, &result)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, ingest.TriggerManual, result.Trigger)

	resp = env.do("GET", "/api/admin/documents/failed", nil, admin)
	testutil.AssertStatus(t, resp, fiber.StatusOK)
	var failed []models.Document
	testutil.ParseJSON(t, resp, &failed)
	require.Len(t, failed, 1)
	require.NotNil(t, failed[0].ErrorMessage)
	assert.Contains(t, *failed[0].ErrorMessage, ".doc")

	reprocess := fmt.Sprintf("/api/admin/documents/%d/reprocess", failed[0].ID)
	resp = env.do("POST", reprocess, nil, admin)
	testutil.AssertStatus(t, resp, fiber.StatusOK)
	_, err := os.Stat(filepath.Join(in, "eski.doc"))
	assert.NoError(t, err)
	env.expectError(env.do("POST", reprocess, nil, admin), fiber.StatusConflict)

	resp = env.do("GET", "/api/admin/ingestion/runs", nil, admin)
	testutil.AssertStatus(t, resp, fiber.StatusOK)
	var runs []models.IngestionRun
	testutil.ParseJSON(t, resp, &runs)
	require.Len(t, runs, 1)
	assert.Equal(t, result.RunID, runs[0].RunID)
}

func TestAdminProcessStopsAtShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	env := newTestEnv(t, withBaseContext(ctx))
	admin, _ := env.adminToken()
	in := env.cfg.Ingestion.InputDir
	testutil.WriteFile(t, in, "kira.txt", leaseText)

	resp := env.do("POST", "/api/admin/documents/process", nil, admin)
	testutil.AssertStatus(t, resp, fiber.StatusOK)
	var result ingest.RunResult
	testutil.ParseJSON(t, resp, &result)
	assert.True(t, result.Cancelled)
	assert.Equal(t, 1, result.Discovered)
	assert.Zero(t, result.Processed)

	_, err := os.Stat(filepath.Join(in, "kira.txt"))
	assert.NoError(t, err)
}

func TestAdminProcessWhileRunning(t *testing.T) {
	env := newTestEnv(t)
	admin, _ := env.adminToken()

	// another process holds the ingestion lock
	other := flock.New(filepath.Join(env.cfg.Ingestion.InputDir, ingest.LockFileName))
	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer other.Unlock()

	env.expectError(env.do("POST", "/api/admin/documents/process", nil, admin), fiber.StatusConflict)
	env.expectError(env.do("POST", "/api/admin/documents/1/reprocess", nil, admin), fiber.StatusConflict)
}

func TestAdminIngestionDisabled(t *testing.T) {
	env := newTestEnv(t, withoutIngestion())
	admin, _ := env.adminToken()

	env.expectError(env.do("POST", "/api/admin/documents/process", nil, admin), fiber.StatusServiceUnavailable)
	env.expectError(env.do("POST", "/api/admin/documents/1/reprocess", nil, admin), fiber.StatusServiceUnavailable)

	resp := env.do("GET", "/api/health", nil, "")
	testutil.AssertStatus(t, resp, fiber.StatusOK)
	var health services.HealthCheckResult
	testutil.ParseJSON(t, resp, &health)
	assert.Equal(t, "disabled", health.Ingestion)
	assert.Equal(t, "ok", health.Database)
}

func TestAdminDeleteDocument(t *testing.T) {
	env := newTestEnv(t)
	admin, _ := env.adminToken()
	doc := env.seedDocument("Kira tahliye kararı", leaseText, models.TypeDecision)

	path := fmt.Sprintf("/api/admin/documents/%d", doc.ID)
	resp := env.do("DELETE", path, nil, admin)
	testutil.AssertStatus(t, resp, fiber.StatusOK)
	env.expectError(env.do("DELETE", path, nil, admin), fiber.StatusNotFound)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do("GET", "/api/health", nil, "")
	testutil.AssertStatus(t, resp, fiber.StatusOK)
	var health services.HealthCheckResult
	testutil.ParseJSON(t, resp, &health)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "ok", health.Ingestion)

	require.NoError(t, os.RemoveAll(env.cfg.Ingestion.InputDir))
	resp = env.do("GET", "/api/health", nil, "")
	testutil.AssertStatus(t, resp, fiber.StatusServiceUnavailable)
}
