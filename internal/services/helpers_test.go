package services

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/localnerve/juriiq/internal/config"
	"github.com/localnerve/juriiq/internal/models"
	"github.com/localnerve/juriiq/internal/textproc"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const testSecret = "test-secret-that-is-long-enough-for-hs256"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestGuard(sec config.SecurityConfig) (*AccountGuard, *testClock) {
	clock := newTestClock()
	tokens := NewTokenIssuer(testSecret, "juriiq-test", time.Hour).WithClock(clock.Now)
	g := NewAccountGuard(tokens, sec, nil)
	g.HashCost = bcrypt.MinCost
	g.Now = clock.Now
	return g, clock
}

func mustRegister(t *testing.T, db *gorm.DB, g *AccountGuard, email string, tier models.SubscriptionType) *models.User {
	t.Helper()
	res, err := g.Register(db, RegisterInput{
		Email:            email,
		Password:         "correct-horse",
		FirstName:        "Ayşe",
		LastName:         "Yılmaz",
		SubscriptionType: tier,
	})
	require.NoError(t, err)
	return res.User
}

func loginAs(g *AccountGuard, db *gorm.DB, email, password, deviceID string) (*AuthResult, error) {
	return g.Login(db, LoginInput{
		Email:      email,
		Password:   password,
		DeviceID:   deviceID,
		DeviceName: deviceID + " browser",
		IPAddress:  "10.0.0.1",
		UserAgent:  "go-test",
	})
}

type docOption func(*models.Document)

func withType(dt models.DocumentType) docOption {
	return func(d *models.Document) { d.DocumentType = dt }
}

func withCourt(court string) docOption {
	return func(d *models.Document) { d.CourtName = &court }
}

func withDate(date time.Time) docOption {
	return func(d *models.Document) { d.DecisionDate = &date }
}

func withStatus(status models.DocumentStatus) docOption {
	return func(d *models.Document) { d.Status = status }
}

// seedDocument stores a processed document the way the ingestion pipeline does
func seedDocument(t *testing.T, db *gorm.DB, title, content string, opts ...docOption) *models.Document {
	t.Helper()
	summary := textproc.Summarize(content)
	doc := &models.Document{
		Title:         title,
		FilePath:      filepath.Join("/inbox", title+".txt"),
		FileName:      title + ".txt",
		FileExtension: ".txt",
		FileSize:      int64(len(content)),
		Content:       content,
		Summary:       &summary,
		DocumentType:  models.TypeDecision,
	}
	for _, opt := range opts {
		opt(doc)
	}
	status := doc.Status
	doc.Status = models.StatusProcessing
	require.NoError(t, CreateDocument(db, doc))
	require.NoError(t, CompleteDocument(db, doc, textproc.ExtractKeywords(content)))

	if status != "" && status != models.StatusCompleted {
		require.NoError(t, db.Model(doc).Update("status", status).Error)
		doc.Status = status
	}
	return doc
}
