package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/localnerve/juriiq/internal/config"
	"github.com/localnerve/juriiq/internal/models"
	"github.com/localnerve/juriiq/internal/services"
	"github.com/localnerve/juriiq/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const decisionText = `YARGITAY 3. HUKUK DAİRESİ KARARI
Kira sözleşmesinin feshi talebiyle açılan davada kiracının tahliyesine karar verilmiştir.
Davalı kiracı kira bedellerini süresinde ödememiştir. Mahkeme tahliye talebini kabul etmiştir.`

type testDirs struct {
	in, done, failed string
}

func newTestPipeline(t *testing.T) (*Pipeline, *gorm.DB, testDirs) {
	t.Helper()
	root := t.TempDir()
	dirs := testDirs{
		in:     filepath.Join(root, "in"),
		done:   filepath.Join(root, "done"),
		failed: filepath.Join(root, "failed"),
	}
	db := testutil.NewTestDB(t)
	p, err := NewPipeline(db, config.IngestionConfig{
		InputDir:  dirs.in,
		DoneDir:   dirs.done,
		FailedDir: dirs.failed,
	}, nil)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(dirs.in, 0o755))
	return p, db, dirs
}

func assertExists(t *testing.T, path string) {
	t.Helper()
	_, err := os.Stat(path)
	assert.NoError(t, err, path)
}

func assertMissing(t *testing.T, path string) {
	t.Helper()
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "%s should not exist", path)
}

func TestNewPipelineRejectsSharedFolders(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, err := NewPipeline(db, config.IngestionConfig{InputDir: "x", DoneDir: "./x", FailedDir: "y"}, nil)
	assert.Error(t, err)

	_, err = NewPipeline(db, config.IngestionConfig{InputDir: "x"}, nil)
	assert.Error(t, err)
}

func TestRunProcessesSupportedFiles(t *testing.T) {
	p, db, dirs := newTestPipeline(t)

	testutil.WriteFile(t, dirs.in, "yargitay_2345-2019.txt", decisionText)
	testutil.WriteDocx(t, dirs.in, "mevzuat_tuketici.docx",
		"Tüketicinin Korunması Hakkında Kanun",
		"Bu yasa kapsamında her madde tüketiciyi korur.")
	testutil.WritePDF(t, dirs.in, "banka_genelgesi.pdf",
		"Banka kredi sozlesmesi hakkinda genelge",
		"Faiz oranlari ve teminat kosullari belirlenmistir.")
	testutil.WriteFile(t, dirs.in, "nested/ek_karar.txt", decisionText)
	testutil.WriteFile(t, dirs.in, "eski.doc", "binary-ish")
	testutil.WriteFile(t, dirs.in, "notes.md", "ignored")
	testutil.WriteFile(t, dirs.in, ".hidden.txt", "ignored")

	res, err := p.Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Discovered)
	assert.Equal(t, 4, res.Processed)
	assert.Equal(t, 1, res.Failed)
	assert.False(t, res.Cancelled)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, StageExtracting, res.Failures[0].Stage)

	assertExists(t, filepath.Join(dirs.done, "yargitay_2345-2019.txt"))
	assertExists(t, filepath.Join(dirs.done, "nested", "ek_karar.txt"))
	assertExists(t, filepath.Join(dirs.failed, "eski.doc"))
	assertMissing(t, filepath.Join(dirs.in, "yargitay_2345-2019.txt"))
	assertExists(t, filepath.Join(dirs.in, "notes.md"))
	assertExists(t, filepath.Join(dirs.in, ".hidden.txt"))

	decision, err := services.GetDocumentByPath(db, filepath.Join(p.InputDir(), "yargitay_2345-2019.txt"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, decision.Status)
	assert.Equal(t, "YARGITAY 3. HUKUK DAİRESİ KARARI", decision.Title)
	assert.Equal(t, models.TypeDecision, decision.DocumentType)
	require.NotNil(t, decision.CaseNumber)
	assert.Equal(t, "2345-2019", *decision.CaseNumber)
	require.NotNil(t, decision.Summary)
	assert.NotEmpty(t, *decision.Summary)
	assert.NotNil(t, decision.ProcessedAt)

	full, err := services.GetDocument(db, decision.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, full.Keywords)
	assert.LessOrEqual(t, len(full.Keywords), 20)

	law, err := services.GetDocumentByPath(db, filepath.Join(p.InputDir(), "mevzuat_tuketici.docx"))
	require.NoError(t, err)
	assert.Equal(t, models.TypeLegislation, law.DocumentType)

	bank, err := services.GetDocumentByPath(db, filepath.Join(p.InputDir(), "banka_genelgesi.pdf"))
	require.NoError(t, err)
	assert.Equal(t, models.TypeBankingLaw, bank.DocumentType)
	assert.Equal(t, 1, bank.PageCount)

	legacy, err := services.GetDocumentByPath(db, filepath.Join(p.InputDir(), "eski.doc"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, legacy.Status)
	require.NotNil(t, legacy.ErrorMessage)
	assert.True(t, strings.HasPrefix(*legacy.ErrorMessage, string(StageExtracting)))

	found, err := services.SearchDocuments(db, nil, services.SearchInput{Query: "tahliye"})
	require.NoError(t, err)
	assert.Equal(t, 2, found.TotalCount)

	runs, err := services.RecentIngestionRuns(db, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].RunID)
	assert.Equal(t, 4, runs[0].Processed)
	assert.NotNil(t, runs[0].FinishedAt)
}

func TestRunIsIdempotent(t *testing.T) {
	p, db, dirs := newTestPipeline(t)
	path := testutil.WriteFile(t, dirs.in, "karar.txt", decisionText)

	res, err := p.Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	require.Equal(t, 1, res.Processed)

	// the same file dropped again, older than the stored row
	testutil.WriteFile(t, dirs.in, "karar.txt", decisionText)
	testutil.Touch(t, path, time.Now().Add(-time.Hour))
	res, err = p.Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Processed)
	assertMissing(t, path)

	// a newer copy is processed again into the same row
	testutil.WriteFile(t, dirs.in, "karar.txt", decisionText+"\nEk karar metni eklendi.")
	testutil.Touch(t, path, time.Now().Add(time.Hour))
	res, err = p.Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)

	var count int64
	require.NoError(t, db.Model(&models.Document{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	doc, err := services.GetDocumentByPath(db, filepath.Join(p.InputDir(), "karar.txt"))
	require.NoError(t, err)
	assert.Contains(t, doc.Content, "Ek karar metni")
}

func TestRunQuarantinesAndReprocesses(t *testing.T) {
	p, db, dirs := newTestPipeline(t)
	testutil.WriteFile(t, dirs.in, "bos.txt", "   \n  ")

	res, err := p.Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assertExists(t, filepath.Join(dirs.failed, "bos.txt"))

	failed, err := services.ListFailedDocuments(db, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)

	_, err = p.Reprocess(context.Background(), failed[0].ID)
	require.NoError(t, err)
	assertExists(t, filepath.Join(dirs.in, "bos.txt"))
	assertMissing(t, filepath.Join(dirs.failed, "bos.txt"))

	testutil.WriteFile(t, dirs.in, "bos.txt", decisionText)
	res, err = p.Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)

	doc, err := services.GetDocument(db, failed[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, doc.Status)
	assert.Nil(t, doc.ErrorMessage)

	_, err = p.Reprocess(context.Background(), doc.ID)
	assert.Error(t, err, "completed documents cannot be reprocessed")
}

func TestRunRejectsOverlap(t *testing.T) {
	p, _, dirs := newTestPipeline(t)
	testutil.WriteFile(t, dirs.in, "karar.txt", decisionText)

	release, err := p.guard.acquire()
	require.NoError(t, err)
	_, err = p.Run(context.Background(), TriggerManual)
	assert.ErrorIs(t, err, ErrRunInProgress)
	release()

	// another process holding the folder lock
	other := flock.New(filepath.Join(p.InputDir(), LockFileName))
	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	_, err = p.Run(context.Background(), TriggerManual)
	assert.ErrorIs(t, err, ErrRunInProgress)
	require.NoError(t, other.Unlock())

	res, err := p.Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
}

func TestReprocessWaitsForRun(t *testing.T) {
	p, db, dirs := newTestPipeline(t)
	testutil.WriteFile(t, dirs.in, "bos.txt", "   \n  ")

	_, err := p.Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	failed, err := services.ListFailedDocuments(db, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)

	release, err := p.guard.acquire()
	require.NoError(t, err)
	_, err = p.Reprocess(context.Background(), failed[0].ID)
	assert.ErrorIs(t, err, ErrRunInProgress)
	release()

	other := flock.New(filepath.Join(p.InputDir(), LockFileName))
	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	_, err = p.Reprocess(context.Background(), failed[0].ID)
	assert.ErrorIs(t, err, ErrRunInProgress)
	require.NoError(t, other.Unlock())

	// nothing moved while the guard was held
	assertExists(t, filepath.Join(dirs.failed, "bos.txt"))
	assertMissing(t, filepath.Join(dirs.in, "bos.txt"))

	doc, err := p.Reprocess(context.Background(), failed[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, doc.Status)
	assertExists(t, filepath.Join(dirs.in, "bos.txt"))
}

func TestRunStopsWhenCancelled(t *testing.T) {
	p, db, dirs := newTestPipeline(t)
	testutil.WriteFile(t, dirs.in, "a.txt", decisionText)
	testutil.WriteFile(t, dirs.in, "b.txt", decisionText)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := p.Run(ctx, TriggerManual)
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Equal(t, 2, res.Discovered)
	assert.Zero(t, res.Processed)
	assert.Zero(t, res.Failed)
	assertExists(t, filepath.Join(dirs.in, "a.txt"))

	var count int64
	require.NoError(t, db.Model(&models.Document{}).Count(&count).Error)
	assert.Zero(t, count)

	runs, err := services.RecentIngestionRuns(db, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Cancelled)
}
