package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/localnerve/juriiq/internal/config"
	"github.com/localnerve/juriiq/internal/extract"
	"github.com/localnerve/juriiq/internal/logging"
	"github.com/localnerve/juriiq/internal/models"
	"github.com/localnerve/juriiq/internal/services"
	"github.com/localnerve/juriiq/internal/textproc"
	"github.com/localnerve/juriiq/internal/types"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Trigger names what started a run
type Trigger string

const (
	TriggerStartup  Trigger = "startup"
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
	TriggerWatch    Trigger = "watch"
	TriggerCLI      Trigger = "cli"
)

// Stage is the step a file was in when it failed
type Stage string

const (
	StageDiscovered     Stage = "discovered"
	StageExtracting     Stage = "extracting"
	StageSummarizing    Stage = "summarizing"
	StageKeywordTagging Stage = "keyword tagging"
	StageStoring        Stage = "storing"
	StageCompleted      Stage = "completed"
)

// FileFailure is one file that ended in the failed folder
type FileFailure struct {
	Path  string `json:"path"`
	Stage Stage  `json:"stage"`
	Error string `json:"error"`
}

// RunResult summarizes one pass over the input folder
type RunResult struct {
	RunID      string        `json:"runId"`
	Trigger    Trigger       `json:"trigger"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Discovered int           `json:"discovered"`
	Processed  int           `json:"processed"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	Cancelled  bool          `json:"cancelled"`
	Failures   []FileFailure `json:"failures,omitempty"`
}

// Pipeline turns files in the input folder into searchable documents
type Pipeline struct {
	db        *gorm.DB
	log       *zap.Logger
	extractor extract.Registry
	inputDir  string
	doneDir   string
	failedDir string
	guard     *runGuard
	now       func() time.Time
}

// NewPipeline returns a pipeline over the folders in cfg
func NewPipeline(db *gorm.DB, cfg config.IngestionConfig, log *zap.Logger) (*Pipeline, error) {
	dirs := make([]string, 3)
	for i, d := range []string{cfg.InputDir, cfg.DoneDir, cfg.FailedDir} {
		if strings.TrimSpace(d) == "" {
			return nil, errors.New("ingestion folders must be set")
		}
		abs, err := filepath.Abs(d)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", d, err)
		}
		dirs[i] = abs
	}
	if dirs[0] == dirs[1] || dirs[0] == dirs[2] {
		return nil, errors.New("input folder must differ from the done and failed folders")
	}

	return &Pipeline{
		db:        db,
		log:       logging.OrNop(log).Named("ingest"),
		extractor: extract.NewRegistry(),
		inputDir:  dirs[0],
		doneDir:   dirs[1],
		failedDir: dirs[2],
		guard:     newRunGuard(filepath.Join(dirs[0], LockFileName)),
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// InputDir is the absolute input folder
func (p *Pipeline) InputDir() string {
	return p.inputDir
}

// Run processes every supported file under the input folder. It returns
// ErrRunInProgress at once when another run holds the guard. Cancelling ctx
// stops the run before the next file; the file being stored when ctx is
// cancelled stays Processing and is retried by the next run.
func (p *Pipeline) Run(ctx context.Context, trigger Trigger) (*RunResult, error) {
	if err := p.ensureDirs(); err != nil {
		return nil, err
	}

	release, err := p.guard.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	result := &RunResult{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		StartedAt: p.now(),
	}
	log := p.log.With(zap.String("runId", result.RunID), zap.String("trigger", string(trigger)))

	run := &models.IngestionRun{RunID: result.RunID, Trigger: string(trigger), StartedAt: result.StartedAt}
	if err := services.CreateIngestionRun(p.db, run); err != nil {
		log.Warn("failed to record ingestion run", zap.Error(err))
		run = nil
	}

	files, scanErr := p.discover()
	if scanErr != nil {
		log.Error("ingestion scan failed", zap.Error(scanErr))
	}
	result.Discovered = len(files)
	log.Info("ingestion run started", zap.Int("files", len(files)))

	for _, path := range files {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}
		p.processFile(ctx, log, path, result)
	}
	if ctx.Err() != nil {
		result.Cancelled = true
	}

	result.FinishedAt = p.now()
	if run != nil {
		run.FinishedAt = &result.FinishedAt
		run.Discovered = result.Discovered
		run.Processed = result.Processed
		run.Skipped = result.Skipped
		run.Failed = result.Failed
		run.Cancelled = result.Cancelled
		if err := services.FinishIngestionRun(p.db, run); err != nil {
			log.Warn("failed to finish ingestion run", zap.Error(err))
		}
	}

	log.Info("ingestion run finished",
		zap.Int("discovered", result.Discovered),
		zap.Int("processed", result.Processed),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Bool("cancelled", result.Cancelled),
		zap.Duration("took", result.FinishedAt.Sub(result.StartedAt)),
	)
	return result, scanErr
}

func (p *Pipeline) ensureDirs() error {
	for _, d := range []string{p.inputDir, p.doneDir, p.failedDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}

// discover lists the supported files under the input folder. Hidden entries
// and the done and failed folders are left out.
func (p *Pipeline) discover() ([]string, error) {
	var files []string
	err := filepath.WalkDir(p.inputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == p.inputDir {
				return err
			}
			p.log.Warn("skipping unreadable entry", zap.String("path", path), zap.Error(err))
			return nil
		}
		if d.IsDir() {
			if path != p.inputDir && (isHidden(d.Name()) || path == p.doneDir || path == p.failedDir) {
				return filepath.SkipDir
			}
			return nil
		}
		if isHidden(d.Name()) || !d.Type().IsRegular() || !extract.IsSupported(filepath.Ext(path)) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", p.inputDir, err)
	}
	return files, nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func (p *Pipeline) processFile(ctx context.Context, log *zap.Logger, path string, result *RunResult) {
	log = log.With(zap.String("file", path))
	db := p.db.WithContext(ctx)

	info, err := os.Stat(path)
	if err != nil {
		// gone since discovery
		log.Warn("file vanished before processing", zap.Error(err))
		return
	}

	existing, err := services.GetDocumentByPath(db, path)
	var nf *types.NotFoundError
	if err != nil && !errors.As(err, &nf) {
		if !interrupted(ctx, result) {
			p.fail(log, path, nil, StageDiscovered, err, result)
		}
		return
	}

	if existing != nil && existing.Status == models.StatusCompleted && !existing.UpdatedAt.Before(info.ModTime()) {
		result.Skipped++
		log.Debug("already processed, skipping")
		if err := p.move(path, p.doneDir); err != nil {
			log.Warn("failed to move skipped file", zap.Error(err))
		}
		return
	}

	doc := existing
	if doc == nil {
		doc = &models.Document{FilePath: path}
	}
	doc.FileName = filepath.Base(path)
	doc.FileExtension = strings.ToLower(filepath.Ext(path))
	doc.FileSize = info.Size()
	doc.Status = models.StatusProcessing
	doc.ErrorMessage = nil
	if doc.Title == "" {
		doc.Title = Stem(path)
	}

	if doc.ID == 0 {
		err = services.CreateDocument(db, doc)
	} else {
		err = services.UpdateDocument(db, doc)
	}
	if err != nil {
		if !interrupted(ctx, result) {
			p.fail(log, path, nil, StageDiscovered, err, result)
		}
		return
	}

	stage, err := p.analyze(ctx, db, path, doc)
	if err != nil {
		if interrupted(ctx, result) {
			// left Processing for the next run
			log.Info("run cancelled while processing file", zap.String("stage", string(stage)))
			return
		}
		p.fail(log, path, doc, stage, err, result)
		return
	}

	result.Processed++
	log.Info("document processed",
		zap.Uint64("documentId", doc.ID),
		zap.String("type", string(doc.DocumentType)),
		zap.Int("keywords", len(doc.Keywords)),
	)
	if err := p.move(path, p.doneDir); err != nil {
		log.Warn("failed to move processed file", zap.Error(err))
	}
}

// interrupted reports a cancelled run. A file cut short by cancellation is
// not a failed file.
func interrupted(ctx context.Context, result *RunResult) bool {
	if ctx.Err() == nil {
		return false
	}
	result.Cancelled = true
	return true
}

// analyze runs the per-file state machine from extraction to storage.
// It returns the stage reached.
func (p *Pipeline) analyze(ctx context.Context, db *gorm.DB, path string, doc *models.Document) (Stage, error) {
	res, err := p.extractor.Extract(ctx, path)
	if err != nil {
		return StageExtracting, err
	}

	meta := ParseFilename(doc.FileName, p.now())
	doc.Content = res.Text
	doc.PageCount = res.PageCount
	doc.Title = DeriveTitle(res.Text, doc.FileName)
	doc.DocumentType = DetectDocumentType(doc.FileName, res.Text)
	doc.CourtName = meta.CourtName
	doc.CaseNumber = meta.CaseNumber
	doc.LawNumber = meta.LawNumber
	doc.DecisionDate = meta.DecisionDate

	summary := textproc.Summarize(res.Text)
	doc.Summary = &summary

	keywords := textproc.ExtractKeywords(res.Text)

	if err := ctx.Err(); err != nil {
		return StageKeywordTagging, err
	}
	if err := services.CompleteDocument(db, doc, keywords); err != nil {
		return StageStoring, err
	}
	doc.Keywords = make([]models.DocumentKeyword, len(keywords))
	for i, k := range keywords {
		doc.Keywords[i] = models.DocumentKeyword{DocumentID: doc.ID, Keyword: k.Word, RelevanceScore: k.Relevance, Frequency: k.Frequency}
	}
	return StageCompleted, nil
}

// fail marks the row Failed and moves the file to the failed folder.
// Bookkeeping ignores the run context so a cancelled run still records it.
func (p *Pipeline) fail(log *zap.Logger, path string, doc *models.Document, stage Stage, cause error, result *RunResult) {
	result.Failed++
	message := fmt.Sprintf("%s: %v", stage, cause)
	result.Failures = append(result.Failures, FileFailure{Path: path, Stage: stage, Error: cause.Error()})
	log.Warn("document failed", zap.String("stage", string(stage)), zap.Error(cause))

	if doc != nil && doc.ID != 0 {
		if err := services.MarkDocumentFailed(p.db, doc.ID, message); err != nil {
			log.Error("failed to mark document failed", zap.Error(err))
		}
	}
	if err := p.move(path, p.failedDir); err != nil {
		log.Error("failed to quarantine file", zap.Error(err))
	}
}

// move relocates path under dest, keeping its place relative to the input
// folder. A file already there is replaced.
func (p *Pipeline) move(path, dest string) error {
	rel, err := filepath.Rel(p.inputDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(path)
	}
	return moveFile(path, filepath.Join(dest, rel))
}

func moveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	// rename fails across devices
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(out, in)
	return err
}

// Reprocess resets a failed document and moves its file back into the input
// folder, so the next run picks it up again. It shares the run guard and
// returns ErrRunInProgress while a run is scanning the input folder.
func (p *Pipeline) Reprocess(ctx context.Context, id uint64) (*models.Document, error) {
	if err := p.ensureDirs(); err != nil {
		return nil, err
	}
	release, err := p.guard.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	doc, err := services.GetDocument(p.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if doc.Status != models.StatusFailed {
		return nil, types.NewConflictError("only failed documents can be reprocessed")
	}

	rel, err := filepath.Rel(p.inputDir, doc.FilePath)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = doc.FileName
	}
	quarantined := filepath.Join(p.failedDir, rel)
	if _, err := os.Stat(quarantined); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, types.NewNotFoundError("failed file", rel)
		}
		return nil, err
	}
	if err := moveFile(quarantined, doc.FilePath); err != nil {
		return nil, fmt.Errorf("restore %s: %w", rel, err)
	}

	doc.Status = models.StatusPending
	doc.ErrorMessage = nil
	if err := services.UpdateDocument(p.db.WithContext(ctx), doc); err != nil {
		return nil, err
	}
	p.log.Info("document queued for reprocessing", zap.Uint64("documentId", id), zap.String("file", doc.FilePath))
	return doc, nil
}
