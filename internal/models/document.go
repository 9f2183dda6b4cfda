package models

import (
	"time"
)

// DocumentStatus is the processing state of an ingested document
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "Pending"
	StatusProcessing DocumentStatus = "Processing"
	StatusCompleted  DocumentStatus = "Completed"
	StatusFailed     DocumentStatus = "Failed"
)

// DocumentType classifies a legal document
type DocumentType string

const (
	TypeDecision    DocumentType = "Decision"
	TypeLegislation DocumentType = "Legislation"
	TypeBankingLaw  DocumentType = "BankingLaw"
)

// ParseDocumentType matches s case-insensitively against the known types
func ParseDocumentType(s string) (DocumentType, bool) {
	for _, t := range []DocumentType{TypeDecision, TypeLegislation, TypeBankingLaw} {
		if equalFold(string(t), s) {
			return t, true
		}
	}
	return "", false
}

// Document is an ingested legal document and its extracted text
type Document struct {
	ID            uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	Title         string         `gorm:"size:500;not null" json:"title"`
	FilePath      string         `gorm:"size:700;not null;uniqueIndex" json:"-"`
	FileName      string         `gorm:"size:255;not null" json:"fileName"`
	FileExtension string         `gorm:"size:16;not null" json:"fileExtension"`
	FileSize      int64          `gorm:"not null;default:0" json:"fileSize"`
	PageCount     int            `gorm:"not null;default:0" json:"pageCount"`
	Content       string         `json:"-"`
	Summary       *string        `json:"summary,omitempty"`
	DocumentType  DocumentType   `gorm:"size:32;not null;default:Decision;index" json:"documentType"`
	CourtName     *string        `gorm:"size:255" json:"courtName,omitempty"`
	CaseNumber    *string        `gorm:"size:100" json:"caseNumber,omitempty"`
	LawNumber     *string        `gorm:"size:100" json:"lawNumber,omitempty"`
	Category      *string        `gorm:"size:100" json:"category,omitempty"`
	DecisionDate  *time.Time     `gorm:"index" json:"decisionDate,omitempty"`
	Status        DocumentStatus `gorm:"size:16;not null;default:Pending;index:idx_documents_status" json:"status"`
	ErrorMessage  *string        `json:"errorMessage,omitempty"`
	ViewCount     int64          `gorm:"not null;default:0" json:"viewCount"`
	BookmarkCount int64          `gorm:"not null;default:0" json:"bookmarkCount"`
	CreatedAt     time.Time      `json:"createdAt"`
	ProcessedAt   *time.Time     `json:"processedAt,omitempty"`
	UpdatedAt     time.Time      `json:"updatedAt"`

	Keywords []DocumentKeyword `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"keywords,omitempty"`
}

// Searchable reports whether the document may be scored and returned by search
func (d *Document) Searchable() bool {
	return d.Status == StatusCompleted && d.Content != ""
}

// DocumentKeyword is one extracted keyword of a document
type DocumentKeyword struct {
	ID             uint64  `gorm:"primaryKey;autoIncrement" json:"-"`
	DocumentID     uint64  `gorm:"not null;uniqueIndex:idx_document_keyword" json:"-"`
	Keyword        string  `gorm:"size:100;not null;uniqueIndex:idx_document_keyword;index" json:"keyword"`
	RelevanceScore float64 `gorm:"not null" json:"relevanceScore"`
	Frequency      int     `gorm:"not null" json:"frequency"`
}

// IngestionRun records one pass of the ingestion pipeline
type IngestionRun struct {
	ID         uint64     `gorm:"primaryKey;autoIncrement" json:"-"`
	RunID      string     `gorm:"type:char(36);not null;uniqueIndex" json:"runId"`
	Trigger    string     `gorm:"size:32;not null" json:"trigger"`
	StartedAt  time.Time  `gorm:"not null" json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Discovered int        `gorm:"not null;default:0" json:"discovered"`
	Processed  int        `gorm:"not null;default:0" json:"processed"`
	Skipped    int        `gorm:"not null;default:0" json:"skipped"`
	Failed     int        `gorm:"not null;default:0" json:"failed"`
	Cancelled  bool       `gorm:"not null;default:false" json:"cancelled"`
}

// TableName overrides the table name for DocumentKeyword
func (DocumentKeyword) TableName() string {
	return "document_keywords"
}

// TableName overrides the table name for IngestionRun
func (IngestionRun) TableName() string {
	return "ingestion_runs"
}
