package ingest

import (
	"testing"
	"time"

	"github.com/localnerve/juriiq/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var metadataNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func TestParseFilenameCaseParty(t *testing.T) {
	meta := ParseFilename("CASE_OF_SMITH_AND_OTHERS_v._TURKEY.pdf", metadataNow)
	require.NotNil(t, meta.CourtName)
	assert.Equal(t, "Smith And Others", *meta.CourtName)
	assert.Nil(t, meta.CaseNumber)
}

func TestParseFilenameCaseNumber(t *testing.T) {
	meta := ParseFilename("yargitay 2345-2019 karar.docx", metadataNow)
	require.NotNil(t, meta.CaseNumber)
	assert.Equal(t, "2345-2019", *meta.CaseNumber)
	require.NotNil(t, meta.DecisionDate)
	assert.Equal(t, time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC), *meta.DecisionDate)
}

func TestParseFilenameIgnoresFutureAndAncientYears(t *testing.T) {
	meta := ParseFilename("15-2031.txt", metadataNow)
	require.NotNil(t, meta.CaseNumber)
	assert.Nil(t, meta.DecisionDate)

	meta = ParseFilename("12-1850.txt", metadataNow)
	assert.Nil(t, meta.DecisionDate)
}

func TestParseFilenameStandaloneYear(t *testing.T) {
	meta := ParseFilename("danistay_karari_2021.pdf", metadataNow)
	assert.Nil(t, meta.CaseNumber)
	require.NotNil(t, meta.DecisionDate)
	assert.Equal(t, 2021, meta.DecisionDate.Year())
}

func TestParseFilenameLawNumber(t *testing.T) {
	meta := ParseFilename("5411 sayili bankacilik kanunu.pdf", metadataNow)
	require.NotNil(t, meta.LawNumber)
	assert.Equal(t, "5411", *meta.LawNumber)

	meta = ParseFilename("kanun_no_6098.txt", metadataNow)
	require.NotNil(t, meta.LawNumber)
	assert.Equal(t, "6098", *meta.LawNumber)
}

func TestDetectDocumentType(t *testing.T) {
	tests := []struct {
		name, file, content string
		want                models.DocumentType
	}{
		{"bank in name", "Banka_Genelgesi.pdf", "metin", models.TypeBankingLaw},
		{"banking in content", "genelge.pdf", "BANKACILIK düzenlemesi", models.TypeBankingLaw},
		{"banking without dotless i", "genelge.pdf", "Bankacilik duzenlemesi", models.TypeBankingLaw},
		{"mevzuat in name", "mevzuat_2020.txt", "metin", models.TypeLegislation},
		{"kanun in name", "Türk_Ticaret_Kanunu.docx", "metin", models.TypeLegislation},
		{"madde and yasa", "belge.txt", "Bu yasa uyarınca ilgili madde uygulanır.", models.TypeLegislation},
		{"madde only", "belge.txt", "İlgili madde uygulanır.", models.TypeDecision},
		{"plain decision", "karar.pdf", "Davacı talebi reddedildi.", models.TypeDecision},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectDocumentType(tt.file, tt.content))
		})
	}
}

func TestDeriveTitle(t *testing.T) {
	assert.Equal(t, "YARGITAY 3. HUKUK DAİRESİ KARARI",
		DeriveTitle("\n  YARGITAY 3. HUKUK DAİRESİ KARARI  \nMetin devam eder.", "/in/karar.pdf"))
	assert.Equal(t, "karar", DeriveTitle("Kısa\nsonra uzun bir satır gelir", "/in/karar.pdf"))
	assert.Equal(t, "karar", DeriveTitle("", "karar.txt"))
}
