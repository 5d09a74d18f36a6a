package worker

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"dealdialer/config"
	controller "dealdialer/controllers"
	"dealdialer/models"
	"dealdialer/utils"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newWorkerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, config.MigrateDB(db))
	return db
}

// seedFinalizedCall creates a finalized call with the given analysis
// state and a one-line transcript unless empty is set.
func seedFinalizedCall(t *testing.T, db *gorm.DB, status string, attempts int, empty bool) *models.Call {
	t.Helper()

	banker := &models.Banker{Name: "Jordan Reed", Email: "jordan@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(banker).Error)
	campaign := &models.Campaign{BankerID: banker.ID, Name: "Test campaign"}
	require.NoError(t, db.Create(campaign).Error)
	company := &models.SellerCompany{CampaignID: campaign.ID, Name: "Lakeside Mechanical"}
	require.NoError(t, db.Create(company).Error)

	finalized := time.Now().Add(-10 * time.Minute)
	call := &models.Call{
		SellerCompanyID:  company.ID,
		BankerID:         banker.ID,
		CallDate:         finalized,
		Duration:         3,
		AnalysisStatus:   status,
		AnalysisAttempts: attempts,
		FinalizedAt:      &finalized,
	}
	require.NoError(t, db.Create(call).Error)

	if !empty {
		require.NoError(t, db.Create(&models.CallMessage{
			CallID:     call.ID,
			Role:       models.RoleUser,
			Transcript: "We are not selling, please stop calling.",
			Timestamp:  finalized,
			Sequence:   1,
		}).Error)
	}
	return call
}

func newWorker(db *gorm.DB, llm *utils.OpenRouterClient) *AnalysisWorker {
	logger := log.New(io.Discard, "", 0)
	return &AnalysisWorker{
		DB: db,
		Analyzer: &controller.CallController{
			DB:       db,
			Logger:   logger,
			LLM:      llm,
			Calendar: &utils.MetorialClient{},
		},
		Logger: logger,
	}
}

func TestWorkerRetriesFailedAnalysis(t *testing.T) {
	db := newWorkerTestDB(t)
	call := seedFinalizedCall(t, db, models.AnalysisFailed, 1, false)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": `{"outcome": "not_interested", "interest_level": 5, "summary": "Owner declined firmly.", "key_points": ["Not selling"]}`}},
			},
		})
	}))
	t.Cleanup(srv.Close)

	aw := newWorker(db, &utils.OpenRouterClient{BaseURL: srv.URL, Model: "openai/gpt-4o-mini", HTTPClient: srv.Client()})
	aw.processPendingAnalyses()

	var stored models.Call
	require.NoError(t, db.First(&stored, call.ID).Error)
	assert.Equal(t, models.AnalysisCompleted, stored.AnalysisStatus)
	require.NotNil(t, stored.Outcome)
	assert.Equal(t, models.OutcomeNotInterested, *stored.Outcome)
}

func TestWorkerCountsFailedRetries(t *testing.T) {
	db := newWorkerTestDB(t)
	call := seedFinalizedCall(t, db, models.AnalysisFailed, 1, false)

	// No model configured, so every attempt fails.
	aw := newWorker(db, &utils.OpenRouterClient{HTTPClient: http.DefaultClient})
	aw.processPendingAnalyses()

	var stored models.Call
	require.NoError(t, db.First(&stored, call.ID).Error)
	assert.Equal(t, models.AnalysisFailed, stored.AnalysisStatus)
	assert.Equal(t, 2, stored.AnalysisAttempts)

	// At the attempt cap the call is no longer picked up.
	aw.processPendingAnalyses()
	require.NoError(t, db.First(&stored, call.ID).Error)
	assert.Equal(t, 3, stored.AnalysisAttempts)

	aw.processPendingAnalyses()
	require.NoError(t, db.First(&stored, call.ID).Error)
	assert.Equal(t, 3, stored.AnalysisAttempts)
}

func TestWorkerStopsRetryingEmptyTranscripts(t *testing.T) {
	db := newWorkerTestDB(t)
	call := seedFinalizedCall(t, db, models.AnalysisFailed, 1, true)

	aw := newWorker(db, &utils.OpenRouterClient{HTTPClient: http.DefaultClient})
	aw.processPendingAnalyses()

	var stored models.Call
	require.NoError(t, db.First(&stored, call.ID).Error)
	assert.Equal(t, models.AnalysisFailed, stored.AnalysisStatus)
	assert.Equal(t, maxAnalysisAttempts, stored.AnalysisAttempts)
}

func TestWorkerPicksUpStalePendingCalls(t *testing.T) {
	db := newWorkerTestDB(t)
	// Finalized 10 minutes ago but never analyzed, e.g. a crash between
	// the duration write and the analysis write.
	call := seedFinalizedCall(t, db, models.AnalysisPending, 0, false)

	aw := newWorker(db, &utils.OpenRouterClient{HTTPClient: http.DefaultClient})
	aw.processPendingAnalyses()

	var stored models.Call
	require.NoError(t, db.First(&stored, call.ID).Error)
	assert.Equal(t, models.AnalysisFailed, stored.AnalysisStatus)
	assert.Equal(t, 1, stored.AnalysisAttempts)
}

func TestWorkerIgnoresUnfinalizedCalls(t *testing.T) {
	db := newWorkerTestDB(t)
	call := seedFinalizedCall(t, db, models.AnalysisPending, 0, false)
	require.NoError(t, db.Model(call).Update("finalized_at", nil).Error)

	aw := newWorker(db, &utils.OpenRouterClient{HTTPClient: http.DefaultClient})
	aw.processPendingAnalyses()

	var stored models.Call
	require.NoError(t, db.First(&stored, call.ID).Error)
	assert.Equal(t, models.AnalysisPending, stored.AnalysisStatus)
	assert.Zero(t, stored.AnalysisAttempts)
}
