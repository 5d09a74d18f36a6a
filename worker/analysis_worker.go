package worker

import (
	"context"
	"log"
	"time"

	controller "dealdialer/controllers"
	"dealdialer/models"
	"dealdialer/utils"

	"gorm.io/gorm"
)

const (
	maxAnalysisAttempts = 3

	// Grace period before the worker picks up a finalized call whose
	// analysis never ran, e.g. the process died between the duration
	// write and the analysis write.
	pendingGracePeriod = 2 * time.Minute
)

// AnalysisWorker retries transcript analysis for finalized calls that
// don't have a completed analysis yet.
type AnalysisWorker struct {
	DB       *gorm.DB
	Analyzer *controller.CallController
	Logger   *log.Logger
}

func NewAnalysisWorker(db *gorm.DB, logger *log.Logger) *AnalysisWorker {
	return &AnalysisWorker{
		DB:       db,
		Analyzer: controller.NewCallController(db, logger),
		Logger:   logger,
	}
}

func (aw *AnalysisWorker) Start(ctx context.Context) {
	// Initial delay to let the server start up
	time.Sleep(10 * time.Second)

	aw.Logger.Println("Analysis worker started")

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			aw.Logger.Println("Analysis worker shutting down...")
			return
		case <-ticker.C:
			aw.processPendingAnalyses()
		}
	}
}

func (aw *AnalysisWorker) processPendingAnalyses() {
	cutoff := time.Now().Add(-pendingGracePeriod)

	var calls []models.Call
	err := aw.DB.
		Where("finalized_at IS NOT NULL AND analysis_attempts < ?", maxAnalysisAttempts).
		Where("analysis_status = ? OR (analysis_status = ? AND finalized_at < ?)",
			models.AnalysisFailed, models.AnalysisPending, cutoff).
		Order("finalized_at ASC").
		Limit(20).
		Find(&calls).Error
	if err != nil {
		aw.Logger.Printf("Error fetching calls awaiting analysis: %v", err)
		return
	}

	for _, call := range calls {
		if err := aw.retryAnalysis(call); err != nil {
			aw.Logger.Printf("Analysis retry failed for call %d: %v", call.ID, err)
		}
	}
}

func (aw *AnalysisWorker) retryAnalysis(call models.Call) error {
	_, err := aw.Analyzer.AnalyzeCall(call.ID)
	if err == nil {
		aw.Logger.Printf("Analysis completed for call %d", call.ID)
		return nil
	}

	// Calls with no transcript can never analyze; stop retrying them.
	attempts := call.AnalysisAttempts + 1
	if utils.IsValidation(err) {
		attempts = maxAnalysisAttempts
	}
	if dbErr := aw.DB.Model(&models.Call{}).Where("id = ?", call.ID).
		Updates(map[string]interface{}{
			"analysis_status":   models.AnalysisFailed,
			"analysis_attempts": attempts,
		}).Error; dbErr != nil {
		aw.Logger.Printf("Error recording analysis failure for call %d: %v", call.ID, dbErr)
	}
	return err
}
