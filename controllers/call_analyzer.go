package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"dealdialer/models"
	"dealdialer/utils"

	"gorm.io/gorm"
)

// CallAnalysis is the structured verdict the LLM returns for a finished
// call.
type CallAnalysis struct {
	Outcome       string   `json:"outcome" validate:"required,oneof=productive no_answer voicemail scheduled_meeting not_interested"`
	InterestLevel int      `json:"interest_level" validate:"min=0,max=100"`
	Summary       string   `json:"summary" validate:"required"`
	KeyPoints     []string `json:"key_points" validate:"required,min=1,max=5,dive,required"`
}

const analyzerSystemPrompt = `You are an analyst reviewing transcripts of M&A outreach calls made by an AI voice agent on behalf of an investment banker.
Classify the call and respond with a JSON object containing exactly these fields:
- "outcome": one of "productive", "no_answer", "voicemail", "scheduled_meeting", "not_interested"
- "interest_level": integer 0-100 estimating the prospect's interest in selling
- "summary": two or three sentences summarizing the call
- "key_points": array of 1 to 5 short bullet strings with the most important takeaways
Respond with the JSON object only.`

// AnalyzeCall classifies a finished call and persists outcome, summary
// and notes onto the Call row. It performs no writes on failure; the
// caller owns the analysis-status bookkeeping for failed attempts.
func (cc *CallController) AnalyzeCall(callID uint) (*CallAnalysis, error) {
	var call models.Call
	if err := cc.DB.First(&call, callID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("call", callID)
		}
		return nil, &utils.PersistenceError{Op: "load call", Err: err}
	}

	var messages []models.CallMessage
	if err := cc.DB.Where("call_id = ?", callID).
		Order("timestamp ASC, sequence ASC").
		Find(&messages).Error; err != nil {
		return nil, &utils.PersistenceError{Op: "load messages", Err: err}
	}
	if len(messages) == 0 {
		return nil, utils.NewValidationError("call %d has an empty transcript, nothing to analyze", callID)
	}

	var company models.SellerCompany
	if err := cc.DB.First(&company, call.SellerCompanyID).Error; err != nil {
		return nil, utils.NewNotFoundError("seller company", call.SellerCompanyID)
	}

	var transcript strings.Builder
	for _, m := range messages {
		transcript.WriteString(m.Role)
		transcript.WriteString(": ")
		transcript.WriteString(m.Transcript)
		transcript.WriteString("\n")
	}

	userPrompt := fmt.Sprintf(
		"Company: %s\nIndustry: %s\nLocation: %s\nContact: %s (%s)\n\nTranscript:\n%s",
		company.Name, company.Industry, company.Location,
		company.ContactName, company.ContactTitle,
		transcript.String(),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	raw, err := cc.LLM.CreateJSONCompletion(ctx, analyzerSystemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	var analysis CallAnalysis
	if err := json.Unmarshal([]byte(utils.StripCodeFence(raw)), &analysis); err != nil {
		return nil, utils.NewValidationError("analyzer returned malformed JSON: %v", err)
	}
	if err := utils.ValidateStruct(&analysis); err != nil {
		return nil, err
	}

	notes := fmt.Sprintf("Interest: %d/100\n- %s",
		analysis.InterestLevel, strings.Join(analysis.KeyPoints, "\n- "))

	if err := cc.DB.Model(&call).Updates(map[string]interface{}{
		"outcome":         analysis.Outcome,
		"summary":         analysis.Summary,
		"notes":           notes,
		"analysis_status": models.AnalysisCompleted,
	}).Error; err != nil {
		return nil, &utils.PersistenceError{Op: "persist analysis", Err: err}
	}

	// Outcome bookkeeping on the prospect record.
	switch analysis.Outcome {
	case models.OutcomeNotInterested:
		cc.DB.Model(&company).Update("status", "not_interested")
	case models.OutcomeScheduledMeeting:
		cc.DB.Model(&company).Update("status", "meeting_scheduled")
	}

	return &analysis, nil
}
