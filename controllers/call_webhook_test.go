package controller

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"dealdialer/models"
	"dealdialer/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newWebhookApp(cc *CallController) *fiber.App {
	app := fiber.New()
	app.Post("/webhooks/voice", cc.HandleVoiceWebhook)
	return app
}

func postWebhook(t *testing.T, app *fiber.App, body string) map[string]interface{} {
	t.Helper()
	req := httptest.NewRequest("POST", "/webhooks/voice", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// seedActiveCall creates a call with an external id, as if the voice
// platform had confirmed the session.
func seedActiveCall(t *testing.T, db *gorm.DB, cc *CallController, externalID string) *models.Call {
	t.Helper()
	banker, _, company := seedProspect(t, db)
	call, err := cc.CreateCall(company.ID, banker.ID)
	require.NoError(t, err)
	require.NoError(t, db.Model(call).Update("external_id", externalID).Error)
	call.ExternalID = utils.Pointer(externalID)
	return call
}

func TestWebhookAcksMalformedBody(t *testing.T) {
	db := newTestDB(t)
	cc := newTestCallController(db)
	app := newWebhookApp(cc)

	out := postWebhook(t, app, `{broken`)
	assert.Equal(t, true, out["received"])
}

func TestWebhookAcksUnknownExternalID(t *testing.T) {
	db := newTestDB(t)
	cc := newTestCallController(db)
	app := newWebhookApp(cc)

	out := postWebhook(t, app, `{
		"callId": "never-seen",
		"message": {"type": "transcript", "transcriptType": "final", "role": "user", "transcript": "hello"}
	}`)
	assert.Equal(t, true, out["received"])

	var count int64
	db.Model(&models.CallMessage{}).Count(&count)
	assert.Zero(t, count)
}

func TestWebhookAcksMissingCallID(t *testing.T) {
	db := newTestDB(t)
	cc := newTestCallController(db)
	app := newWebhookApp(cc)

	out := postWebhook(t, app, `{"message": {"type": "status-update"}}`)
	assert.Equal(t, true, out["received"])
}

func TestWebhookPersistsFinalTranscriptOnly(t *testing.T) {
	db := newTestDB(t)
	cc := newTestCallController(db)
	app := newWebhookApp(cc)
	call := seedActiveCall(t, db, cc, "vapi-transcripts")

	postWebhook(t, app, `{
		"callId": "vapi-transcripts",
		"message": {"type": "transcript", "transcriptType": "partial", "role": "user", "transcript": "We mi"}
	}`)
	postWebhook(t, app, `{
		"callId": "vapi-transcripts",
		"message": {"type": "transcript", "transcriptType": "final", "role": "user", "transcript": "We might sell."}
	}`)

	var messages []models.CallMessage
	require.NoError(t, db.Where("call_id = ?", call.ID).Find(&messages).Error)
	require.Len(t, messages, 1)
	assert.Equal(t, "We might sell.", messages[0].Transcript)
	assert.Equal(t, models.RoleUser, messages[0].Role)
}

func TestWebhookEndOfCallReportFinalizes(t *testing.T) {
	db := newTestDB(t)
	cc := newTestCallController(db)
	app := newWebhookApp(cc)
	call := seedActiveCall(t, db, cc, "vapi-ended")

	out := postWebhook(t, app, `{
		"callId": "vapi-ended",
		"message": {"type": "end-of-call-report", "durationSeconds": 150}
	}`)
	assert.Equal(t, true, out["received"])

	var stored models.Call
	require.NoError(t, db.First(&stored, call.ID).Error)
	assert.True(t, stored.IsFinalized())
	assert.Equal(t, 3, stored.Duration) // 150s rounds to 3 minutes
}

func TestWebhookReportsToolResults(t *testing.T) {
	db := newTestDB(t)
	cc := newTestCallController(db)
	app := newWebhookApp(cc)
	seedActiveCall(t, db, cc, "vapi-tools")

	out := postWebhook(t, app, `{
		"callId": "vapi-tools",
		"message": {
			"type": "tool-calls",
			"toolCallList": [
				{"id": "tc-1", "function": {"name": "find_meeting_slots", "arguments": {"duration_minutes": 30, "days_ahead": 5}}}
			]
		}
	}`)
	assert.Equal(t, true, out["received"])

	results, ok := out["results"].([]interface{})
	require.True(t, ok, "tool-call batches must report results")
	require.Len(t, results, 1)
	first := results[0].(map[string]interface{})
	assert.Equal(t, "tc-1", first["toolCallId"])
}

func TestWebhookUnknownToolDoesNotFailTheBatch(t *testing.T) {
	db := newTestDB(t)
	cc := newTestCallController(db)
	app := newWebhookApp(cc)
	seedActiveCall(t, db, cc, "vapi-unknown-tool")

	out := postWebhook(t, app, `{
		"callId": "vapi-unknown-tool",
		"message": {
			"type": "tool-calls",
			"toolCallList": [
				{"id": "tc-9", "function": {"name": "order_pizza", "arguments": {}}}
			]
		}
	}`)
	assert.Equal(t, true, out["received"])
	// Unknown tools produce no result entries, and no error either.
	_, hasResults := out["results"]
	assert.False(t, hasResults)
}
