package controller

import (
	"testing"
	"time"

	"dealdialer/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVoiceEnvelopeNestedShape(t *testing.T) {
	body := []byte(`{
		"message": {
			"type": "transcript",
			"transcriptType": "final",
			"role": "customer",
			"transcript": "We might consider an offer.",
			"timestamp": 1756720000000
		},
		"call": {"id": "vapi-abc-123"}
	}`)

	ev, externalID, err := parseVoiceEnvelope(body)
	require.NoError(t, err)

	assert.Equal(t, "vapi-abc-123", externalID)
	assert.Equal(t, "transcript", ev.Type)
	assert.Equal(t, "final", ev.TranscriptType)
	assert.Equal(t, models.RoleUser, ev.Role)
	assert.Equal(t, "We might consider an offer.", ev.Transcript)
	assert.Equal(t, time.UnixMilli(1756720000000), ev.Timestamp)
}

func TestParseVoiceEnvelopeFlatShape(t *testing.T) {
	body := []byte(`{
		"callId": "vapi-def-456",
		"type": "end-of-call-report",
		"durationSeconds": 150
	}`)

	ev, externalID, err := parseVoiceEnvelope(body)
	require.NoError(t, err)

	assert.Equal(t, "vapi-def-456", externalID)
	assert.Equal(t, "end-of-call-report", ev.Type)
	assert.Equal(t, 150.0, ev.DurationSeconds)
}

func TestParseVoiceEnvelopeToolCallList(t *testing.T) {
	body := []byte(`{
		"callId": "vapi-ghi-789",
		"message": {
			"type": "tool-calls",
			"toolCallList": [
				{"id": "tc-1", "function": {"name": "find_meeting_slots", "arguments": {"duration_minutes": 30}}}
			]
		}
	}`)

	ev, _, err := parseVoiceEnvelope(body)
	require.NoError(t, err)

	require.Len(t, ev.ToolCalls, 1)
	assert.Equal(t, "tc-1", ev.ToolCalls[0].ID)
	assert.Equal(t, "find_meeting_slots", ev.ToolCalls[0].Name)
}

func TestParseVoiceEnvelopeMalformed(t *testing.T) {
	_, _, err := parseVoiceEnvelope([]byte(`{not json`))
	require.Error(t, err)
}

func TestNormalizeRole(t *testing.T) {
	assert.Equal(t, models.RoleAssistant, normalizeRole("assistant"))
	assert.Equal(t, models.RoleAssistant, normalizeRole("bot"))
	assert.Equal(t, models.RoleUser, normalizeRole("user"))
	assert.Equal(t, models.RoleUser, normalizeRole("customer"))
	assert.Equal(t, models.RoleUser, normalizeRole("human"))
	assert.Equal(t, models.RoleSystem, normalizeRole("tool"))
	assert.Equal(t, models.RoleSystem, normalizeRole(""))
}
