package controller

import (
	"encoding/json"
	"time"

	"dealdialer/models"
	"dealdialer/utils"
)

// Shared event normalization for both call paths. The voice platform
// reports events over the server webhook, and the browser SDK forwards
// the same events from client-initiated sessions; both adapters parse
// into voiceEvent and route through applyVoiceEvent so the two paths
// cannot drift apart.

type voiceEvent struct {
	Type            string
	TranscriptType  string
	Role            string
	Transcript      string
	Timestamp       time.Time
	ToolCalls       []ToolCallDescriptor
	DurationSeconds float64
}

type wireToolCall struct {
	ID       string `json:"id"`
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type wireEvent struct {
	Type            string         `json:"type"`
	TranscriptType  string         `json:"transcriptType"`
	Role            string         `json:"role"`
	Transcript      string         `json:"transcript"`
	Timestamp       int64          `json:"timestamp"` // epoch millis
	ToolCalls       []wireToolCall `json:"toolCalls"`
	ToolCallList    []wireToolCall `json:"toolCallList"`
	DurationSeconds float64        `json:"durationSeconds"`
}

// wireEnvelope accepts both body shapes the platform emits: the call id
// as {call:{id}} or {callId}, and the event nested under "message" or
// flattened at the top level.
type wireEnvelope struct {
	wireEvent
	Message *wireEvent `json:"message"`
	CallID  string     `json:"callId"`
	Call    *struct {
		ID string `json:"id"`
	} `json:"call"`
}

// parseVoiceEnvelope decodes a platform event body and returns the
// normalized event plus the external call id, when present.
func parseVoiceEnvelope(body []byte) (*voiceEvent, string, error) {
	var env wireEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, "", utils.NewValidationError("malformed event body: %v", err)
	}

	externalID := env.CallID
	if externalID == "" && env.Call != nil {
		externalID = env.Call.ID
	}

	we := env.wireEvent
	if env.Message != nil {
		we = *env.Message
	}

	ts := time.Now()
	if we.Timestamp > 0 {
		ts = time.UnixMilli(we.Timestamp)
	}

	toolCalls := we.ToolCalls
	if len(toolCalls) == 0 {
		toolCalls = we.ToolCallList
	}
	descriptors := make([]ToolCallDescriptor, 0, len(toolCalls))
	for _, tc := range toolCalls {
		descriptors = append(descriptors, ToolCallDescriptor{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return &voiceEvent{
		Type:            we.Type,
		TranscriptType:  we.TranscriptType,
		Role:            normalizeRole(we.Role),
		Transcript:      we.Transcript,
		Timestamp:       ts,
		ToolCalls:       descriptors,
		DurationSeconds: we.DurationSeconds,
	}, externalID, nil
}

// normalizeRole maps the platform's speaker labels onto our role enum.
func normalizeRole(role string) string {
	switch role {
	case "assistant", "bot":
		return models.RoleAssistant
	case "user", "customer", "human":
		return models.RoleUser
	default:
		return models.RoleSystem
	}
}

// applyVoiceEvent routes one normalized event into the lifecycle. For
// tool-call batches it returns the per-tool results to report back to
// the voice session; all other event types return nil.
func (cc *CallController) applyVoiceEvent(call *models.Call, ev *voiceEvent) []map[string]interface{} {
	switch ev.Type {
	case "transcript":
		// Interim fragments are superseded by the final one; only the
		// final fragment is persisted.
		if ev.TranscriptType != "final" {
			return nil
		}
		cc.CreateMessage(call.ID, ev.Role, ev.Transcript, ev.Timestamp)

	case "tool-calls":
		tctx, err := cc.loadToolCallContext(call)
		if err != nil {
			cc.Logger.Printf("Cannot build tool context for call %d: %v", call.ID, err)
			return nil
		}
		results := make([]map[string]interface{}, 0, len(ev.ToolCalls))
		for _, tc := range ev.ToolCalls {
			// One failing tool call must not block its siblings.
			result, err := cc.HandleToolCall(tc, tctx)
			if err != nil {
				cc.Logger.Printf("Tool call %q failed during call %d: %v", tc.Name, call.ID, err)
				continue
			}
			if result == nil {
				continue
			}
			results = append(results, map[string]interface{}{
				"toolCallId": tc.ID,
				"result":     result,
			})
		}
		return results

	case "end-of-call-report":
		if _, err := cc.FinalizeCall(call.ID, ev.DurationSeconds/60.0); err != nil {
			cc.Logger.Printf("Failed to finalize call %d from end-of-call-report: %v", call.ID, err)
		}

	case "status-update", "hang", "speech-update":
		cc.Logger.Printf("Call %d event: %s", call.ID, ev.Type)

	default:
		cc.Logger.Printf("Ignoring unrecognized event type %q for call %d", ev.Type, call.ID)
	}
	return nil
}
