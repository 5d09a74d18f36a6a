package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"dealdialer/config"

	"github.com/sirupsen/logrus"
)

// MetorialClient invokes calendar tools (get_freebusy, create_event,
// list_events) against an OAuth-scoped MCP session. The session is
// provisioned when the banker connects their calendar; without one the
// callers fall back to stubbed scheduling.
type MetorialClient struct {
	BaseURL    string
	APIKey     string
	SessionID  string
	HTTPClient *http.Client
}

func NewMetorialClient() *MetorialClient {
	return &MetorialClient{
		BaseURL:   config.AppConfig.Metorial.BaseURL,
		APIKey:    config.AppConfig.Metorial.APIKey,
		SessionID: config.AppConfig.Metorial.SessionID,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// HasSession reports whether a calendar session is configured.
func (mc *MetorialClient) HasSession() bool {
	return mc.SessionID != "" && mc.APIKey != ""
}

type mcpToolRequest struct {
	Tool      string                 `json:"tool"`
	Arguments map[string]interface{} `json:"arguments"`
}

type mcpToolResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

// CallTool invokes a single MCP tool and returns the concatenated text
// content of the response.
func (mc *MetorialClient) CallTool(ctx context.Context, tool string, args map[string]interface{}) (string, error) {
	if !mc.HasSession() {
		return "", &ExternalApiError{Service: "metorial", Msg: "no calendar session configured"}
	}

	body, err := json.Marshal(mcpToolRequest{Tool: tool, Arguments: args})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/sessions/%s/tools/call", mc.BaseURL, mc.SessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+mc.APIKey)

	resp, err := mc.HTTPClient.Do(req)
	if err != nil {
		return "", &ExternalApiError{Service: "metorial", Msg: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &ExternalApiError{Service: "metorial", Status: resp.StatusCode, Msg: "tool " + tool}
	}

	var toolResp mcpToolResponse
	if err := json.NewDecoder(resp.Body).Decode(&toolResp); err != nil {
		return "", &ExternalApiError{Service: "metorial", Msg: "decode: " + err.Error()}
	}
	if toolResp.IsError {
		return "", &ExternalApiError{Service: "metorial", Msg: "tool " + tool + " reported error"}
	}

	var text string
	for _, c := range toolResp.Content {
		if c.Type == "text" {
			text += c.Text
		}
	}

	logrus.WithFields(logrus.Fields{"tool": tool, "bytes": len(text)}).Debug("MCP tool call completed")
	return text, nil
}

// BusyInterval is one busy block parsed from a free/busy response.
type BusyInterval struct {
	Start time.Time
	End   time.Time
}

// The free/busy tool answers in prose; busy blocks appear as ISO8601
// interval pairs ("2026-09-01T14:00:00Z - 2026-09-01T15:00:00Z" or
// joined with "/"). The pattern is fixed by the broker's output format.
var busyIntervalRe = regexp.MustCompile(
	`(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:Z|[+-]\d{2}:\d{2}))\s*[/-]\s*(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:Z|[+-]\d{2}:\d{2}))`)

// ParseBusyIntervals extracts busy blocks from a free/busy text response.
// Pairs that fail to parse or are inverted are dropped.
func ParseBusyIntervals(text string) []BusyInterval {
	matches := busyIntervalRe.FindAllStringSubmatch(text, -1)
	intervals := make([]BusyInterval, 0, len(matches))
	for _, m := range matches {
		start, err := time.Parse(time.RFC3339, m[1])
		if err != nil {
			continue
		}
		end, err := time.Parse(time.RFC3339, m[2])
		if err != nil {
			continue
		}
		if !end.After(start) {
			continue
		}
		intervals = append(intervals, BusyInterval{Start: start, End: end})
	}
	return intervals
}

// GetFreeBusy fetches busy intervals for the window.
func (mc *MetorialClient) GetFreeBusy(ctx context.Context, from, to time.Time) ([]BusyInterval, error) {
	text, err := mc.CallTool(ctx, "get_freebusy", map[string]interface{}{
		"timeMin": from.Format(time.RFC3339),
		"timeMax": to.Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	return ParseBusyIntervals(text), nil
}

// CreateEvent books a calendar event and returns the broker's text
// response (which includes the provider event reference).
func (mc *MetorialClient) CreateEvent(ctx context.Context, title string, start, end time.Time, attendeeEmail string) (string, error) {
	args := map[string]interface{}{
		"summary": title,
		"start":   start.Format(time.RFC3339),
		"end":     end.Format(time.RFC3339),
	}
	if attendeeEmail != "" {
		args["attendees"] = []string{attendeeEmail}
	}
	return mc.CallTool(ctx, "create_event", args)
}

// ListEvents lists events in the window as raw broker text.
func (mc *MetorialClient) ListEvents(ctx context.Context, from, to time.Time) (string, error) {
	return mc.CallTool(ctx, "list_events", map[string]interface{}{
		"timeMin": from.Format(time.RFC3339),
		"timeMax": to.Format(time.RFC3339),
	})
}
