package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"dealdialer/config"

	"github.com/sirupsen/logrus"
)

// VapiClient places outbound calls through the voice platform. The
// platform runs the conversation itself and reports progress back to us
// asynchronously through the /webhooks/voice endpoint.
type VapiClient struct {
	BaseURL       string
	APIKey        string
	PhoneNumberID string
	HTTPClient    *http.Client
}

func NewVapiClient() *VapiClient {
	return &VapiClient{
		BaseURL:       config.AppConfig.Vapi.BaseURL,
		APIKey:        config.AppConfig.Vapi.APIKey,
		PhoneNumberID: config.AppConfig.Vapi.PhoneNumberID,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Request/response shapes for POST /call. The field layout is the
// platform's contract; do not reshape it.

type VapiModelMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type VapiToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type VapiTool struct {
	Type     string           `json:"type"`
	Function VapiToolFunction `json:"function"`
}

type VapiModel struct {
	Provider    string             `json:"provider"`
	Model       string             `json:"model"`
	Temperature float64            `json:"temperature"`
	Messages    []VapiModelMessage `json:"messages"`
	Tools       []VapiTool         `json:"tools,omitempty"`
}

type VapiAssistant struct {
	Transcriber        map[string]interface{} `json:"transcriber"`
	Model              VapiModel              `json:"model"`
	Voice              map[string]interface{} `json:"voice"`
	BackgroundSound    string                 `json:"backgroundSound,omitempty"`
	MaxDurationSeconds int                    `json:"maxDurationSeconds"`
	Name               string                 `json:"name"`
	FirstMessage       string                 `json:"firstMessage"`
}

type VapiCustomer struct {
	Number string `json:"number"`
}

type VapiCallRequest struct {
	PhoneNumberID string        `json:"phoneNumberId"`
	Customer      VapiCustomer  `json:"customer"`
	Assistant     VapiAssistant `json:"assistant"`
}

type vapiCallResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CreateCall dials the customer number and returns the platform's call
// id, which we persist for webhook correlation.
func (vc *VapiClient) CreateCall(ctx context.Context, number string, assistant VapiAssistant) (string, error) {
	reqBody := VapiCallRequest{
		PhoneNumberID: vc.PhoneNumberID,
		Customer:      VapiCustomer{Number: number},
		Assistant:     assistant,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("vapi marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, vc.BaseURL+"/call", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+vc.APIKey)

	resp, err := vc.HTTPClient.Do(req)
	if err != nil {
		return "", &ExternalApiError{Service: "vapi", Msg: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		logrus.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   string(respBody),
		}).Error("Vapi call creation rejected")
		return "", &ExternalApiError{Service: "vapi", Status: resp.StatusCode, Msg: string(respBody)}
	}

	var callResp vapiCallResponse
	if err := json.NewDecoder(resp.Body).Decode(&callResp); err != nil {
		return "", &ExternalApiError{Service: "vapi", Msg: "decode: " + err.Error()}
	}
	if callResp.ID == "" {
		return "", &ExternalApiError{Service: "vapi", Msg: "response missing call id"}
	}

	logrus.WithFields(logrus.Fields{
		"external_id": callResp.ID,
		"status":      callResp.Status,
	}).Info("Vapi call created")

	return callResp.ID, nil
}
