// Package langflow implements the AnalysisClient port against a Langflow
// automation endpoint.
package langflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/reviewbot/internal/domain/model"
	"github.com/ericfisherdev/reviewbot/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AnalysisClient = (*Client)(nil)

// Protocol selects the request envelope and route shape. Two generations of
// the Langflow API are in the wild; only one is canonical per deployment.
type Protocol string

const (
	// ProtocolCurrent posts {payload, session_id, tweaks} to /run/{flow}.
	ProtocolCurrent Protocol = "current"
	// ProtocolLegacy posts {input_value, input_type, output_type, tweaks}
	// to /api/v1/run/{flow}.
	ProtocolLegacy Protocol = "legacy"
)

// defaultMessage is returned when a 2xx response does not carry a message at
// any of the known nesting levels.
const defaultMessage = "Analysis completed"

// Client implements driven.AnalysisClient. One Run call performs exactly one
// POST; there is no retry, and every failure mode is normalized into the
// returned AnalysisResult.
type Client struct {
	endpoint   string
	apiKey     string
	protocol   Protocol
	tweaks     map[string]any
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an analysis client. endpoint and apiKey may be empty;
// in that case Run reports a configuration failure instead of calling out.
func NewClient(endpoint, apiKey string, protocol Protocol, logger *slog.Logger) *Client {
	if protocol == "" {
		protocol = ProtocolCurrent
	}
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		protocol:   protocol,
		tweaks:     map[string]any{},
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger,
	}
}

// WithTweaks sets caller-supplied tuning parameters forwarded verbatim in
// every request envelope.
func (c *Client) WithTweaks(tweaks map[string]any) *Client {
	c.tweaks = tweaks
	return c
}

// WithHTTPClient overrides the HTTP client. Intended for testing.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	c.httpClient = httpClient
	return c
}

// Run serializes payload, posts it to the flow identified by flowID, and
// extracts a human-readable message from the nested response shape. A
// malformed response shape degrades to defaultMessage, never an error.
func (c *Client) Run(ctx context.Context, payload any, flowID string) model.AnalysisResult {
	if c.endpoint == "" || c.apiKey == "" || flowID == "" {
		return failure("analysis service not configured: endpoint, API key, and flow ID are required")
	}

	serialized, err := json.Marshal(payload)
	if err != nil {
		return failure(fmt.Sprintf("serializing analysis payload: %v", err))
	}

	envelope, url := c.buildRequest(string(serialized), flowID)
	body, err := json.Marshal(envelope)
	if err != nil {
		return failure(fmt.Sprintf("serializing request envelope: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return failure(fmt.Sprintf("building analysis request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Info("triggering analysis flow", "flow_id", flowID, "protocol", string(c.protocol))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return failure(fmt.Sprintf("analysis request failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		upstream, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return failure(fmt.Sprintf("analysis service returned %d: %s", resp.StatusCode, string(upstream)))
	}

	var decoded runResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return failure(fmt.Sprintf("decoding analysis response: %v", err))
	}

	return model.AnalysisResult{OK: true, Message: extractMessage(decoded)}
}

// buildRequest returns the protocol-specific envelope and target URL.
func (c *Client) buildRequest(serialized, flowID string) (any, string) {
	if c.protocol == ProtocolLegacy {
		return legacyEnvelope{
			InputValue: serialized,
			InputType:  "chat",
			OutputType: "chat",
			Tweaks:     c.tweaks,
		}, fmt.Sprintf("%s/api/v1/run/%s", c.endpoint, flowID)
	}

	return currentEnvelope{
		Payload:   serialized,
		SessionID: uuid.NewString(),
		Tweaks:    c.tweaks,
	}, fmt.Sprintf("%s/run/%s", c.endpoint, flowID)
}

// currentEnvelope is the canonical request shape.
type currentEnvelope struct {
	Payload   string         `json:"payload"`
	SessionID string         `json:"session_id"`
	Tweaks    map[string]any `json:"tweaks"`
}

// legacyEnvelope is the earlier protocol generation's request shape.
type legacyEnvelope struct {
	InputValue string         `json:"input_value"`
	InputType  string         `json:"input_type"`
	OutputType string         `json:"output_type"`
	Tweaks     map[string]any `json:"tweaks"`
}

// runResponse mirrors the nested, optionally-absent response structure:
// outputs[0].outputs[0].results.message.{text|data.text}. Every level may be
// missing; extraction defines a fallback per level.
type runResponse struct {
	Outputs []struct {
		Outputs []struct {
			Results struct {
				Message struct {
					Text string `json:"text"`
					Data struct {
						Text string `json:"text"`
					} `json:"data"`
				} `json:"message"`
			} `json:"results"`
		} `json:"outputs"`
	} `json:"outputs"`
}

// extractMessage walks the nested response, preferring message.text, then
// message.data.text, then defaultMessage.
func extractMessage(r runResponse) string {
	if len(r.Outputs) == 0 || len(r.Outputs[0].Outputs) == 0 {
		return defaultMessage
	}

	msg := r.Outputs[0].Outputs[0].Results.Message
	if msg.Text != "" {
		return msg.Text
	}
	if msg.Data.Text != "" {
		return msg.Data.Text
	}
	return defaultMessage
}

func failure(reason string) model.AnalysisResult {
	return model.AnalysisResult{OK: false, Reason: reason}
}
