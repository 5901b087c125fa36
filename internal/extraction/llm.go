package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"stagehand/internal/booking"
	"stagehand/internal/config"
	"stagehand/internal/constants"
	"stagehand/internal/ingest"
	"stagehand/internal/logger"
	"stagehand/pkg/metrics"
	"stagehand/pkg/retry"
	"stagehand/pkg/tracing"
)

// HTTPAdapter talks to an OpenAI-compatible chat completion endpoint.
type HTTPAdapter struct {
	client      *http.Client
	cfg         config.ExtractionConfig
	retryPolicy retry.Policy
	logger      logger.Logger
}

func NewHTTPAdapter(cfg config.ExtractionConfig, log logger.Logger) *HTTPAdapter {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}

	policy := retry.Policy{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: cfg.Retry.InitialInterval,
		MaxInterval:     cfg.Retry.MaxInterval,
		Multiplier:      cfg.Retry.Multiplier,
		MaxElapsedTime:  cfg.Retry.MaxElapsedTime,
	}
	if policy.MaxAttempts <= 0 {
		policy = retry.DefaultPolicy()
	}

	return &HTTPAdapter{
		client:      &http.Client{Timeout: timeout},
		cfg:         cfg,
		retryPolicy: policy,
		logger:      log,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (a *HTTPAdapter) Extract(ctx context.Context, msg ingest.Message, contextBookings []booking.Booking) (*Result, error) {
	ctx, span := tracing.GetTracer("extraction-adapter").Start(ctx, "extraction.extract")
	defer span.End()

	start := time.Now()
	prompt := buildPrompt(msg, contextBookings)

	var raw string
	err := retry.Retry(ctx, a.retryPolicy, func() error {
		var callErr error
		raw, callErr = a.complete(ctx, prompt)
		return callErr
	})
	if err != nil {
		metrics.ExtractionRequestsTotal.WithLabelValues("error").Inc()
		metrics.ObserveExtractionDuration(time.Since(start), "error")
		return nil, &Error{MessageID: msg.ID, Reason: "completion request failed", Err: err}
	}

	result, err := parseResult(msg.ID, raw)
	if err != nil {
		metrics.ExtractionRequestsTotal.WithLabelValues("invalid").Inc()
		metrics.ObserveExtractionDuration(time.Since(start), "invalid")
		return nil, err
	}

	metrics.ExtractionRequestsTotal.WithLabelValues("ok").Inc()
	metrics.ObserveExtractionDuration(time.Since(start), "ok")
	return result, nil
}

func (a *HTTPAdapter) complete(ctx context.Context, prompt string) (string, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model: a.cfg.Model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return "", retry.NewFatalError(fmt.Errorf("failed to marshal completion request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.Endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", retry.NewFatalError(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if a.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
		err := fmt.Errorf("completion endpoint returned status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return "", retry.NewFatalError(err)
		}
		return "", err
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion response has no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

type wireResult struct {
	VenueName    string   `json:"venue_name"`
	Date         string   `json:"date"`
	Location     string   `json:"location"`
	Fee          *float64 `json:"fee"`
	ContactName  string   `json:"contact_name"`
	ContactEmail string   `json:"contact_email"`
	StartTime    string   `json:"start_time"`
	EndTime      string   `json:"end_time"`
	Confidence   *float64 `json:"ai_confidence"`
	Notes        string   `json:"ai_notes"`
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseResult sanitizes the model output into a typed Result. Models wrap
// JSON in markdown fences often enough that stripping them is part of the
// contract; anything that still fails to parse is an extraction failure.
func parseResult(messageID, raw string) (*Result, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return nil, &Error{MessageID: messageID, Reason: "empty completion output"}
	}

	var wire wireResult
	if err := json.Unmarshal([]byte(cleaned), &wire); err != nil {
		return nil, &Error{MessageID: messageID, Reason: "completion output is not valid JSON", Err: err}
	}

	result := &Result{
		VenueName:    strings.TrimSpace(wire.VenueName),
		Location:     strings.TrimSpace(wire.Location),
		Fee:          wire.Fee,
		ContactName:  strings.TrimSpace(wire.ContactName),
		ContactEmail: strings.TrimSpace(wire.ContactEmail),
		StartTime:    strings.TrimSpace(wire.StartTime),
		EndTime:      strings.TrimSpace(wire.EndTime),
		Confidence:   constants.DefaultConfidence,
		Notes:        constants.PlaceholderNotes,
	}

	if wire.Confidence != nil && *wire.Confidence >= 0 && *wire.Confidence <= 1 {
		result.Confidence = *wire.Confidence
	}
	if notes := strings.TrimSpace(wire.Notes); notes != "" {
		result.Notes = notes
	}

	if wire.Date != "" {
		date, err := parseDate(wire.Date)
		if err != nil {
			return nil, &Error{MessageID: messageID, Reason: fmt.Sprintf("unparseable date %q", wire.Date), Err: err}
		}
		result.Date = &date
	}

	return result, nil
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("no known date layout matches %q", value)
}
