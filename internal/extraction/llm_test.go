package extraction

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagehand/internal/config"
	"stagehand/internal/ingest"
	"stagehand/internal/logger"
)

func TestParseResult_PlainJSON(t *testing.T) {
	raw := `{"venue_name":"Blue Note","date":"2026-03-14","location":"NYC","fee":600,
		"contact_name":"Jane","contact_email":"jane@venue.com",
		"start_time":"20:00","end_time":"23:00","ai_confidence":0.92,"ai_notes":"solid inquiry"}`

	res, err := parseResult("m1", raw)
	require.NoError(t, err)

	assert.Equal(t, "Blue Note", res.VenueName)
	require.NotNil(t, res.Date)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), *res.Date)
	require.NotNil(t, res.Fee)
	assert.Equal(t, 600.0, *res.Fee)
	assert.Equal(t, 0.92, res.Confidence)
	assert.Equal(t, "solid inquiry", res.Notes)
}

func TestParseResult_StripsMarkdownFences(t *testing.T) {
	raw := "```json\n{\"venue_name\":\"Blue Note\"}\n```"

	res, err := parseResult("m1", raw)
	require.NoError(t, err)

	assert.Equal(t, "Blue Note", res.VenueName)
}

func TestParseResult_Defaults(t *testing.T) {
	res, err := parseResult("m1", `{}`)
	require.NoError(t, err)

	assert.Equal(t, 0.5, res.Confidence)
	assert.Equal(t, "Processed by extraction", res.Notes)
	assert.Nil(t, res.Date)
	assert.Nil(t, res.Fee)
}

func TestParseResult_ConfidenceOutOfRangeFallsBack(t *testing.T) {
	res, err := parseResult("m1", `{"ai_confidence":1.7}`)
	require.NoError(t, err)

	assert.Equal(t, 0.5, res.Confidence)
}

func TestParseResult_JunkOutputIsError(t *testing.T) {
	for _, raw := range []string{"", "   ", "Sorry, I cannot help with that.", "{truncated"} {
		_, err := parseResult("m1", raw)

		var extErr *Error
		require.ErrorAs(t, err, &extErr, "raw %q", raw)
		assert.Equal(t, "m1", extErr.MessageID)
	}
}

func TestParseResult_UnparseableDateIsError(t *testing.T) {
	_, err := parseResult("m1", `{"date":"next Friday"}`)

	var extErr *Error
	require.ErrorAs(t, err, &extErr)
}

func TestParseDate_Layouts(t *testing.T) {
	for _, value := range []string{
		"2026-03-14",
		"2026-03-14T20:00:00",
		"2026-03-14 20:00:00",
		"2026-03-14T20:00:00Z",
	} {
		parsed, err := parseDate(value)
		require.NoError(t, err, "value %q", value)
		assert.Equal(t, time.March, parsed.Month())
	}
}

func adapterConfig(endpoint string) config.ExtractionConfig {
	return config.ExtractionConfig{
		Endpoint:       endpoint,
		Model:          "test-model",
		TimeoutSeconds: 5,
		Retry: config.RetryConfig{
			MaxAttempts:     2,
			InitialInterval: time.Millisecond,
			MaxInterval:     time.Millisecond,
			Multiplier:      1,
		},
	}
}

func completionResponse(content string) map[string]interface{} {
	return map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	}
}

func TestHTTPAdapter_Extract(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Contains(t, req.Messages[0].Content, "Gig inquiry")

		json.NewEncoder(w).Encode(completionResponse("```json\n{\"venue_name\":\"Blue Note\"}\n```"))
	}))
	defer server.Close()

	cfg := adapterConfig(server.URL)
	cfg.APIKey = "secret"
	adapter := NewHTTPAdapter(cfg, logger.NopLogger())

	msg := ingest.Message{ID: "m1", Subject: "Gig inquiry", Sender: "jane@venue.com"}
	res, err := adapter.Extract(context.Background(), msg, nil)

	require.NoError(t, err)
	assert.Equal(t, "Blue Note", res.VenueName)
	assert.Equal(t, "Bearer secret", gotAuth)
}

func TestHTTPAdapter_RetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(completionResponse(`{"venue_name":"Blue Note"}`))
	}))
	defer server.Close()

	adapter := NewHTTPAdapter(adapterConfig(server.URL), logger.NopLogger())

	res, err := adapter.Extract(context.Background(), ingest.Message{ID: "m1"}, nil)

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, "Blue Note", res.VenueName)
}

func TestHTTPAdapter_ClientErrorIsFatal(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	adapter := NewHTTPAdapter(adapterConfig(server.URL), logger.NopLogger())

	_, err := adapter.Extract(context.Background(), ingest.Message{ID: "m1"}, nil)

	var extErr *Error
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, 1, attempts, "4xx responses must not be retried")
}

func TestHTTPAdapter_JunkCompletionIsExtractionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(completionResponse("I could not find any booking details."))
	}))
	defer server.Close()

	adapter := NewHTTPAdapter(adapterConfig(server.URL), logger.NopLogger())

	_, err := adapter.Extract(context.Background(), ingest.Message{ID: "m1"}, nil)

	var extErr *Error
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, "m1", extErr.MessageID)
}
