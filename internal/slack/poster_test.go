package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testReview() ElderReview {
	return ElderReview{
		ProjectID:    "p1",
		ProjectName:  "Yarns on Country",
		AnalysisType: "intelligent_ai",
		Model:        "gpt-4o-mini",
		HighestLevel: "sacred",
		Transcripts: []ReviewTranscript{
			{TranscriptID: "t1", StorytellerName: "Aunty June", Summary: "Ceremony on country."},
			{TranscriptID: "t2", StorytellerName: "Uncle Ray"},
		},
	}
}

func TestFormatReviewMessage(t *testing.T) {
	msg := formatReviewMessage(testReview())

	checks := []string{
		"Elder review needed:* Yarns on Country",
		"intelligent_ai, gpt-4o-mini",
		"sacred",
		"Stories flagged: 2",
		"1. Aunty June (t1)",
		"Ceremony on country.",
		"2. Uncle Ray (t2)",
	}
	for _, check := range checks {
		if !strings.Contains(msg, check) {
			t.Errorf("expected message to contain %q, got:\n%s", check, msg)
		}
	}
}

func TestFormatReviewMessage_CapsList(t *testing.T) {
	r := testReview()
	r.Model = ""
	r.Transcripts = nil
	for i := range 13 {
		r.Transcripts = append(r.Transcripts, ReviewTranscript{TranscriptID: fmt.Sprintf("t%d", i), StorytellerName: "Storyteller"})
	}

	msg := formatReviewMessage(r)

	if !strings.Contains(msg, "and 3 more") {
		t.Errorf("expected overflow note, got:\n%s", msg)
	}
	if strings.Contains(msg, "(t10)") {
		t.Error("expected list to stop at ten entries")
	}
	if strings.Contains(msg, "intelligent_ai,") {
		t.Error("expected no model suffix without a model")
	}
}

func TestPostElderReview_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer xoxb-test" {
			t.Errorf("expected Bearer xoxb-test, got %q", r.Header.Get("Authorization"))
		}

		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		json.Unmarshal(body, &payload)

		if payload["channel"] != "C123" {
			t.Errorf("expected channel C123, got %v", payload["channel"])
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"ts": "1234567890.123456",
		})
	}))
	defer server.Close()

	p := NewPoster("xoxb-test", "C123", discardLogger())
	p.apiURL = server.URL

	ts, err := p.PostElderReview(context.Background(), testReview())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts != "1234567890.123456" {
		t.Errorf("expected ts 1234567890.123456, got %q", ts)
	}
}

func TestPostElderReview_SlackError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"ok":    false,
			"error": "channel_not_found",
		})
	}))
	defer server.Close()

	p := NewPoster("xoxb-test", "C123", discardLogger())
	p.apiURL = server.URL

	_, err := p.PostElderReview(context.Background(), testReview())
	if err == nil {
		t.Fatal("expected error for slack error response")
	}
}
