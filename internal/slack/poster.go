// Package slack tells cultural reviewers when an analysis contains material
// that needs Elder review before it is shared.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

// maxListed caps how many transcripts one message names.
const maxListed = 10

// ElderReview describes the transcripts in one analysis flagged for review.
type ElderReview struct {
	ProjectID    string
	ProjectName  string
	AnalysisType string
	Model        string
	HighestLevel string
	Transcripts  []ReviewTranscript
}

type ReviewTranscript struct {
	TranscriptID    string
	StorytellerName string
	Summary         string
}

type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

// PostElderReview posts the review request and returns the message timestamp.
func (p *Poster) PostElderReview(ctx context.Context, review ElderReview) (string, error) {
	text := formatReviewMessage(review)

	body, err := json.Marshal(map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": text,
				},
			},
			{
				"type": "context",
				"elements": []map[string]any{
					{
						"type": "mrkdwn",
						"text": "Please hold these stories back from any sharing until an Elder has reviewed them.",
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return "", fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return "", fmt.Errorf("slack error: %s", slackResp.Error)
	}

	p.logger.Info("posted elder review request to slack",
		"ts", slackResp.TS,
		"project_id", review.ProjectID,
		"transcripts", len(review.Transcripts),
	)
	return slackResp.TS, nil
}

func formatReviewMessage(r ElderReview) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "*Elder review needed:* %s\n", r.ProjectName)
	mode := r.AnalysisType
	if r.Model != "" {
		mode += ", " + r.Model
	}
	fmt.Fprintf(&sb, "*Analysis:* %s | *Highest sensitivity:* %s\n\n", mode, r.HighestLevel)
	fmt.Fprintf(&sb, "*Stories flagged: %d*\n", len(r.Transcripts))

	for i, t := range r.Transcripts {
		if i == maxListed {
			fmt.Fprintf(&sb, "_and %d more_\n", len(r.Transcripts)-maxListed)
			break
		}
		fmt.Fprintf(&sb, "%d. %s (%s)\n", i+1, t.StorytellerName, t.TranscriptID)
		if t.Summary != "" {
			fmt.Fprintf(&sb, "   %s\n", t.Summary)
		}
	}
	return sb.String()
}
