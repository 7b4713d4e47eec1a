// Package events carries analysis requests in and job lifecycle
// notifications out over NATS.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/yarning/internal/batch"
)

const (
	SubjectAnalysisRequested = "yarning.analysis.requested"
	SubjectJobUpdated        = "yarning.analysis.job.updated"
	SubjectAnalysisCompleted = "yarning.analysis.completed"

	workerQueue = "yarning-workers"
)

// AnalysisRequested asks a worker to analyse a project.
type AnalysisRequested struct {
	ProjectID   string `json:"project_id"`
	Intelligent bool   `json:"intelligent"`
	Model       string `json:"model,omitempty"`
	Regenerate  bool   `json:"regenerate"`
}

// AnalysisCompleted is published once per finished analysis, cached or not.
type AnalysisCompleted struct {
	ProjectID    string `json:"project_id"`
	AnalysisType string `json:"analysis_type"`
	Model        string `json:"model,omitempty"`
	ContentHash  string `json:"content_hash"`
	Cached       bool   `json:"cached"`
	Degraded     bool   `json:"degraded"`
}

// ParseAnalysisRequested decodes and validates a request payload.
func ParseAnalysisRequested(data []byte) (AnalysisRequested, error) {
	var req AnalysisRequested
	if err := json.Unmarshal(data, &req); err != nil {
		return AnalysisRequested{}, fmt.Errorf("decode analysis request: %w", err)
	}
	req.ProjectID = strings.TrimSpace(req.ProjectID)
	if req.ProjectID == "" {
		return AnalysisRequested{}, errors.New("analysis request missing project_id")
	}
	return req, nil
}

// Publisher is satisfied by *Client.
type Publisher interface {
	Publish(subject string, data any) error
}

// Notifier publishes lifecycle events. A nil publisher turns it into a no-op
// so the service runs without NATS.
type Notifier struct {
	pub    Publisher
	logger *slog.Logger
}

func NewNotifier(pub Publisher, logger *slog.Logger) *Notifier {
	return &Notifier{pub: pub, logger: logger}
}

func (n *Notifier) JobUpdated(job batch.Job) {
	n.publish(SubjectJobUpdated, job)
}

func (n *Notifier) AnalysisCompleted(ev AnalysisCompleted) {
	n.publish(SubjectAnalysisCompleted, ev)
}

func (n *Notifier) publish(subject string, data any) {
	if n == nil || n.pub == nil {
		return
	}
	if err := n.pub.Publish(subject, data); err != nil {
		n.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}

// Listen routes analysis requests to handle. Malformed payloads are logged
// and dropped.
func Listen(c *Client, logger *slog.Logger, handle func(AnalysisRequested)) error {
	return c.Subscribe(SubjectAnalysisRequested, workerQueue, func(subject string, data []byte) {
		req, err := ParseAnalysisRequested(data)
		if err != nil {
			logger.Warn("ignoring analysis request", "subject", subject, "error", err)
			return
		}
		logger.Info("analysis requested",
			"project_id", req.ProjectID,
			"intelligent", req.Intelligent,
			"model", req.Model,
			"regenerate", req.Regenerate,
		)
		handle(req)
	})
}
