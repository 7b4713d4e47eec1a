//go:build integration

package events

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"
)

func skipWithoutNATS(t *testing.T) string {
	t.Helper()
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set, skipping integration test")
	}
	return url
}

func TestIntegration_RequestRoundTrip(t *testing.T) {
	natsURL := skipWithoutNATS(t)
	logger := slog.Default()

	client, err := NewClient(context.Background(), natsURL, os.Getenv("NATS_TOKEN"), logger)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer client.Close()

	received := make(chan AnalysisRequested, 1)
	if err := Listen(client, logger, func(req AnalysisRequested) { received <- req }); err != nil {
		t.Fatalf("listen failed: %v", err)
	}

	// Give subscription time to propagate
	time.Sleep(100 * time.Millisecond)

	if err := client.Publish(SubjectAnalysisRequested, AnalysisRequested{ProjectID: "p-int", Intelligent: true}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case req := <-received:
		if req.ProjectID != "p-int" || !req.Intelligent {
			t.Errorf("unexpected request: %+v", req)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for request")
	}
}
