// Package remote submits stage graphs to a distributed execution backend
// over HTTP. Submission is fire-and-forget: workers execute the chain and
// append their records to the shared result store, and progress is observed
// by polling that store, never by talking back to the queue.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/store"
	"github.com/karstlab/mofpipe/pkg/pipeline/core/executor"
	"github.com/karstlab/mofpipe/pkg/pipeline/support/util/exception"
	logger "github.com/karstlab/mofpipe/pkg/pipeline/support/util/logger"
)

const moduleName = "remote"

// SubmissionEnvelope is the wire form of one graph submission. Stage code is
// not serialized; workers rebuild the chain from the structure and metadata
// with the same graph builder.
type SubmissionEnvelope struct {
	StructureName string            `json:"structure_name"`
	Structure     model.Structure   `json:"structure"`
	Metadata      map[string]string `json:"metadata"`
	SubmittedAt   time.Time         `json:"submitted_at"`
}

// QueueSubmitter posts graph submissions to the workflow queue's HTTP API.
type QueueSubmitter struct {
	endpoint string
	client   *http.Client
}

// NewQueueSubmitter creates a QueueSubmitter for the given queue endpoint.
func NewQueueSubmitter(endpoint string, timeout time.Duration) (*QueueSubmitter, error) {
	if endpoint == "" {
		return nil, exception.NewPipelineError(moduleName, "queue endpoint is required", nil, false, false)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &QueueSubmitter{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// Submit enqueues one structure's graph. A non-2xx response is a retryable
// error; nothing is awaited beyond the enqueue acknowledgement.
func (s *QueueSubmitter) Submit(ctx context.Context, g *model.StageGraph) error {
	envelope := SubmissionEnvelope{
		StructureName: g.StructureName,
		Structure:     g.Structure,
		Metadata:      g.Metadata,
		SubmittedAt:   time.Now(),
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return exception.NewPipelineErrorf(moduleName,
			"encoding submission for '%s'", g.StructureName, false, false, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return exception.NewPipelineErrorf(moduleName,
			"building submission request for '%s'", g.StructureName, false, false, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return exception.NewPipelineErrorf(moduleName,
			"submitting '%s' to queue at %s", g.StructureName, s.endpoint, false, true, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return exception.NewPipelineErrorf(moduleName,
			"queue rejected submission of '%s': %s", g.StructureName, resp.Status, false, true,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	logger.Infof("Submitted graph for structure '%s' to queue at %s.", g.StructureName, s.endpoint)
	return nil
}

// AwaitQuiescence polls the shared result store until the number of records
// matching the filter stops growing for idlePolls consecutive polls. It is
// the coarse settle signal used before aggregating a fire-and-forget batch;
// callers bound it with the context.
func AwaitQuiescence(ctx context.Context, resultStore store.ResultStore, filter store.Filter, interval time.Duration, idlePolls int) (int, error) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if idlePolls < 1 {
		idlePolls = 3
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastCount := -1
	idle := 0
	for {
		select {
		case <-ctx.Done():
			return lastCount, exception.NewPipelineError(moduleName,
				"wait for batch quiescence interrupted", ctx.Err(), false, true)
		case <-ticker.C:
			records, err := resultStore.Query(ctx, filter)
			if err != nil {
				logger.Warnf("Polling result store failed, will retry: %v", err)
				continue
			}
			count := len(records)
			logger.Debugf("Batch quiescence poll: %d records (previously %d).", count, lastCount)
			if count == lastCount {
				idle++
				if idle >= idlePolls {
					return count, nil
				}
			} else {
				idle = 0
				lastCount = count
			}
		}
	}
}

var _ executor.GraphSubmitter = (*QueueSubmitter)(nil)
