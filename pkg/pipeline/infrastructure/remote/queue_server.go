package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/karstlab/mofpipe/pkg/pipeline/core/executor"
	"github.com/karstlab/mofpipe/pkg/pipeline/core/graph"
	"github.com/karstlab/mofpipe/pkg/pipeline/support/util/exception"
	logger "github.com/karstlab/mofpipe/pkg/pipeline/support/util/logger"
)

// QueueServer is the worker-side counterpart of QueueSubmitter. It accepts
// submission envelopes over HTTP, rebuilds each structure's stage graph with
// the shared builder, and executes it on the local executor. Records land in
// the shared result store, which is how submitters observe progress.
type QueueServer struct {
	builder  *graph.StageGraphBuilder
	executor executor.Executor

	// limits concurrent graph executions
	slots chan struct{}
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewQueueServer creates a QueueServer executing at most maxConcurrent graphs
// at a time.
func NewQueueServer(builder *graph.StageGraphBuilder, exec executor.Executor, maxConcurrent int) (*QueueServer, error) {
	if builder == nil || exec == nil {
		return nil, exception.NewPipelineError(moduleName, "graph builder and executor are required", nil, false, false)
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &QueueServer{
		builder:  builder,
		executor: exec,
		slots:    make(chan struct{}, maxConcurrent),
	}, nil
}

// Handler returns the HTTP handler accepting submissions. POST only; a
// decodable envelope is acknowledged with 202 Accepted before execution
// starts.
func (s *QueueServer) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var envelope SubmissionEnvelope
		if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
			http.Error(w, "malformed submission envelope", http.StatusBadRequest)
			return
		}
		if envelope.Structure.Name == "" {
			envelope.Structure.Name = envelope.StructureName
		}
		if envelope.Structure.Name == "" || envelope.Structure.NumSites() == 0 {
			http.Error(w, "submission has no structure", http.StatusBadRequest)
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			http.Error(w, "worker is shutting down", http.StatusServiceUnavailable)
			return
		}
		s.wg.Add(1)
		s.mu.Unlock()

		go s.run(envelope)

		w.WriteHeader(http.StatusAccepted)
	})
}

// run executes one accepted envelope, bounded by the concurrency slots.
func (s *QueueServer) run(envelope SubmissionEnvelope) {
	defer s.wg.Done()
	s.slots <- struct{}{}
	defer func() { <-s.slots }()

	g, err := s.builder.Build(envelope.Structure, envelope.Metadata)
	if err != nil {
		logger.Errorf("Worker: failed to build graph for '%s': %v", envelope.Structure.Name, err)
		return
	}

	result, err := s.executor.Execute(context.Background(), g)
	if err != nil {
		logger.Errorf("Worker: graph for '%s' aborted: %v", envelope.Structure.Name, err)
		return
	}
	logger.Infof("Worker: graph for '%s' finished with status %s.", envelope.Structure.Name, result.Status)
}

// Shutdown stops accepting new submissions and waits for in-flight graphs,
// bounded by ctx.
func (s *QueueServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
