package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/sitelens/url-analyzer/internal/analyzer"
	"github.com/sitelens/url-analyzer/internal/db"
)

// ErrRunActive is returned when a start is issued while a run for the same
// submission is still executing.
var ErrRunActive = errors.New("a run is already active for this submission")

// ErrSuperseded is returned by Store.SaveResult when the submission left the
// running state before the result could be committed, e.g. because a stop
// landed mid-persist. The run's output is discarded.
var ErrSuperseded = errors.New("submission is no longer running")

// Store is the persistence boundary of a detached run. Implementations must
// scope their data access to the supplied context so each run holds its own
// resources, independent of the request that triggered it.
type Store interface {
	GetSubmission(ctx context.Context, id uint) (*db.Submission, error)
	// MarkRunning atomically moves the submission to running unless it is
	// already running. It reports whether the transition happened.
	MarkRunning(ctx context.Context, id uint) (bool, error)
	SetStatus(ctx context.Context, id uint, status db.SubmissionStatus) error
	// SaveResult persists the analysis result, its broken links, and the done
	// status in a single transaction. The done write is a compare-and-set
	// from running; when the submission has already left that state the
	// transaction rolls back and SaveResult returns ErrSuperseded.
	SaveResult(ctx context.Context, id uint, result *analyzer.Result) error
}

// Service drives the per-submission job lifecycle. Runs are executed by a
// fixed pool of workers fed from a buffered queue.
type Service struct {
	store     Store
	analyzer  *analyzer.Analyzer
	queue     chan uint
	workers   int
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	active    map[uint]context.CancelFunc
}

// Config holds runner configuration
type Config struct {
	Workers   int
	QueueSize int
}

// DefaultConfig returns default runner configuration
func DefaultConfig() *Config {
	return &Config{
		Workers:   5,
		QueueSize: 100,
	}
}

// NewService creates a new runner service
func NewService(store Store, a *analyzer.Analyzer, config *Config) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	if a == nil {
		a = analyzer.New(nil)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		store:    store,
		analyzer: a,
		queue:    make(chan uint, config.QueueSize),
		workers:  config.Workers,
		ctx:      ctx,
		cancel:   cancel,
		active:   make(map[uint]context.CancelFunc),
	}
}

// Start starts the worker pool
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("runner service is already running")
	}

	s.isRunning = true

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	log.Printf("Runner service started with %d workers", s.workers)
	return nil
}

// Stop stops the runner service gracefully, cancelling in-flight runs.
// The wait for workers happens outside the mutex: runs acquire it for
// active-map bookkeeping, so holding it here would deadlock the shutdown.
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.cancel()
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()

	log.Println("Runner service stopped")
	return nil
}

// StartRun transitions the submission to running and schedules one detached
// run. At most one run may be active per submission: a second start while a
// run executes returns ErrRunActive and leaves the submission untouched.
func (s *Service) StartRun(ctx context.Context, id uint) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("runner service is not running")
	}
	if _, busy := s.active[id]; busy {
		s.mu.Unlock()
		return ErrRunActive
	}
	s.mu.Unlock()

	ok, err := s.store.MarkRunning(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to mark submission %d running: %w", id, err)
	}
	if !ok {
		return ErrRunActive
	}

	// Re-check under the lock: a concurrent Stop may have closed the queue
	// while MarkRunning was on its database round-trip, and a send would
	// then panic. The enqueue must happen under the same lock Stop takes.
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		s.revertToQueued(ctx, id)
		return fmt.Errorf("runner service is not running")
	}
	select {
	case s.queue <- id:
		s.mu.Unlock()
		return nil
	default:
		s.mu.Unlock()
		s.revertToQueued(ctx, id)
		return fmt.Errorf("queue is full")
	}
}

// revertToQueued undoes the running status flip so a later start can retry
func (s *Service) revertToQueued(ctx context.Context, id uint) {
	if err := s.store.SetStatus(ctx, id, db.StatusQueued); err != nil {
		log.Printf("Failed to revert submission %d to queued: %v", id, err)
	}
}

// StopRun sets the submission to stopped and cancels its active run, if any.
// A cancelled run aborts its in-flight fetch and probes and persists nothing.
func (s *Service) StopRun(ctx context.Context, id uint) error {
	if err := s.store.SetStatus(ctx, id, db.StatusStopped); err != nil {
		return err
	}

	s.mu.Lock()
	cancel, ok := s.active[id]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return nil
}

// worker executes runs from the queue
func (s *Service) worker(id int) {
	defer s.wg.Done()

	log.Printf("Worker %d started", id)

	for {
		select {
		case submissionID, ok := <-s.queue:
			if !ok {
				log.Printf("Worker %d shutting down", id)
				return
			}
			s.run(submissionID)
		case <-s.ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// run executes one detached analysis run for a submission
func (s *Service) run(id uint) {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	s.mu.Lock()
	s.active[id] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.active, id)
		s.mu.Unlock()
	}()

	sub, err := s.store.GetSubmission(runCtx, id)
	if err != nil {
		log.Printf("Failed to load submission %d: %v", id, err)
		return
	}

	// A stop or reanalyze command may have landed between enqueue and pickup.
	if sub.Status != db.StatusRunning {
		log.Printf("Submission %d is no longer running (status %s), skipping", id, sub.Status)
		return
	}

	result := s.analyzer.Analyze(runCtx, sub.URL)

	// A stop command cancelled this run; the stopped status stands and the
	// partial result is discarded.
	if runCtx.Err() != nil {
		log.Printf("Run for submission %d cancelled", id)
		return
	}

	if err := s.store.SaveResult(runCtx, id, result); err != nil {
		if errors.Is(err, ErrSuperseded) {
			log.Printf("Run for submission %d superseded, discarding result", id)
			return
		}
		if runCtx.Err() != nil {
			log.Printf("Run for submission %d cancelled during persistence", id)
			return
		}
		log.Printf("Failed to persist result for submission %d: %v", id, err)
		if statusErr := s.store.SetStatus(context.Background(), id, db.StatusError); statusErr != nil {
			log.Printf("Failed to set error status for submission %d: %v", id, statusErr)
		}
		return
	}

	log.Printf("Successfully analyzed submission %d (%s)", id, sub.URL)
}
