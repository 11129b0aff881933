package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/agrocredit-engine/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
)

// WorkerPoolAccountProcessor implements the AccountProcessor interface,
// bounding the batch fan-out to a fixed pool of workers.
type WorkerPoolAccountProcessor struct {
	baseProcessor AccountProcessor
	pool          *ants.Pool
	logger        *slog.Logger
	// Use a mutex to protect access to the results map
	mu      sync.Mutex
	results map[string]chan error
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolAccountProcessor(
	baseProcessor AccountProcessor,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolAccountProcessor, error) {
	// Create a new worker pool with the specified size
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolAccountProcessor{
		baseProcessor: baseProcessor,
		pool:          pool,
		logger:        logger,
		results:       make(map[string]chan error),
	}, nil
}

// ProcessAccount submits an account to the worker pool and waits for the outcome.
func (s *WorkerPoolAccountProcessor) ProcessAccount(ctx context.Context, accountID uuid.UUID, period shared.Period, correlationID string) error {
	logger := s.logger
	if correlationID != "" {
		logger = s.logger.With("correlation_id", correlationID)
	}

	logger.Debug("Submitting account to worker pool",
		"account_id", accountID.String(),
		"period", period.Key(),
	)

	// Create a channel to receive the result of the account processing
	resultChan := make(chan error, 1)

	// One slot per account and period
	taskKey := accountID.String() + "@" + period.Key()
	s.mu.Lock()
	s.results[taskKey] = resultChan
	s.mu.Unlock()

	// Submit the task to the worker pool
	err := s.pool.Submit(func() {
		// Process the account using the base processor
		err := s.baseProcessor.ProcessAccount(ctx, accountID, period, correlationID)

		// Send the result to the channel
		resultChan <- err

		// Remove the result channel from the map
		s.mu.Lock()
		delete(s.results, taskKey)
		close(resultChan)
		s.mu.Unlock()
	})

	if err != nil {
		// If we couldn't submit the task to the pool, remove the result channel
		s.mu.Lock()
		delete(s.results, taskKey)
		close(resultChan)
		s.mu.Unlock()

		logger.Error("Failed to submit account to worker pool",
			"account_id", accountID.String(),
			"error", err,
		)
		return err
	}

	// Wait for the result from the worker
	return <-resultChan
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolAccountProcessor) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolAccountProcessor) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolAccountProcessor) Capacity() int {
	return s.pool.Cap()
}
