package utils

import (
	"errors"
	"strings"
	"sync"
	"time"
)

// WorkerPool runs jobs on a bounded number of goroutines, spacing job starts
// by a minimum interval. Job errors are collected and joined by Wait.
type WorkerPool struct {
	semaphore chan struct{}
	interval  time.Duration
	wg        sync.WaitGroup
	mu        sync.Mutex
	lastStart time.Time
	errMu     sync.Mutex
	errs      []error
}

// NewWorkerPool creates a WorkerPool with the given concurrency and rate limit.
func NewWorkerPool(maxWorkers, rateLimitMs int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerPool{
		semaphore: make(chan struct{}, maxWorkers),
		interval:  time.Duration(rateLimitMs) * time.Millisecond,
	}
}

// Submit enqueues a job. It blocks while every worker slot is busy.
func (wp *WorkerPool) Submit(job func() error) {
	wp.wg.Add(1)
	wp.semaphore <- struct{}{}

	go func() {
		defer wp.wg.Done()
		defer func() { <-wp.semaphore }()

		wp.waitTurn()
		if err := job(); err != nil {
			wp.errMu.Lock()
			wp.errs = append(wp.errs, err)
			wp.errMu.Unlock()
		}
	}()
}

// Wait blocks until all submitted jobs have completed and returns their
// joined errors, if any.
func (wp *WorkerPool) Wait() error {
	wp.wg.Wait()

	wp.errMu.Lock()
	defer wp.errMu.Unlock()
	err := errors.Join(wp.errs...)
	wp.errs = nil
	return err
}

func (wp *WorkerPool) waitTurn() {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if !wp.lastStart.IsZero() {
		if elapsed := time.Since(wp.lastStart); elapsed < wp.interval {
			time.Sleep(wp.interval - elapsed)
		}
	}
	wp.lastStart = time.Now()
}

// SeenSet is a thread-safe set of normalised keys (URLs, building numbers).
type SeenSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
	fold bool
}

// NewSeenSet creates an empty, case-sensitive SeenSet.
func NewSeenSet() *SeenSet {
	return &SeenSet{seen: make(map[string]struct{})}
}

// NewFoldedSeenSet creates a SeenSet that compares keys case-insensitively.
func NewFoldedSeenSet() *SeenSet {
	return &SeenSet{seen: make(map[string]struct{}), fold: true}
}

// Add returns true if key was newly added. Keys are trimmed first; blank
// keys are never added.
func (s *SeenSet) Add(key string) bool {
	k := s.normalise(key)
	if k == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[k]; exists {
		return false
	}
	s.seen[k] = struct{}{}
	return true
}

// Contains returns true if key has already been added.
func (s *SeenSet) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[s.normalise(key)]
	return exists
}

// Size returns the number of unique keys tracked.
func (s *SeenSet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}

func (s *SeenSet) normalise(key string) string {
	key = strings.TrimSpace(key)
	if s.fold {
		key = strings.ToLower(key)
	}
	return key
}
