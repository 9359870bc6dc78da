package services

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/pkg/logger"
)

// ScanQueue bounds how many scan jobs execute simultaneously with a simple
// semaphore. Independent jobs beyond the limit wait for a slot.
type ScanQueue struct {
	semaphore chan struct{}
	running   int
	queued    int
	mu        sync.Mutex
	logger    *logger.Logger
}

func NewScanQueue(maxConcurrent int) *ScanQueue {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &ScanQueue{
		semaphore: make(chan struct{}, maxConcurrent),
		logger:    logger.NewLogger(logrus.InfoLevel),
	}
}

// ExecuteWithQueue blocks until a slot is available, then runs fn
func (q *ScanQueue) ExecuteWithQueue(fn func() error) error {
	q.mu.Lock()
	q.queued++
	queued := q.queued
	running := q.running
	q.mu.Unlock()

	q.logger.WithFields(logger.Fields{
		"queued":  queued,
		"running": running,
		"slots":   cap(q.semaphore),
	}).Debug("Scan job queued")

	q.semaphore <- struct{}{}

	q.mu.Lock()
	q.queued--
	q.running++
	q.mu.Unlock()

	defer func() {
		<-q.semaphore
		q.mu.Lock()
		q.running--
		q.mu.Unlock()
	}()

	return fn()
}

// Status returns the current running/queued counts and the slot limit
func (q *ScanQueue) Status() (running, queued, maxConcurrent int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running, q.queued, cap(q.semaphore)
}
