package processor

import (
	"fmt"
	"sync"
	"time"

	"github.com/rangelab/camranger/server/models"
)

// RangingQueue is a bounded worker pool decoupling frame ingestion from the
// ranging computation. Overflow is reported to the caller instead of
// blocking the ingest path.
type RangingQueue struct {
	items      chan *QueueItem
	workers    int
	workerFunc func(*QueueItem)
	wg         sync.WaitGroup
	shutdown   chan struct{}
	isRunning  bool
	mutex      sync.RWMutex
}

type QueueItem struct {
	Session    *Session
	Frame      models.FrameResult
	ResultChan chan *RangingResult
	StartTime  time.Time
}

type RangingResult struct {
	Estimate models.RangeEstimate
	OK       bool // false: frame produced no signal
	Error    error
}

func NewRangingQueue(queueSize, workers int, workerFunc func(*QueueItem)) *RangingQueue {
	q := &RangingQueue{
		items:      make(chan *QueueItem, queueSize),
		workers:    workers,
		workerFunc: workerFunc,
		shutdown:   make(chan struct{}),
		isRunning:  true,
	}

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}

	return q
}

func (q *RangingQueue) worker() {
	defer q.wg.Done()

	for {
		select {
		case item := <-q.items:
			if item != nil {
				func() {
					defer func() {
						if r := recover(); r != nil {
							select {
							case item.ResultChan <- &RangingResult{
								Error: fmt.Errorf("worker panic: %v", r),
							}:
							default:
							}
						}
					}()

					q.workerFunc(item)
				}()
			}
		case <-q.shutdown:
			return
		}
	}
}

// Enqueue offers an item to the pool; false means the queue is full or
// shutting down.
func (q *RangingQueue) Enqueue(item *QueueItem) bool {
	q.mutex.RLock()
	if !q.isRunning {
		q.mutex.RUnlock()
		return false
	}
	q.mutex.RUnlock()

	select {
	case q.items <- item:
		return true
	default:
		return false
	}
}

func (q *RangingQueue) Size() int     { return len(q.items) }
func (q *RangingQueue) Capacity() int { return cap(q.items) }

func (q *RangingQueue) Shutdown(timeout time.Duration) error {
	q.mutex.Lock()
	if !q.isRunning {
		q.mutex.Unlock()
		return nil
	}
	q.isRunning = false
	q.mutex.Unlock()

	close(q.shutdown)

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("queue shutdown timeout exceeded")
	}
}
