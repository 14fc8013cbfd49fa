package systems

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/preloader/engine/core"
)

/** @brief A unit of background work, typically one asset decode. */
type JobTask struct {
	/** @brief Used in logs only. */
	Name string
	/** @brief The work itself. Required. */
	Run func() error
	/** @brief Invoked on the worker when Run succeeds. Optional. */
	OnComplete func()
	/** @brief Invoked on the worker when Run fails. Optional. */
	OnFailure func(err error)
}

type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	wg         sync.WaitGroup

	// senders hold it shared, Shutdown exclusively
	mu     sync.RWMutex
	closed bool
}

var ErrNoWorkers = fmt.Errorf("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = fmt.Errorf("attempting to create worker pool with a negative channel size")
var ErrJobQueueFull = fmt.Errorf("job queue is full")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan JobTask, channelSize),
	}

	js.start()

	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				js.run(job)
			}
		}()
	}
}

func (js *JobSystem) run(job JobTask) {
	err := job.Run()
	if err != nil {
		core.LogDebug("job '%s' failed: %s", job.Name, err.Error())
		if job.OnFailure != nil {
			job.OnFailure(err)
		}
		return
	}
	if job.OnComplete != nil {
		job.OnComplete()
	}
}

/**
 * @brief Shuts the job system down. Queued jobs still run before it returns.
 */
func (js *JobSystem) Shutdown() error {
	js.mu.Lock()
	if js.closed {
		js.mu.Unlock()
		return nil
	}
	js.closed = true
	close(js.jobQueue)
	js.mu.Unlock()

	js.wg.Wait()
	return nil
}

/**
 * @brief Submits the provided job to be queued for execution. Blocks while
 * the queue is full.
 */
func (js *JobSystem) Submit(jt JobTask) error {
	js.mu.RLock()
	defer js.mu.RUnlock()
	if js.closed {
		return core.ErrJobSystemClosed
	}
	js.jobQueue <- jt
	return nil
}

/**
 * @brief Queues the job without waiting. Returns ErrJobQueueFull when every
 * worker is busy and the queue has no room left.
 */
func (js *JobSystem) TrySubmit(jt JobTask) error {
	js.mu.RLock()
	defer js.mu.RUnlock()
	if js.closed {
		return core.ErrJobSystemClosed
	}
	select {
	case js.jobQueue <- jt:
		return nil
	default:
		return ErrJobQueueFull
	}
}

/**
 * @brief Queues the job without blocking the caller. When the queue is full
 * the job is handed to a goroutine that waits for room; onReject is called
 * from there if the system shuts down first.
 */
func (js *JobSystem) Enqueue(jt JobTask, onReject func(error)) {
	err := js.TrySubmit(jt)
	if errors.Is(err, ErrJobQueueFull) {
		go func() {
			if err := js.Submit(jt); err != nil && onReject != nil {
				onReject(err)
			}
		}()
		return
	}
	if err != nil && onReject != nil {
		onReject(err)
	}
}
