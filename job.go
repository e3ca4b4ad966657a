package tessera

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type JobKind int

const (
	KindFull JobKind = iota
	KindRadius
	KindBackground
)

func (k JobKind) String() string {
	switch k {
	case KindFull:
		return "full"
	case KindRadius:
		return "radius"
	case KindBackground:
		return "background"
	}
	return fmt.Sprintf("JobKind(%d)", int(k))
}

// Job is one render run over a world. Each job owns its render and I/O pools.
type Job struct {
	ID      uuid.UUID
	Kind    JobKind
	World   string
	Starter string
	Started time.Time

	ctx      context.Context
	cancel   context.CancelFunc
	gate     pauseGate
	progress *Progress
	render   *Pool
	io       *Pool

	done    chan struct{}
	errOnce sync.Once
	err     error
}

func newJob(kind JobKind, world, starter string, renderSize, ioSize int) *Job {
	ctx, cancel := context.WithCancel(context.Background())
	return &Job{
		ID:       uuid.New(),
		Kind:     kind,
		World:    world,
		Starter:  starter,
		Started:  time.Now(),
		ctx:      ctx,
		cancel:   cancel,
		progress: NewProgress(0),
		render:   NewPool(renderSize),
		io:       NewPool(ioSize),
		done:     make(chan struct{}),
	}
}

// Cancel stops dispatching regions. Running scan tasks stop at their next chunk row, saves
// already queued still complete.
func (j *Job) Cancel() {
	j.cancel()
}

func (j *Job) Cancelled() bool {
	return j.ctx.Err() != nil
}

func (j *Job) Pause() {
	j.gate.Pause()
}

func (j *Job) Resume() {
	j.gate.Resume()
}

func (j *Job) Paused() bool {
	return j.gate.Paused()
}

// Done is closed once the job and all of its tasks finished.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Err is the error that ended the job, valid after Done.
func (j *Job) Err() error {
	return j.err
}

func (j *Job) Status() Status {
	return j.progress.Status()
}

func (j *Job) fail(err error) {
	j.errOnce.Do(func() {
		j.err = err
	})
	j.cancel()
}
