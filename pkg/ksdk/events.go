package ksdk

import (
	"sync"
)

type EventType int

const (
	EventJobUpdated EventType = iota + 1
	EventPollError
	EventArtifactResolved
	EventArtifactReleased
	EventReset
)

func (t EventType) String() string {
	switch t {
	case EventJobUpdated:
		return "job_updated"
	case EventPollError:
		return "poll_error"
	case EventArtifactResolved:
		return "artifact_resolved"
	case EventArtifactReleased:
		return "artifact_released"
	case EventReset:
		return "reset"
	}
	return "unknown"
}

// Event is delivered to subscribers in emission order. Job is a copy.
type Event struct {
	Type     EventType
	Job      *RenderJob
	Artifact *Artifact
	Err      error

	generation uint64
}

// dispatcher delivers events on a single goroutine from an unbounded queue,
// so emitters never block on listeners and listeners may re-enter the client.
type dispatcher struct {
	current func() uint64

	mu        sync.Mutex
	cond      *sync.Cond
	queue     []Event
	listeners map[int]func(Event)
	nextID    int
	closed    bool
	done      chan struct{}
}

func newDispatcher(current func() uint64) *dispatcher {
	d := &dispatcher{
		current:   current,
		listeners: make(map[int]func(Event)),
		done:      make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)
	go d.run()
	return d
}

func (d *dispatcher) subscribe(fn func(Event)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID
	d.nextID++
	d.listeners[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.listeners, id)
			d.mu.Unlock()
		})
	}
}

func (d *dispatcher) push(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.queue = append(d.queue, ev)
	d.cond.Signal()
}

// stop drops queued events and ends the goroutine. A listener that is already
// running finishes its call.
func (d *dispatcher) stop() {
	d.mu.Lock()
	d.closed = true
	d.queue = nil
	d.cond.Broadcast()
	d.mu.Unlock()
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if d.closed {
			d.mu.Unlock()
			return
		}
		ev := d.queue[0]
		d.queue[0] = Event{}
		d.queue = d.queue[1:]
		fns := make([]func(Event), 0, len(d.listeners))
		for id := 0; id < d.nextID; id++ {
			if fn, ok := d.listeners[id]; ok {
				fns = append(fns, fn)
			}
		}
		d.mu.Unlock()

		for _, fn := range fns {
			// A listener may have superseded the job mid-delivery.
			if ev.generation != d.current() {
				break
			}
			fn(ev)
		}
	}
}
