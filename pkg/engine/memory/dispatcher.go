package memory

import "sync"

// dispatcher is the engine goroutine. Jobs run one at a time in submission
// order; the queue is unbounded so a job may submit more jobs without
// blocking.
type dispatcher struct {
	mu     sync.Mutex
	cond   *sync.Cond
	jobs   []func()
	closed bool
	done   chan struct{}
}

func newDispatcher() *dispatcher {
	d := &dispatcher{done: make(chan struct{})}
	d.cond = sync.NewCond(&d.mu)
	go d.loop()
	return d
}

// submit queues job. It reports false once the dispatcher is closed.
func (d *dispatcher) submit(job func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	d.jobs = append(d.jobs, job)
	d.cond.Signal()
	return true
}

func (d *dispatcher) loop() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.jobs) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.jobs) == 0 {
			d.mu.Unlock()
			return
		}
		job := d.jobs[0]
		d.jobs[0] = nil
		d.jobs = d.jobs[1:]
		d.mu.Unlock()
		job()
	}
}

// close stops accepting jobs, runs what is queued and waits for the loop to
// exit. It must not be called from a job.
func (d *dispatcher) close() {
	d.mu.Lock()
	d.closed = true
	d.cond.Broadcast()
	d.mu.Unlock()
	<-d.done
}
