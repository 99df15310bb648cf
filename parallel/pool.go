package parallel

import (
	"runtime"
	"sync"
)

// Pool runs independent jobs, such as whole files in batch mode, on a fixed
// set of goroutines. A single-worker pool runs each job inline in Submit.
type Pool struct {
	wg      sync.WaitGroup
	jobs    chan func()
	workers int
	closeFn func()
}

// Start spawns numWorkers goroutines, or GOMAXPROCS when numWorkers < 1.
func Start(numWorkers int) *Pool {
	if numWorkers < 1 {
		numWorkers = runtime.GOMAXPROCS(0)
	}

	pool := &Pool{
		workers: numWorkers,
		closeFn: func() {},
	}
	if numWorkers == 1 {
		return pool
	}

	pool.jobs = make(chan func(), numWorkers)
	for range numWorkers {
		pool.wg.Go(func() {
			for job := range pool.jobs {
				job()
			}
		})
	}
	pool.closeFn = sync.OnceFunc(func() { close(pool.jobs) })

	return pool
}

func (p *Pool) Workers() int { return p.workers }

// Submit queues job, blocking while every worker is busy and the queue is
// full. It must not be called after Wait.
func (p *Pool) Submit(job func()) {
	if p.jobs == nil {
		job()
		return
	}
	p.jobs <- job
}

// Wait stops accepting jobs and blocks until the submitted ones are done.
// It is safe to call more than once.
func (p *Pool) Wait() {
	p.closeFn()
	p.wg.Wait()
}
