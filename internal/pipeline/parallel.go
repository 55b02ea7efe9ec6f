package pipeline

import (
	"context"
	"sync"

	"github.com/sharvaanit/Taxi-data-datapipeline/internal/logging"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/source"
)

// indexedResult carries a result back to the collector.
type indexedResult struct {
	Task   FileTask
	Result Result
}

// runParallel implements the dispatcher → workers → collector flow. Each
// worker owns its opener and all per-file state; only results cross
// goroutines.
func (r *Runner) runParallel(ctx context.Context, files []source.FileRef) []Result {
	workers := r.opts.Workers
	if workers > len(files) {
		workers = len(files)
	}

	workQueue := make(chan FileTask, workers)
	resultChan := make(chan indexedResult, workers)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go r.workerLoop(ctx, i, workQueue, resultChan, &wg)
	}

	dispatched := make(chan int, 1)
	go func() {
		dispatched <- r.dispatcherLoop(ctx, files, workQueue)
	}()

	// Close results when workers finish
	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]Result, len(files))
	received := make([]bool, len(files))
	for ir := range resultChan {
		results[ir.Task.Index] = ir.Result
		received[ir.Task.Index] = true
	}

	sent := <-dispatched
	for i, f := range files {
		if received[i] {
			continue
		}
		if i < sent {
			r.log.Error("no result for dispatched file", "file", f.URI)
			results[i] = Result{File: f, Err: ErrLostResult}
			r.opts.Metrics.IncFilesFailed()
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = ErrLostResult
		}
		results[i] = Result{File: f, Err: err}
	}
	return results
}

// dispatcherLoop sends file tasks to workers in schedule order and returns
// how many were sent.
func (r *Runner) dispatcherLoop(ctx context.Context, files []source.FileRef, workQueue chan<- FileTask) int {
	defer close(workQueue)

	for i, f := range files {
		select {
		case <-ctx.Done():
			return i
		case workQueue <- FileTask{Index: i, File: f}:
		}
	}
	return len(files)
}

// workerLoop processes file tasks until the queue closes.
func (r *Runner) workerLoop(ctx context.Context, workerID int, workQueue <-chan FileTask, results chan<- indexedResult, wg *sync.WaitGroup) {
	defer wg.Done()

	log := logging.WorkerLogger(r.log, workerID)
	opener := source.NewOpener(r.opts.Bucket)
	defer opener.Close()

	for task := range workQueue {
		r.opts.Metrics.WorkerStarted()
		res := r.safeProcess(ctx, opener, task.File, log)
		r.opts.Metrics.WorkerDone()
		results <- indexedResult{Task: task, Result: res}
	}
}
