// Package transfer fetches many remote objects and packages the ones that
// arrived into a single zip archive.
//
// A failed item never aborts the batch. The batch fails as a whole only when
// it is empty, when no item succeeded, or when the archive sink fails.
package transfer

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"sync"

	"github.com/dl-alexandre/ghimg/internal/errors"
	"github.com/dl-alexandre/ghimg/internal/logging"
	"github.com/dl-alexandre/ghimg/internal/types"
	"github.com/dl-alexandre/ghimg/internal/utils"
	"golang.org/x/sync/errgroup"
)

// Fetcher retrieves raw object bytes. store.TreeClient satisfies it.
type Fetcher interface {
	FetchBytes(ctx context.Context, ref string) ([]byte, error)
}

// Observer is notified as tasks reach a terminal state
type Observer interface {
	ObserveTask(state types.TaskState, size int64)
}

// Options configures an Engine
type Options struct {
	// Concurrency bounds in-flight fetches; 1 processes tasks strictly in order.
	Concurrency      int
	CompressionLevel int
	Logger           logging.Logger
	Observer         Observer
}

// DefaultOptions returns sequential processing at compression level 6
func DefaultOptions() Options {
	return Options{
		Concurrency:      utils.DefaultTransferWorkers,
		CompressionLevel: utils.DefaultCompressionLevel,
	}
}

// Engine runs transfer batches. An Engine holds no per-batch state and can
// run several batches at once.
type Engine struct {
	fetcher     Fetcher
	concurrency int
	level       int
	logger      logging.Logger
	observer    Observer
}

// New creates a transfer engine
func New(fetcher Fetcher, opts Options) *Engine {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNoOpLogger()
	}
	return &Engine{
		fetcher:     fetcher,
		concurrency: opts.Concurrency,
		level:       opts.CompressionLevel,
		logger:      opts.Logger,
		observer:    opts.Observer,
	}
}

// Transfer runs the batch and returns the archive bytes in batch.Archive.
func (e *Engine) Transfer(ctx context.Context, tasks []types.TransferTask, onProgress types.ProgressFunc) (*types.TransferBatch, error) {
	var buf bytes.Buffer
	batch, err := e.TransferTo(ctx, &buf, tasks, onProgress)
	if batch != nil && batch.Succeeded > 0 {
		batch.Archive = buf.Bytes()
	}
	return batch, err
}

// TransferTo runs the batch and streams the archive to w, holding at most
// one item's bytes per worker in memory. Nothing is written to w unless at
// least one item succeeds.
//
// On AllItemsFailedError or cancellation the returned batch still carries
// the per-task results of every task that reached a terminal state.
func (e *Engine) TransferTo(ctx context.Context, w io.Writer, tasks []types.TransferTask, onProgress types.ProgressFunc) (*types.TransferBatch, error) {
	if len(tasks) == 0 {
		return nil, &errors.NoTasksError{}
	}
	if err := checkLevel(e.level); err != nil {
		return nil, err
	}
	if onProgress == nil {
		onProgress = func(types.TransferProgress) {}
	}

	run := &batchRun{
		engine:     e,
		tasks:      tasks,
		results:    make([]types.TaskResult, len(tasks)),
		sink:       &countingWriter{w: w},
		onProgress: onProgress,
	}
	for i, task := range tasks {
		run.results[i] = types.TaskResult{Task: task, State: types.TaskPending}
	}

	var err error
	if e.concurrency == 1 {
		err = run.sequential(ctx)
	} else {
		err = run.concurrent(ctx)
	}

	if closeErr := run.closeArchive(); err == nil {
		err = closeErr
	}

	batch := run.batch()
	if err != nil {
		return batch, err
	}
	if err := ctx.Err(); err != nil {
		return batch, err
	}
	if batch.Succeeded == 0 {
		return batch, &errors.AllItemsFailedError{Failed: batch.Failed, Total: batch.Total}
	}

	e.logger.Info("Transfer complete",
		logging.F("succeeded", batch.Succeeded),
		logging.F("failed", batch.Failed),
		logging.F("total", batch.Total),
		logging.F("archive_bytes", batch.ArchiveSize),
	)
	return batch, nil
}

type batchRun struct {
	engine     *Engine
	tasks      []types.TransferTask
	results    []types.TaskResult
	sink       *countingWriter
	onProgress types.ProgressFunc

	// mu serializes progress callbacks, archive writes and result updates
	mu       sync.Mutex
	started  int
	packager *ZipPackager
}

func (r *batchRun) sequential(ctx context.Context) error {
	for i := range r.tasks {
		if ctx.Err() != nil {
			return nil
		}
		r.start(i)
		if err := r.process(ctx, i); err != nil {
			return err
		}
	}
	return nil
}

// concurrent fans tasks out over a bounded pool. Only a sink failure stops
// the pool early.
func (r *batchRun) concurrent(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.engine.concurrency)

	for i := range r.tasks {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			r.start(i)
			return r.process(gctx, i)
		})
	}
	return g.Wait()
}

// start reports progress for task i and marks it as fetching
func (r *batchRun) start(i int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
	r.results[i].State = types.TaskFetching
	r.onProgress(types.TransferProgress{
		Current:     r.started,
		Total:       len(r.tasks),
		CurrentFile: r.tasks[i].TargetName,
	})
}

// process fetches task i and records its outcome. Only archive write
// failures are returned; fetch failures are recorded on the task.
func (r *batchRun) process(ctx context.Context, i int) error {
	task := r.tasks[i]
	data, err := r.engine.fetcher.FetchBytes(ctx, task.RemoteRef)

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil && isContextErr(err) {
			// abandoned, not failed
			r.results[i].State = types.TaskPending
			return nil
		}
		r.results[i].State = types.TaskFailed
		r.results[i].Error = err.Error()
		r.observe(types.TaskFailed, 0)
		r.engine.logger.Warn("Transfer item failed",
			logging.F("ref", task.RemoteRef),
			logging.F("name", task.TargetName),
			logging.F("error", err),
		)
		return nil
	}

	if r.packager == nil {
		p, err := NewZipPackager(r.sink, r.engine.level)
		if err != nil {
			return err
		}
		r.packager = p
	}
	if err := r.packager.Add(task.TargetName, data); err != nil {
		return err
	}

	r.results[i].State = types.TaskSucceeded
	r.results[i].Size = int64(len(data))
	r.observe(types.TaskSucceeded, int64(len(data)))
	r.engine.logger.Debug("Transfer item stored",
		logging.F("name", task.TargetName),
		logging.F("size", len(data)),
	)
	return nil
}

func (r *batchRun) observe(state types.TaskState, size int64) {
	if r.engine.observer != nil {
		r.engine.observer.ObserveTask(state, size)
	}
}

func (r *batchRun) closeArchive() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.packager == nil {
		return nil
	}
	return r.packager.Close()
}

// batch collects the terminal results in input order
func (r *batchRun) batch() *types.TransferBatch {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := &types.TransferBatch{
		Results:     make([]types.TaskResult, 0, len(r.results)),
		Total:       len(r.tasks),
		ArchiveSize: r.sink.n,
	}
	for _, res := range r.results {
		switch res.State {
		case types.TaskSucceeded:
			b.Succeeded++
		case types.TaskFailed:
			b.Failed++
		default:
			continue
		}
		b.Results = append(b.Results, res)
	}
	return b
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func isContextErr(err error) bool {
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}
