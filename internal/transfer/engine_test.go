package transfer

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dl-alexandre/ghimg/internal/errors"
	"github.com/dl-alexandre/ghimg/internal/testing/mocks"
	"github.com/dl-alexandre/ghimg/internal/types"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fiveTaskTree returns a tree with /1.png../5.png and tasks for them in order
func fiveTaskTree() (*mocks.TreeClient, []types.TransferTask) {
	tree := mocks.NewTreeClient()
	var tasks []types.TransferTask
	for i := 1; i <= 5; i++ {
		p := fmt.Sprintf("/%d.png", i)
		e := tree.AddFileWith(p, 10, time.Time{}, []byte(fmt.Sprintf("image-%d", i)))
		tasks = append(tasks, types.TransferTask{RemoteRef: e.DownloadRef, TargetName: fmt.Sprintf("%d.png", i)})
	}
	return tree, tasks
}

func archiveNames(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		out[f.Name] = string(content)
	}
	return out
}

func TestTransfer_PartialFailure(t *testing.T) {
	tree, tasks := fiveTaskTree()
	tree.FailFetch(tasks[1].RemoteRef, errors.NewRemoteFetchError("/2.png", 500, "boom", nil))
	tree.FailFetch(tasks[3].RemoteRef, errors.NewRemoteFetchError("/4.png", 404, "Not Found", nil))

	batch, err := New(tree, DefaultOptions()).Transfer(context.Background(), tasks, nil)

	require.NoError(t, err)
	assert.Equal(t, 3, batch.Succeeded)
	assert.Equal(t, 2, batch.Failed)
	assert.Equal(t, 5, batch.Total)
	assert.Equal(t, map[string]string{
		"1.png": "image-1",
		"3.png": "image-3",
		"5.png": "image-5",
	}, archiveNames(t, batch.Archive))

	require.Len(t, batch.Results, 5)
	assert.Equal(t, types.TaskFailed, batch.Results[1].State)
	assert.Contains(t, batch.Results[1].Error, "HTTP 500")
	assert.Equal(t, types.TaskSucceeded, batch.Results[4].State)
	assert.Equal(t, int64(len("image-5")), batch.Results[4].Size)
	assert.Equal(t, int64(len(batch.Archive)), batch.ArchiveSize)
}

func TestTransfer_AllFail(t *testing.T) {
	tree := mocks.NewTreeClient()
	tasks := []types.TransferTask{
		{RemoteRef: "raw:/x", TargetName: "x"},
		{RemoteRef: "raw:/y", TargetName: "y"},
		{RemoteRef: "raw:/z", TargetName: "z"},
	}

	var sink bytes.Buffer
	batch, err := New(tree, DefaultOptions()).TransferTo(context.Background(), &sink, tasks, nil)

	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrAllItemsFailed))
	var allFailed *errors.AllItemsFailedError
	require.ErrorAs(t, err, &allFailed)
	assert.Equal(t, 3, allFailed.Total)
	assert.Zero(t, sink.Len(), "no archive is produced")
	require.NotNil(t, batch)
	assert.Nil(t, batch.Archive)
	assert.Equal(t, 3, batch.Failed)
}

func TestTransfer_NoTasks(t *testing.T) {
	tree := mocks.NewTreeClient()

	batch, err := New(tree, DefaultOptions()).Transfer(context.Background(), nil, nil)

	assert.Nil(t, batch)
	assert.True(t, stderrors.Is(err, errors.ErrNoTasks))
}

func TestTransfer_ProgressBeforeEachTask(t *testing.T) {
	tree, tasks := fiveTaskTree()
	tree.FailFetch(tasks[2].RemoteRef, errors.NewRemoteFetchError("/3.png", 500, "boom", nil))

	var events []types.TransferProgress
	var fetchedBefore []int
	_, err := New(tree, DefaultOptions()).Transfer(context.Background(), tasks, func(p types.TransferProgress) {
		events = append(events, p)
		total := 0
		for _, task := range tasks {
			total += tree.FetchCalls(task.RemoteRef)
		}
		fetchedBefore = append(fetchedBefore, total)
	})

	require.NoError(t, err)
	require.Len(t, events, 5)
	for i, ev := range events {
		assert.Equal(t, i+1, ev.Current)
		assert.Equal(t, 5, ev.Total)
		assert.Equal(t, tasks[i].TargetName, ev.CurrentFile)
		assert.Equal(t, i, fetchedBefore[i], "progress fires before the fetch starts")
	}
}

func TestTransfer_DuplicateNamesPreserved(t *testing.T) {
	tree, tasks := fiveTaskTree()
	tasks[1].TargetName = tasks[0].TargetName

	batch, err := New(tree, DefaultOptions()).Transfer(context.Background(), tasks[:2], nil)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(batch.Archive), int64(len(batch.Archive)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, zr.File[0].Name, zr.File[1].Name)
}

func TestTransfer_CancelledReturnsTerminalTasksOnly(t *testing.T) {
	tree, tasks := fiveTaskTree()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	batch, err := New(tree, DefaultOptions()).Transfer(ctx, tasks, func(p types.TransferProgress) {
		if p.Current == 3 {
			cancel()
		}
	})

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, batch)
	assert.Equal(t, 2, batch.Succeeded)
	assert.Equal(t, 0, batch.Failed)
	require.Len(t, batch.Results, 2)
	for _, r := range batch.Results {
		assert.True(t, r.State.IsTerminal())
	}
	assert.Len(t, archiveNames(t, batch.Archive), 2)
}

func TestTransfer_Concurrent(t *testing.T) {
	tree, tasks := fiveTaskTree()
	tree.Delay = 5 * time.Millisecond
	tree.FailFetch(tasks[1].RemoteRef, errors.NewRemoteFetchError("/2.png", 500, "boom", nil))
	tree.FailFetch(tasks[3].RemoteRef, errors.NewRemoteFetchError("/4.png", 500, "boom", nil))

	var mu sync.Mutex
	var currents []int
	opts := DefaultOptions()
	opts.Concurrency = 3

	batch, err := New(tree, opts).Transfer(context.Background(), tasks, func(p types.TransferProgress) {
		mu.Lock()
		currents = append(currents, p.Current)
		mu.Unlock()
	})

	require.NoError(t, err)
	assert.Equal(t, 3, batch.Succeeded)
	assert.Equal(t, 2, batch.Failed)
	assert.True(t, sort.IntsAreSorted(currents), "progress is non-decreasing: %v", currents)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, currents)

	names := archiveNames(t, batch.Archive)
	assert.Len(t, names, 3)
	assert.Contains(t, names, "5.png")

	for i, r := range batch.Results {
		assert.Equal(t, tasks[i], r.Task, "results keep input order")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, fmt.Errorf("disk full") }

func TestTransfer_SinkFailureIsFatal(t *testing.T) {
	tree, tasks := fiveTaskTree()

	_, err := New(tree, DefaultOptions()).TransferTo(context.Background(), failingWriter{}, tasks, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestTransfer_InvalidCompressionLevel(t *testing.T) {
	tree, tasks := fiveTaskTree()

	_, err := New(tree, Options{CompressionLevel: 12}).Transfer(context.Background(), tasks, nil)

	require.Error(t, err)
	assert.Equal(t, 0, tree.FetchCalls(tasks[0].RemoteRef))
}

type recordingObserver struct {
	mu     sync.Mutex
	states map[types.TaskState]int
}

func (o *recordingObserver) ObserveTask(state types.TaskState, _ int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states[state]++
}

func TestTransfer_Observer(t *testing.T) {
	tree, tasks := fiveTaskTree()
	tree.FailFetch(tasks[0].RemoteRef, errors.NewRemoteFetchError("/1.png", 500, "boom", nil))
	obs := &recordingObserver{states: map[types.TaskState]int{}}

	opts := DefaultOptions()
	opts.Observer = obs
	_, err := New(tree, opts).Transfer(context.Background(), tasks, nil)

	require.NoError(t, err)
	assert.Equal(t, 4, obs.states[types.TaskSucceeded])
	assert.Equal(t, 1, obs.states[types.TaskFailed])
}

func TestDefaultArchiveName(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	assert.Equal(t, "images-1700000000123.zip", DefaultArchiveName(now))
}
