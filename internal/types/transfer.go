package types

// TransferTask is one requested item of a bulk transfer
type TransferTask struct {
	RemoteRef  string `json:"remoteRef"`
	TargetName string `json:"targetName"`
}

// TaskState is the lifecycle state of a transfer task
type TaskState string

const (
	TaskPending   TaskState = "pending"
	TaskFetching  TaskState = "fetching"
	TaskSucceeded TaskState = "succeeded"
	TaskFailed    TaskState = "failed"
)

// IsTerminal reports whether no further transitions are possible
func (s TaskState) IsTerminal() bool {
	return s == TaskSucceeded || s == TaskFailed
}

// TaskResult records the outcome of one task
type TaskResult struct {
	Task  TransferTask `json:"task"`
	State TaskState    `json:"state"`
	Size  int64        `json:"size,omitempty"`
	Error string       `json:"error,omitempty"`
}

// TransferProgress is reported before each task starts
type TransferProgress struct {
	Current     int    `json:"current"`
	Total       int    `json:"total"`
	CurrentFile string `json:"currentFile"`
}

// ProgressFunc receives progress notifications synchronously
type ProgressFunc func(TransferProgress)

// TransferBatch aggregates the outcome of one bulk transfer
type TransferBatch struct {
	Results   []TaskResult `json:"results"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Total     int          `json:"total"`
	// Archive holds the packaged bytes when the batch was buffered in memory.
	Archive []byte `json:"-"`
	// ArchiveSize is the number of bytes written to the archive sink.
	ArchiveSize int64 `json:"archiveSize"`
}

// TransferSummary is the JSON-friendly view of a finished batch
type TransferSummary struct {
	Output      string `json:"output,omitempty"`
	Succeeded   int    `json:"succeeded"`
	Failed      int    `json:"failed"`
	Total       int    `json:"total"`
	ArchiveSize int64  `json:"archiveSize"`
}

// Summary returns the counters of the batch
func (b *TransferBatch) Summary() TransferSummary {
	return TransferSummary{
		Succeeded:   b.Succeeded,
		Failed:      b.Failed,
		Total:       b.Total,
		ArchiveSize: b.ArchiveSize,
	}
}
