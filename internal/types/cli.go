package types

import "time"

// OutputFormat selects how command results are printed
type OutputFormat string

const (
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatTable OutputFormat = "table"
)

// TableRenderer is a result that prints as rows under a header. An empty
// result prints EmptyMessage instead of a table.
type TableRenderer interface {
	Headers() []string
	Rows() [][]string
	EmptyMessage() string
}

// TableRenderable is a result that converts itself into a TableRenderer
type TableRenderable interface {
	AsTableRenderer() TableRenderer
}

// GlobalFlags holds the persistent command line flags
type GlobalFlags struct {
	Owner        string
	Repository   string
	Ref          string
	Backend      string
	Profile      string
	Token        string
	OutputFormat OutputFormat
	Quiet        bool
	Verbose      bool
	Debug        bool
	NoCache      bool
	Config       string
	LogFile      string
	JSON         bool
}

// CLIOutput is the JSON envelope written by every command
type CLIOutput struct {
	SchemaVersion string       `json:"schemaVersion"`
	TraceID       string       `json:"traceId"`
	Command       string       `json:"command"`
	Data          interface{}  `json:"data"`
	Warnings      []CLIWarning `json:"warnings"`
	Errors        []CLIError   `json:"errors"`
}

// CLIWarning is a non-fatal notice attached to the output envelope
type CLIWarning struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// CLIError is a structured, tool-owned error description
type CLIError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"httpStatus,omitempty"`
	Retryable  bool                   `json:"retryable"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

// RequestType classifies remote operations for logging
type RequestType string

const (
	RequestTypeListDirectory RequestType = "ListDirectory"
	RequestTypeFetchBytes    RequestType = "FetchBytes"
)

// RequestContext carries per-request metadata through the API client
type RequestContext struct {
	Backend     string
	Owner       string
	Repository  string
	Path        string
	RequestType RequestType
	TraceID     string
}

// RequestObserver receives one callback per remote request. status is 0
// when no response arrived.
type RequestObserver interface {
	ObserveRequest(backend string, status int, duration time.Duration)
}
