package internal

import "io"

// Run modes.
const (
	ModeScan  = "scan"
	ModeWatch = "watch"
	ModeServe = "serve"
	ModeMCP   = "mcp"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	mode    string
	out     io.Writer
	json    bool
	record  bool
	history int
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithMode selects the run mode (scan, watch, serve or mcp).
func WithMode(mode string) Option {
	return func(a *application) {
		a.mode = mode
	}
}

// WithOutput sets the writer for scan results and watch event lines.
// Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.out = w
	}
}

// WithJSONOutput switches scan output from text lines to a JSON document.
func WithJSONOutput(enabled bool) Option {
	return func(a *application) {
		a.json = enabled
	}
}

// WithRecord enables recording the scan run into the history database.
func WithRecord(enabled bool) Option {
	return func(a *application) {
		a.record = enabled
	}
}

// WithHistoryList makes scan mode list the most recent recorded runs
// instead of scanning. limit <= 0 disables.
func WithHistoryList(limit int) Option {
	return func(a *application) {
		a.history = limit
	}
}
