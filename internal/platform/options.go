package platform

import (
	"log/slog"

	"github.com/aretw0/plurinotes/pkg/core"
)

// Adapter names accepted by WithAdapter.
const (
	AdapterSQLite = "sqlite"
	AdapterFS     = "fs"
	AdapterMemory = "memory"
)

// options holds the internal configuration for a session.
type options struct {
	gateway core.Gateway
	logger  *slog.Logger
	adapter string
	config  map[string]any
}

// Option defines a functional option for configuring a session.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		adapter: AdapterSQLite,
		config:  make(map[string]any),
	}
}

// WithAdapter selects the persistence gateway by name ("sqlite", "fs" or
// "memory"). Defaults to "sqlite".
func WithAdapter(name string) Option {
	return func(o *options) {
		o.adapter = name
	}
}

// WithGateway injects a custom gateway (e.g. a mock). The adapter option is
// ignored when set.
func WithGateway(gw core.Gateway) Option {
	return func(o *options) {
		o.gateway = gw
	}
}

// WithLogger sets the logger for the store and the gateway.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithAutoInit creates the data directory (and the git repository of a
// versioned vault) when missing.
func WithAutoInit(auto bool) Option {
	return func(o *options) {
		o.config["auto_init"] = auto
	}
}

// WithVersioning enables or disables git versioning of the fs vault.
// Without it the vault auto-detects an existing repository.
func WithVersioning(enabled bool) Option {
	return func(o *options) {
		o.config["gitless"] = !enabled
	}
}

// WithForceTemp forces the use of a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.config["temp_dir"] = force
	}
}

// WithMustExist ensures the data directory must already exist.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.config["must_exist"] = must
	}
}

// WithSystemDir sets the hidden directory name of the fs vault.
func WithSystemDir(name string) Option {
	return func(o *options) {
		o.config["system_dir"] = name
	}
}

// WithSeed installs the template relations into a fresh SQLite database.
func WithSeed(seed bool) Option {
	return func(o *options) {
		o.config["seed"] = seed
	}
}

// WithEmptyTrashOnClose purges trashed notes when the session closes.
func WithEmptyTrashOnClose(enabled bool) Option {
	return func(o *options) {
		o.config["empty_trash_on_close"] = enabled
	}
}

// WithWatcherErrorHandler registers a callback for errors raised while
// watching the fs vault.
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.config["watcher_error_handler"] = fn
	}
}

// WithDevSafety controls the sandbox used when running via `go run` or
// `go test`. By default (true) the data path is re-rooted into a temporary
// directory to prevent accidental data loss.
//
// CAUTION: Only disable this if you are sure your code is safe.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.config["dev_safety"] = enabled
	}
}

func (o *options) flag(key string) bool {
	v, _ := o.config[key].(bool)
	return v
}
