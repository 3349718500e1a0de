package plurinotes

import (
	"context"
	"log/slog"

	"github.com/aretw0/plurinotes/internal/platform"
	"github.com/aretw0/plurinotes/pkg/core"
)

// --- Types ---

// Session is an opened store bound to its gateway.
type Session = platform.Session

// NoteSpec describes a note to create.
type NoteSpec = core.NoteSpec

// Attributes carries version content by attribute name.
type Attributes = core.Attributes

// Note kinds.
const (
	KindArticle = core.KindArticle
	KindMedia   = core.KindMedia
	KindTask    = core.KindTask
)

// FileConfig is the content of plurinotes.yaml.
type FileConfig = platform.FileConfig

// --- Configuration ---

// Option defines a functional option for opening a session.
type Option = platform.Option

// WithAdapter selects the persistence gateway by name ("sqlite", "fs" or "memory").
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithGateway injects a custom gateway.
func WithGateway(gw core.Gateway) Option {
	return platform.WithGateway(gw)
}

// WithLogger sets the logger for the store and the gateway.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithAutoInit creates the data directory when missing.
func WithAutoInit(auto bool) Option {
	return platform.WithAutoInit(auto)
}

// WithVersioning enables or disables git versioning of the fs vault.
func WithVersioning(enabled bool) Option {
	return platform.WithVersioning(enabled)
}

// WithForceTemp forces the use of a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return platform.WithForceTemp(force)
}

// WithMustExist ensures the data directory must already exist.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithDevSafety controls the `go run` sandbox.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// WithEmptyTrashOnClose purges trashed notes when the session closes.
func WithEmptyTrashOnClose(enabled bool) Option {
	return platform.WithEmptyTrashOnClose(enabled)
}

// --- Factory ---

// Open initializes the selected gateway and loads it into a new store.
func Open(ctx context.Context, path string, opts ...Option) (*Session, error) {
	return platform.Open(ctx, path, opts...)
}

// LoadConfig reads plurinotes.yaml from dir.
func LoadConfig(dir string) (FileConfig, error) {
	return platform.LoadConfig(dir)
}

// --- Safety & Utils ---

// ResolveDataPath determines the actual data path based on safety rules.
func ResolveDataPath(userPath string, forceTemp bool) string {
	return platform.ResolveDataPath(userPath, forceTemp)
}

// IsDevRun checks if the current process is running via `go run` or `go test`.
func IsDevRun() bool {
	return platform.IsDevRun()
}

// FindRoot looks upwards for a data directory.
func FindRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}
