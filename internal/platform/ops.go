package platform

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aretw0/plurinotes/pkg/adapters/fs"
	"github.com/aretw0/plurinotes/pkg/adapters/sqlite"
	"github.com/aretw0/plurinotes/pkg/core"
)

const (
	// DatabaseFileName is the SQLite database inside the data directory.
	DatabaseFileName = "plurinotes.db"

	DefaultSystemDir = fs.DefaultSystemDir
)

// Init builds and initializes the gateway selected by the options.
// The uri is the data directory (or ":memory:" for a transient SQLite
// database). The memory adapter yields a nil gateway.
func Init(ctx context.Context, uri string, opts ...Option) (core.Gateway, error) {
	return newOptions(opts).init(ctx, uri)
}

func newOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) init(ctx context.Context, uri string) (core.Gateway, error) {
	if o.gateway != nil {
		return o.gateway, nil
	}

	var gw core.Gateway
	var err error
	switch o.adapter {
	case AdapterSQLite:
		gw, err = o.initSQLite(uri)
	case AdapterFS:
		gw, err = o.initFS(uri)
	case AdapterMemory:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown adapter: %s", o.adapter)
	}
	if err != nil {
		return nil, err
	}

	if initializer, ok := gw.(core.Initializer); ok {
		if err := initializer.Initialize(ctx); err != nil {
			if c, ok := gw.(io.Closer); ok {
				_ = c.Close()
			}
			return nil, err
		}
	}
	return gw, nil
}

// resolvePath applies the dev-run sandbox to the data path.
func (o *options) resolvePath(path string) (string, bool) {
	devSafety := true
	if v, ok := o.config["dev_safety"].(bool); ok {
		devSafety = v
	}
	useTemp := o.flag("temp_dir") || (IsDevRun() && devSafety)
	resolved := ResolveDataPath(path, useTemp)

	if o.logger != nil && IsDevRun() {
		if devSafety {
			o.logger.Debug("running in SAFE mode (dev sandbox enabled)", "path", resolved)
		} else {
			o.logger.Warn("running in UNSAFE mode (bypassing dev sandbox)", "path", resolved)
		}
	}
	return resolved, useTemp
}

func (o *options) initSQLite(uri string) (core.Gateway, error) {
	var sqlOpts []sqlite.Option
	if seed, ok := o.config["seed"].(bool); !ok || seed {
		sqlOpts = append(sqlOpts, sqlite.WithSeed())
	}
	if o.logger != nil {
		sqlOpts = append(sqlOpts, sqlite.WithLogger(o.logger))
	}

	if uri == ":memory:" {
		return sqlite.Open(uri, sqlOpts...)
	}

	dir, useTemp := o.resolvePath(uri)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if o.flag("must_exist") || (!o.flag("auto_init") && !useTemp) {
			return nil, fmt.Errorf("data directory does not exist: %s", dir)
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	return sqlite.Open(filepath.Join(dir, DatabaseFileName), sqlOpts...)
}

func (o *options) initFS(uri string) (core.Gateway, error) {
	path, useTemp := o.resolvePath(uri)
	autoInit := o.flag("auto_init")
	systemDir, _ := o.config["system_dir"].(string)
	if systemDir == "" {
		systemDir = fs.DefaultSystemDir
	}
	errorHandler, _ := o.config["watcher_error_handler"].(func(error))

	// Without an explicit setting, a vault is versioned when it already is a
	// git repository, or when it is being created from scratch.
	gitless, explicit := o.config["gitless"].(bool)
	if !explicit {
		if hasFile(path, ".git") {
			gitless = false
		} else if autoInit {
			gitless = hasFile(path, systemDir)
		} else {
			gitless = true
		}
		if gitless && o.logger != nil {
			o.logger.Debug("auto-detected gitless mode", "reason", ".git missing")
		}
	}

	return fs.NewVault(fs.Config{
		Path:         path,
		AutoInit:     autoInit,
		Gitless:      gitless,
		MustExist:    o.flag("must_exist") || (!autoInit && !useTemp),
		Logger:       o.logger,
		SystemDir:    systemDir,
		ErrorHandler: errorHandler,
	}), nil
}
