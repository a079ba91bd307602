package sink

import (
	"os"
	"sync"
	"time"

	"github.com/BYEONGJUJO/CCTV-Guardian/pkg/models"
)

// Config holds registry-wide sink settings.
type Config struct {
	// Dir is the directory holding every channel's files. Created (with
	// parents) at registry construction.
	Dir string

	// BackupCount bounds the rotated files kept per channel.
	// Defaults to models.DefaultBackupCount.
	BackupCount int

	// Now supplies the clock used for rotation decisions. Defaults to time.Now.
	Now func() time.Time

	// OnRotate, when set, runs after each successful rotation.
	OnRotate RotateHook
}

// Registry maps channel names to their sinks, creating each sink lazily and
// exactly once. It is owned by the application's composition root and passed
// to whatever produces records; there is no process-global instance.
type Registry struct {
	cfg Config

	mu    sync.Mutex
	sinks map[string]*Sink
}

// NewRegistry validates the configuration and ensures the log directory
// exists. A directory that cannot be created is a *ConfigError and fatal;
// nothing else about construction can fail.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.Dir == "" {
		cfg.Dir = models.DefaultLogDir
	}
	if cfg.BackupCount <= 0 {
		cfg.BackupCount = models.DefaultBackupCount
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, &ConfigError{Dir: cfg.Dir, Err: err}
	}

	return &Registry{
		cfg:   cfg,
		sinks: make(map[string]*Sink),
	}, nil
}

// GetOrCreate returns the sink for name, creating it on first use. Repeated
// calls return the same instance, so a channel never ends up with duplicate
// file handles; concurrent first-time calls for the same name are safe.
func (r *Registry) GetOrCreate(name string) *Sink {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sinks[name]; ok {
		return s
	}

	s := &Sink{
		name:        name,
		dir:         r.cfg.Dir,
		backupCount: r.cfg.BackupCount,
		now:         r.cfg.Now,
		onRotate:    r.cfg.OnRotate,
	}
	r.sinks[name] = s
	return s
}

// Close flushes and closes every open sink. The registry stays usable;
// closed sinks reopen on their next append.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
