package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const renderCacheSize = 256

// Manager performs every filesystem operation of the file manager. All paths
// it touches are resolved underneath baseDir.
type Manager struct {
	baseDir   string
	realBase  string
	logger    *logrus.Logger
	tracer    trace.Tracer
	startTime time.Time

	readmes *lru.Cache
	thumbs  *lru.Cache
}

// New creates a new manager rooted at baseDir
func New(baseDir string, logger *logrus.Logger) (*Manager, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base directory is not specified")
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory %s: %w", baseDir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat base directory %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("base directory %s: %w", abs, ErrNotDirectory)
	}
	realBase, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate base directory %s: %w", abs, err)
	}

	readmes, err := lru.New(renderCacheSize)
	if err != nil {
		return nil, err
	}
	thumbs, err := lru.New(renderCacheSize)
	if err != nil {
		return nil, err
	}

	return &Manager{
		baseDir:   filepath.Clean(abs),
		realBase:  realBase,
		logger:    logger,
		tracer:    otel.Tracer("filemanager"),
		startTime: time.Now(),
		readmes:   readmes,
		thumbs:    thumbs,
	}, nil
}

// BaseDir returns the absolute base directory
func (m *Manager) BaseDir() string {
	return m.baseDir
}
