// Package dataload loads the YAML persona/topic/sitemap data files and
// hot-reloads them on change via fsnotify, swapping in a fresh snapshot
// atomically so in-flight sessions never see a half-written file
// (spec.md §6).
package dataload

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/poisson-noise/poisson/internal/domain"
)

// Snapshot is the full set of data loaded from the data directory at one
// point in time.
type Snapshot struct {
	Personas []domain.Persona
	Topics   []domain.TopicProfile
	Sitemaps map[string][]string // topic -> URLs, for the browse engine
}

// personaFile / topicFile / sitemapFile mirror the on-disk YAML shapes.
type personaFile struct {
	Personas []domain.Persona `yaml:"personas"`
}

type topicFile struct {
	Topics []domain.TopicProfile `yaml:"topics"`
}

type sitemapFile struct {
	Sitemaps map[string][]string `yaml:"sitemaps"`
}

// Paths names the three YAML files loaded from the data directory.
type Paths struct {
	PersonasPath string
	TopicsPath   string
	SitemapsPath string
}

// Load reads all three data files into a Snapshot. A missing required
// file is reported via domain.ErrDataFileMissing; malformed YAML via
// domain.ErrDataFileMalformed.
func Load(paths Paths) (Snapshot, error) {
	var snap Snapshot

	var pf personaFile
	if err := loadYAML(paths.PersonasPath, &pf); err != nil {
		return snap, err
	}
	snap.Personas = pf.Personas

	var tf topicFile
	if err := loadYAML(paths.TopicsPath, &tf); err != nil {
		return snap, err
	}
	snap.Topics = tf.Topics

	var sf sitemapFile
	if err := loadYAML(paths.SitemapsPath, &sf); err != nil {
		return snap, err
	}
	snap.Sitemaps = sf.Sitemaps

	if len(snap.Personas) == 0 {
		return snap, fmt.Errorf("%w: no personas in %s", domain.ErrDataCategoryMissing, paths.PersonasPath)
	}
	return snap, nil
}

func loadYAML(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", domain.ErrDataFileMissing, path)
		}
		return fmt.Errorf("%w: %s: %v", domain.ErrDataFileMalformed, path, err)
	}
	if err := yaml.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrDataFileMalformed, path, err)
	}
	return nil
}

// Reloadable is anything that can accept a freshly loaded Snapshot.
type Reloadable interface {
	Reload(snap Snapshot)
}

// ReloadFunc adapts a plain function to Reloadable, for components (like
// the persona registry or browse engine) whose own Reload method takes a
// narrower type than Snapshot.
type ReloadFunc func(Snapshot)

// Reload calls f.
func (f ReloadFunc) Reload(snap Snapshot) { f(snap) }

// Watcher holds the current Snapshot behind an atomic pointer and applies
// fresh snapshots to registered listeners as files change on disk.
type Watcher struct {
	paths   Paths
	current atomic.Pointer[Snapshot]
	logger  *zap.Logger
	watcher *fsnotify.Watcher
}

// NewWatcher performs an initial Load and starts watching the data
// directory's three files for changes.
func NewWatcher(paths Paths, logger *zap.Logger) (*Watcher, error) {
	snap, err := Load(paths)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("dataload: create fsnotify watcher: %w", err)
	}
	for _, p := range []string{paths.PersonasPath, paths.TopicsPath, paths.SitemapsPath} {
		if err := fw.Add(p); err != nil {
			logger.Warn("dataload: watch failed", zap.String("path", p), zap.Error(err))
		}
	}

	w := &Watcher{paths: paths, logger: logger, watcher: fw}
	w.current.Store(&snap)
	return w, nil
}

// Current returns the most recently loaded Snapshot.
func (w *Watcher) Current() Snapshot {
	return *w.current.Load()
}

// Close stops watching the data files. Safe to call even if Run was never
// started.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Run watches for file change events, reloading on each one and
// dispatching the new Snapshot to every registered listener. Call in a
// goroutine; it returns when ctx's Done channel would normally be
// observed via stop().
func (w *Watcher) Run(stop <-chan struct{}, listeners ...Reloadable) {
	defer w.watcher.Close()
	for {
		select {
		case <-stop:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			snap, err := Load(w.paths)
			if err != nil {
				w.logger.Warn("dataload: reload failed, keeping previous snapshot", zap.Error(err))
				continue
			}
			w.current.Store(&snap)
			for _, l := range listeners {
				l.Reload(snap)
			}
			w.logger.Info("dataload: reloaded data files", zap.String("changed", ev.Name))
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("dataload: watch error", zap.Error(err))
		}
	}
}
