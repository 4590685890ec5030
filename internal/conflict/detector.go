// Package conflict watches the worktrees of a swarm run and reports files
// that more than one team has written.
//
// Two teams editing the same path will most likely conflict when their
// branches are merged back. The Detector surfaces those overlaps while the
// teams are still working, so an orchestrator can react before merge time.
//
//	d, err := conflict.New(conflict.Options{Logger: logger})
//	if err != nil {
//		return err
//	}
//	d.OnOverlap(func(o []conflict.Overlap) { ... })
//	d.Start()
//	defer d.Stop()
//	_ = d.AddTeam("alpha", alphaPath)
//	_ = d.AddTeam("beta", betaPath)
//
// Paths are compared relative to each worktree root, using forward slashes.
package conflict

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/swarmtree/internal/config"
	"github.com/Iron-Ham/swarmtree/internal/errors"
	"github.com/Iron-Ham/swarmtree/internal/logging"
)

// DefaultDebounce coalesces the bursts of events editors emit for one save.
const DefaultDebounce = 50 * time.Millisecond

// Overlap is a worktree-relative path written by more than one team.
type Overlap struct {
	Path         string    `json:"path" yaml:"path"`
	Teams        []string  `json:"teams" yaml:"teams"`
	LastModified time.Time `json:"last_modified" yaml:"last_modified"`
}

// Options configures a Detector.
type Options struct {
	// Ignore holds doublestar patterns matched against worktree-relative
	// paths. A pattern that matches a directory ignores everything below it.
	Ignore []string
	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration
	Logger   *logging.Logger
}

// Detector tracks writes in team worktrees and derives overlaps.
type Detector struct {
	watcher  *fsnotify.Watcher
	ignore   []string
	debounce time.Duration
	logger   *logging.Logger

	mu sync.RWMutex
	// team id -> worktree root
	teams map[string]string
	// relative path -> team id -> last write
	writes    map[string]map[string]time.Time
	overlaps  []Overlap
	onOverlap func([]Overlap)

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	done      chan struct{}
}

// New creates a Detector. Call Start to begin processing events.
func New(opts Options) (*Detector, error) {
	for _, pattern := range opts.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			return nil, errors.NewValidationError("invalid ignore pattern").
				WithField("ignore").
				WithValue(pattern)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(errors.Join(errors.ErrBackendIO, err), "failed to create file watcher")
	}

	d := &Detector{
		watcher:  watcher,
		ignore:   append([]string(nil), opts.Ignore...),
		debounce: opts.Debounce,
		logger:   opts.Logger,
		teams:    make(map[string]string),
		writes:   make(map[string]map[string]time.Time),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	if d.debounce <= 0 {
		d.debounce = DefaultDebounce
	}
	if d.logger == nil {
		d.logger = logging.NopLogger()
	}
	return d, nil
}

// NewFromConfig creates a Detector from the watch section of the config.
func NewFromConfig(cfg config.WatchConfig, logger *logging.Logger) (*Detector, error) {
	return New(Options{
		Ignore:   cfg.Ignore,
		Debounce: cfg.Debounce(),
		Logger:   logger,
	})
}

// OnOverlap registers a callback invoked, from the event goroutine, every
// time a write leaves at least one overlap.
func (d *Detector) OnOverlap(cb func([]Overlap)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onOverlap = cb
}

// AddTeam starts watching a team's worktree, including every directory
// below it that is not ignored.
func (d *Detector) AddTeam(teamID, worktreePath string) error {
	info, err := os.Stat(worktreePath)
	if err != nil {
		return errors.NewValidationError("worktree path does not exist").
			WithField("worktree_path").
			WithValue(worktreePath)
	}
	if !info.IsDir() {
		return errors.NewValidationError("worktree path is not a directory").
			WithField("worktree_path").
			WithValue(worktreePath)
	}

	root, err := filepath.Abs(worktreePath)
	if err != nil {
		return errors.Wrap(errors.Join(errors.ErrBackendIO, err), "failed to resolve worktree path")
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	d.mu.Lock()
	d.teams[teamID] = root
	d.mu.Unlock()

	if err := d.watcher.Add(root); err != nil {
		return errors.Wrap(errors.Join(errors.ErrBackendIO, err), "failed to watch "+root)
	}
	d.watchTree(root, root)

	d.logger.WithTeam(teamID).Debug("watching worktree", "path", root)
	return nil
}

// watchTree adds every non-ignored directory under dir. Directories that
// cannot be read are skipped.
func (d *Detector) watchTree(root, dir string) {
	_ = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || !entry.IsDir() {
			return nil
		}
		if path != root && d.ignored(relPath(root, path)) {
			return filepath.SkipDir
		}
		if err := d.watcher.Add(path); err != nil {
			d.logger.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// RemoveTeam stops watching a team and forgets its writes. Overlaps that
// involved only this team and one other disappear.
func (d *Detector) RemoveTeam(teamID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	root, ok := d.teams[teamID]
	if !ok {
		return
	}
	delete(d.teams, teamID)

	for _, path := range d.watcher.WatchList() {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			_ = d.watcher.Remove(path)
		}
	}

	for rel, teams := range d.writes {
		delete(teams, teamID)
		if len(teams) == 0 {
			delete(d.writes, rel)
		}
	}
	d.recalculate()
}

// Start launches the event goroutine. Calling it more than once has no
// effect.
func (d *Detector) Start() {
	d.startOnce.Do(func() { go d.watchLoop() })
}

// Stop stops the event goroutine, waits for it to exit and releases the
// watcher. It is safe to call more than once, with or without Start.
func (d *Detector) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopCh)
		// a never-started loop cannot close done
		d.startOnce.Do(func() { close(d.done) })
		<-d.done
		_ = d.watcher.Close()
	})
}

func (d *Detector) watchLoop() {
	defer close(d.done)

	timer := time.NewTimer(d.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	pending := make(map[string]fsnotify.Event)

	for {
		select {
		case <-d.stopCh:
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			pending[event.Name] = event
			timer.Reset(d.debounce)

		case <-timer.C:
			batch := pending
			pending = make(map[string]fsnotify.Event)
			for _, event := range batch {
				d.handleEvent(event)
			}

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (d *Detector) handleEvent(event fsnotify.Event) {
	team, root, ok := d.owner(event.Name)
	if !ok {
		return
	}
	rel := relPath(root, event.Name)
	if rel == "." || d.ignored(rel) {
		return
	}

	info, err := os.Stat(event.Name)
	if err == nil && info.IsDir() {
		// new directories are watched but not tracked as writes
		if event.Op&fsnotify.Create != 0 {
			d.watchTree(root, event.Name)
		}
		return
	}

	d.record(team, rel, time.Now())
}

// record notes a write by team and recomputes overlaps.
func (d *Detector) record(team, rel string, at time.Time) {
	d.mu.Lock()
	if d.writes[rel] == nil {
		d.writes[rel] = make(map[string]time.Time)
	}
	d.writes[rel][team] = at
	overlaps := d.recalculate()
	cb := d.onOverlap
	d.mu.Unlock()

	if cb != nil && len(overlaps) > 0 {
		cb(overlaps)
	}
}

// owner returns the team whose worktree contains path. Nested worktrees
// resolve to the innermost one.
func (d *Detector) owner(path string) (team, root string, ok bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for id, r := range d.teams {
		if path != r && !strings.HasPrefix(path, r+string(filepath.Separator)) {
			continue
		}
		if len(r) > len(root) {
			team, root, ok = id, r, true
		}
	}
	return team, root, ok
}

// ignored reports whether rel, or any directory above it, matches an
// ignore pattern.
func (d *Detector) ignored(rel string) bool {
	for candidate := rel; candidate != "." && candidate != ""; candidate = parentOf(candidate) {
		for _, pattern := range d.ignore {
			if match, _ := doublestar.Match(pattern, candidate); match {
				return true
			}
		}
	}
	return false
}

func parentOf(rel string) string {
	i := strings.LastIndex(rel, "/")
	if i < 0 {
		return ""
	}
	return rel[:i]
}

func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// recalculate rebuilds the overlap list. d.mu must be held for writing.
// It returns a copy safe to hand out after unlocking.
func (d *Detector) recalculate() []Overlap {
	overlaps := make([]Overlap, 0)
	for rel, teams := range d.writes {
		if len(teams) < 2 {
			continue
		}
		o := Overlap{Path: rel, Teams: make([]string, 0, len(teams))}
		for id, at := range teams {
			o.Teams = append(o.Teams, id)
			if at.After(o.LastModified) {
				o.LastModified = at
			}
		}
		sort.Strings(o.Teams)
		overlaps = append(overlaps, o)
	}
	sort.Slice(overlaps, func(i, j int) bool { return overlaps[i].Path < overlaps[j].Path })

	if len(overlaps) > len(d.overlaps) {
		d.logger.Warn("teams wrote the same file", "overlaps", len(overlaps))
	}
	d.overlaps = overlaps
	return copyOverlaps(overlaps)
}

func copyOverlaps(in []Overlap) []Overlap {
	out := make([]Overlap, len(in))
	for i, o := range in {
		out[i] = o
		out[i].Teams = append([]string(nil), o.Teams...)
	}
	return out
}

// Overlaps returns the current overlaps sorted by path.
func (d *Detector) Overlaps() []Overlap {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return copyOverlaps(d.overlaps)
}

// FilesWrittenBy returns the sorted relative paths a team has written.
func (d *Detector) FilesWrittenBy(teamID string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var files []string
	for rel, teams := range d.writes {
		if _, ok := teams[teamID]; ok {
			files = append(files, rel)
		}
	}
	sort.Strings(files)
	return files
}

// Forget drops writes older than maxAge.
func (d *Detector) Forget(maxAge time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for rel, teams := range d.writes {
		for id, at := range teams {
			if at.Before(cutoff) {
				delete(teams, id)
			}
		}
		if len(teams) == 0 {
			delete(d.writes, rel)
		}
	}
	d.recalculate()
}

// HasOverlaps reports whether any file has been written by two teams.
func (d *Detector) HasOverlaps() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.overlaps) > 0
}

// Teams returns the watched team ids, sorted.
func (d *Detector) Teams() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]string, 0, len(d.teams))
	for id := range d.teams {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
