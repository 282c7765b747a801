package rules

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// FileWatcher polls rule files and calls back when one is added, touched or
// removed. Patterns may be plain paths or filepath.Glob patterns; globs are
// expanded on every scan so a new scenario file is picked up.
type FileWatcher struct {
	Patterns  []string
	Interval  time.Duration
	onChange  func(string) // called with path that changed
	lastMTime map[string]time.Time
}

// NewFileWatcher creates a watcher for given patterns and interval.
func NewFileWatcher(patterns []string, interval time.Duration, onChange func(string)) *FileWatcher {
	return &FileWatcher{
		Patterns:  patterns,
		Interval:  interval,
		onChange:  onChange,
		lastMTime: make(map[string]time.Time),
	}
}

// RulePatterns lists what a watcher needs for p: the default file and every
// scenario.
func RulePatterns(p Paths) []string {
	return []string{p.DefaultPath(), p.ScenarioPath("*")}
}

// Run polls until ctx is done.
func (w *FileWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()
	// prime cache
	w.scan(true)
	for {
		select {
		case <-ticker.C:
			w.scan(false)
		case <-ctx.Done():
			return
		}
	}
}

func (w *FileWatcher) expand() []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range w.Patterns {
		matches, err := filepath.Glob(p)
		if err != nil || len(matches) == 0 {
			// a bad pattern or a missing plain path; still watch it in case it appears
			matches = []string{p}
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	sort.Strings(out)
	return out
}

// scan checks mtimes and reports files that changed since the last scan.
// A file that appears after the first scan counts as a change, and so does
// one that goes away.
func (w *FileWatcher) scan(prime bool) {
	present := map[string]bool{}
	for _, p := range w.expand() {
		fi, err := os.Stat(p)
		if err != nil {
			continue
		}
		present[p] = true
		mt := fi.ModTime()
		last, ok := w.lastMTime[p]
		w.lastMTime[p] = mt
		if prime {
			continue
		}
		if !ok || mt.After(last) {
			w.notify(p)
		}
	}
	var gone []string
	for p := range w.lastMTime {
		if !present[p] {
			gone = append(gone, p)
		}
	}
	sort.Strings(gone)
	for _, p := range gone {
		delete(w.lastMTime, p)
		if !prime {
			w.notify(p)
		}
	}
}

func (w *FileWatcher) notify(p string) {
	if w.onChange != nil {
		w.onChange(p)
	}
}
