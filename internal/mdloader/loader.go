// Package mdloader reads, caches, and hot-reloads Markdown documents that
// back two parts of the runtime: human-readable rationale behind a
// Compliance policy (POLICY.md, shown to an approver and optionally folded
// into the Reasoning Oracle's system prompt) and the incident-response
// runbook for a TIRS status transition (playbooks/<STATUS>.md, surfaced in
// alerts when an agent is throttled, paused, killed, or resurrected).
package mdloader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Loader reads and caches MD files from the filesystem. It is safe for
// concurrent use. The cache is keyed by absolute file path and entries are
// automatically invalidated when the Watcher detects a filesystem change.
type Loader struct {
	policiesDir  string // e.g. "./policies"
	playbooksDir string // e.g. "./playbooks"
	cache        map[string]*CachedMD
	mu           sync.RWMutex
	watcher      *Watcher
}

// CachedMD holds a single cached Markdown file and its metadata.
type CachedMD struct {
	Path     string
	Content  string
	ModTime  time.Time
	LoadedAt time.Time
}

// NewLoader creates a new Loader for the given directory layout. The
// directories do not need to exist at construction time — they are checked
// on each load call.
func NewLoader(policiesDir, playbooksDir string) *Loader {
	return &Loader{
		policiesDir:  policiesDir,
		playbooksDir: playbooksDir,
		cache:        make(map[string]*CachedMD),
	}
}

// PoliciesDir returns the configured policies directory.
func (l *Loader) PoliciesDir() string { return l.policiesDir }

// PlaybooksDir returns the configured playbooks directory.
func (l *Loader) PlaybooksDir() string { return l.playbooksDir }

// SetWatcher associates a filesystem Watcher with this Loader. The watcher
// calls Invalidate on file changes. This is called by NewWatcher automatically.
func (l *Loader) SetWatcher(w *Watcher) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.watcher = w
}

// ---------------------------------------------------------------------------
// Policy files
// ---------------------------------------------------------------------------

// LoadPolicyMD loads policies/<policyPath>/POLICY.md. The policyPath is
// typically the policy name from the config.
func (l *Loader) LoadPolicyMD(policyPath string) (string, error) {
	p := filepath.Join(l.policiesDir, policyPath, "POLICY.md")
	return l.loadFile(p)
}

// ---------------------------------------------------------------------------
// Playbook files
// ---------------------------------------------------------------------------

// LoadPlaybook loads playbooks/<STATUS>.md. The name is uppercased before
// looking up the file (e.g. "killed" -> "playbooks/KILLED.md").
func (l *Loader) LoadPlaybook(name string) (string, error) {
	filename := strings.ToUpper(name) + ".md"
	p := filepath.Join(l.playbooksDir, filename)
	return l.loadFile(p)
}

// ---------------------------------------------------------------------------
// Cache management
// ---------------------------------------------------------------------------

// Invalidate removes a cached entry by its absolute or relative path. Called
// by the Watcher on filesystem change events.
func (l *Loader) Invalidate(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.cache, abs)
}

// InvalidateAll clears the entire cache.
func (l *Loader) InvalidateAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]*CachedMD)
}

// ---------------------------------------------------------------------------
// Internal
// ---------------------------------------------------------------------------

// loadFile returns the file content from cache if the file has not been
// modified since it was cached, otherwise reads from disk and updates the
// cache.
func (l *Loader) loadFile(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %q: %w", path, err)
	}

	// Stat the file to check existence and mod time.
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("file not found: %s", abs)
	}

	// Fast path: return cached content if the file has not changed.
	l.mu.RLock()
	cached, ok := l.cache[abs]
	l.mu.RUnlock()

	if ok && !info.ModTime().After(cached.ModTime) {
		return cached.Content, nil
	}

	// Slow path: read from disk.
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", abs, err)
	}

	entry := &CachedMD{
		Path:     abs,
		Content:  string(data),
		ModTime:  info.ModTime(),
		LoadedAt: time.Now(),
	}

	l.mu.Lock()
	l.cache[abs] = entry
	l.mu.Unlock()

	return entry.Content, nil
}
