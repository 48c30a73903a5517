package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Loader reads sequencing policies from disk. Bare Rego sources carry
// the gate rules directly; JSON documents wrap a policy with its
// metadata. Loaded files are cached by path until they change on disk.
type Loader struct {
	logger  zerolog.Logger
	byPath  map[string]*Policy
	mu      sync.RWMutex
	watcher *fsnotify.Watcher
}

// NewLoader creates a policy loader with an empty cache.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		logger: logger.With().Str("component", "policy-loader").Logger(),
		byPath: make(map[string]*Policy),
	}
}

// LoadFromPaths reads every policy reachable from the given files and
// directories. Directories are walked recursively; a file that fails to
// parse inside a directory is logged and skipped so one broken rule
// does not take the whole gate down, while a named file failing is an
// error.
func (l *Loader) LoadFromPaths(ctx context.Context, paths []string) ([]Policy, error) {
	var policies []Policy

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stating policy path %s: %w", path, err)
		}

		if info.IsDir() {
			fromDir, err := l.loadDirectory(path)
			if err != nil {
				return nil, err
			}

			policies = append(policies, fromDir...)
			continue
		}

		policy, err := l.loadFile(path)
		if err != nil {
			return nil, err
		}

		policies = append(policies, *policy)
	}

	l.logger.Info().
		Int("policies", len(policies)).
		Int("sources", len(paths)).
		Msg("sequencing policies loaded")

	return policies, nil
}

func (l *Loader) loadDirectory(dirPath string) ([]Policy, error) {
	var policies []Policy

	err := filepath.WalkDir(dirPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !isPolicyFile(path) {
			return nil
		}

		policy, err := l.loadFile(path)
		if err != nil {
			l.logger.Warn().
				Err(err).
				Str("path", path).
				Msg("skipping unreadable policy file")

			return nil
		}

		policies = append(policies, *policy)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking policy directory %s: %w", dirPath, err)
	}

	return policies, nil
}

func isPolicyFile(path string) bool {
	return strings.HasSuffix(path, ".rego") || strings.HasSuffix(path, ".json")
}

func (l *Loader) loadFile(filePath string) (*Policy, error) {
	l.mu.RLock()
	cached, ok := l.byPath[filePath]
	l.mu.RUnlock()

	if ok {
		return cached, nil
	}

	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}

	var policy *Policy

	switch {
	case strings.HasSuffix(filePath, ".rego"):
		policy = regoPolicy(filePath, raw)
	case strings.HasSuffix(filePath, ".json"):
		policy, err = jsonPolicy(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing policy %s: %w", filePath, err)
		}
	default:
		return nil, fmt.Errorf("policy file %s is neither .rego nor .json",
			filePath)
	}

	l.mu.Lock()
	l.byPath[filePath] = policy
	l.mu.Unlock()

	l.logger.Debug().
		Str("path", filePath).
		Str("policy", policy.Name).
		Msg("policy file loaded")

	return policy, nil
}

// regoPolicy wraps a bare Rego source as an enabled warning-severity
// policy named after its file. The leading comment block becomes the
// description; deny rules may override the severity per violation.
func regoPolicy(filePath string, raw []byte) *Policy {
	now := time.Now()

	return &Policy{
		Name:        strings.TrimSuffix(filepath.Base(filePath), ".rego"),
		Description: leadingComment(string(raw)),
		Rego:        string(raw),
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{},
		Metadata: map[string]interface{}{
			"source": filePath,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func jsonPolicy(raw []byte) (*Policy, error) {
	var policy Policy
	if err := json.Unmarshal(raw, &policy); err != nil {
		return nil, err
	}

	if policy.Severity == "" {
		policy.Severity = SeverityWarning
	}

	now := time.Now()
	if policy.CreatedAt.IsZero() {
		policy.CreatedAt = now
	}
	if policy.UpdatedAt.IsZero() {
		policy.UpdatedAt = now
	}

	return &policy, nil
}

// leadingComment joins the comment block at the top of a Rego source
// into a single line, stopping at the first statement after it.
func leadingComment(source string) string {
	var parts []string

	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "#") {
			comment := strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
			if comment != "" && !strings.HasPrefix(comment, "package") {
				parts = append(parts, comment)
			}

			continue
		}

		if trimmed != "" && len(parts) > 0 {
			break
		}
	}

	return strings.Join(parts, " ")
}

// LoadBundle reads a JSON bundle of related policies.
func (l *Loader) LoadBundle(ctx context.Context, bundlePath string) (*PolicyBundle, error) {
	raw, err := os.ReadFile(bundlePath)
	if err != nil {
		return nil, fmt.Errorf("reading policy bundle: %w", err)
	}

	var bundle PolicyBundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return nil, fmt.Errorf("parsing policy bundle %s: %w", bundlePath, err)
	}

	l.logger.Info().
		Str("bundle", bundle.Name).
		Str("version", bundle.Version).
		Int("policies", len(bundle.Policies)).
		Msg("policy bundle loaded")

	return &bundle, nil
}

// Watch follows the given paths and hands a freshly loaded policy set
// to applyFn whenever a policy file changes. Events are debounced so a
// burst of writes triggers a single reload. Watching ends when the
// context is cancelled or StopWatching is called.
func (l *Loader) Watch(ctx context.Context, paths []string, applyFn func([]Policy) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating policy watcher: %w", err)
	}

	l.watcher = watcher

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			l.logger.Warn().
				Err(err).
				Str("path", path).
				Msg("cannot stat policy path; not watching it")

			continue
		}

		if info.IsDir() {
			if err := l.watchTree(path); err != nil {
				l.logger.Warn().
					Err(err).
					Str("path", path).
					Msg("cannot watch policy directory")
			}

			continue
		}

		if err := watcher.Add(path); err != nil {
			l.logger.Warn().
				Err(err).
				Str("path", path).
				Msg("cannot watch policy file")
		}
	}

	go l.watchLoop(ctx, paths, applyFn)

	l.logger.Info().
		Int("paths", len(paths)).
		Msg("watching policy paths")

	return nil
}

// watchTree registers a directory and its subdirectories with the
// watcher so files added later are seen too.
func (l *Loader) watchTree(dirPath string) error {
	return filepath.WalkDir(dirPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return l.watcher.Add(path)
		}

		return nil
	})
}

func (l *Loader) watchLoop(ctx context.Context, paths []string, applyFn func([]Policy) error) {
	const debounce = 500 * time.Millisecond

	var pending *time.Timer

	for {
		select {
		case <-ctx.Done():
			_ = l.watcher.Close()
			return

		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 ||
				!isPolicyFile(event.Name) {
				continue
			}

			l.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("policy file changed; scheduling reload")

			// Invalidate the changed file so the reload rereads it.
			l.mu.Lock()
			delete(l.byPath, event.Name)
			l.mu.Unlock()

			if pending != nil {
				pending.Stop()
			}

			pending = time.AfterFunc(debounce, func() {
				if err := l.reload(ctx, paths, applyFn); err != nil {
					l.logger.Error().
						Err(err).
						Msg("policy reload failed")
				}
			})

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}

			l.logger.Error().Err(err).Msg("policy watcher error")
		}
	}
}

// reload rebuilds the policy set from the watched paths and hands it to
// the apply callback.
func (l *Loader) reload(ctx context.Context, paths []string, applyFn func([]Policy) error) error {
	policies, err := l.LoadFromPaths(ctx, paths)
	if err != nil {
		return err
	}

	if err := applyFn(policies); err != nil {
		return fmt.Errorf("applying reloaded policies: %w", err)
	}

	l.logger.Info().
		Int("policies", len(policies)).
		Msg("sequencing policies reloaded")

	return nil
}

// StopWatching closes the file watcher, ending any Watch loop.
func (l *Loader) StopWatching() error {
	if l.watcher == nil {
		return nil
	}

	return l.watcher.Close()
}

// ClearCache drops all cached policy files, forcing rereads from disk.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.byPath = make(map[string]*Policy)
}
