package engine

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Loaded pairs a validated ruleset with its runner and the file mtime it was
// read at.
type Loaded struct {
	RuleSet *RuleSet
	Runner  *Runner
	mtimeNS int64
}

// Loader serves the current ruleset from a YAML file with hot reload.
// The initial load fails fast; afterwards a changed mtime triggers a
// reparse+revalidate, and on failure the last known-good ruleset keeps
// serving. A reader never observes a partially loaded ruleset: the swap
// happens only after full validation.
type Loader struct {
	path string
	log  zerolog.Logger

	mu     sync.Mutex
	loaded *Loaded
}

func NewLoader(path string, log zerolog.Logger) (*Loader, error) {
	l := &Loader{path: path, log: log}
	loaded, err := l.loadFromDisk()
	if err != nil {
		return nil, errors.Wrapf(err, "initial ruleset load from %s", path)
	}
	l.loaded = loaded
	return l, nil
}

// Get returns the active ruleset, reloading first when the file changed.
func (l *Loader) Get() *Loaded {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, err := os.Stat(l.path)
	if err != nil {
		l.log.Error().Err(err).Str("path", l.path).Msg("ruleset file missing, keeping previous active")
		return l.loaded
	}
	mtime := st.ModTime().UnixNano()
	if mtime == l.loaded.mtimeNS {
		return l.loaded
	}

	reloaded, err := l.loadFromDisk()
	if err != nil {
		l.log.Error().Err(err).Str("path", l.path).Msg("ruleset reload failed, keeping previous active")
		return l.loaded
	}
	l.loaded = reloaded
	l.log.Info().Str("path", l.path).Str("version", reloaded.RuleSet.Version).Msg("ruleset reloaded")
	return l.loaded
}

func (l *Loader) loadFromDisk() (*Loaded, error) {
	st, err := os.Stat(l.path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.path) // #nosec G304
	if err != nil {
		return nil, err
	}
	rs, err := ParseRuleSet(data)
	if err != nil {
		return nil, err
	}
	return &Loaded{RuleSet: rs, Runner: NewRunner(rs), mtimeNS: st.ModTime().UnixNano()}, nil
}
