package host

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	yaml "go.yaml.in/yaml/v3"

	logx "discordmessenger/pkg/logx"
)

var ErrAccountNotFound = errors.New("account not found")

// snapshotFile is the on-disk layout read by FileAccount. JSON files parse
// too since JSON is valid YAML.
type snapshotFile struct {
	Accounts []struct {
		Name      string     `yaml:"name"`
		Positions []Position `yaml:"positions"`
		Orders    []Order    `yaml:"orders"`
	} `yaml:"accounts"`
}

// FileAccount serves an account from a snapshot file exported by the trading
// platform. Every change to the file counts as one order-update notification.
type FileAccount struct {
	*StaticAccount

	path   string
	log    logx.Logger
	settle time.Duration
}

// OpenFileAccount loads the named account from path. It fails with
// ErrAccountNotFound when the file has no account by that name.
func OpenFileAccount(path, name string, log logx.Logger) (*FileAccount, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &FileAccount{
		StaticAccount: NewStaticAccount(name),
		path:          path,
		log:           log,
		settle:        100 * time.Millisecond,
	}
	if err := a.Reload(); err != nil {
		return nil, err
	}
	return a, nil
}

// Reload re-reads the snapshot file.
func (a *FileAccount) Reload() error {
	b, err := os.ReadFile(a.path)
	if err != nil {
		return fmt.Errorf("read account snapshot: %w", err)
	}
	var f snapshotFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("parse account snapshot %s: %w", a.path, err)
	}
	for _, acc := range f.Accounts {
		if acc.Name == a.Name() {
			a.Set(acc.Positions, acc.Orders)
			return nil
		}
	}
	return fmt.Errorf("%w: %q in %s", ErrAccountNotFound, a.Name(), a.path)
}

// Watch reloads the snapshot whenever the file changes and then calls
// onChange. Bursts of writes within the settle window collapse into one
// reload. It blocks until ctx is canceled.
func (a *FileAccount) Watch(ctx context.Context, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("account watch init: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(a.path)
	file := filepath.Base(a.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("account watch add %s: %w", dir, err)
	}

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()
	schedule := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(a.settle, func() {
			if ctx.Err() != nil {
				return
			}
			if err := a.Reload(); err != nil {
				a.log.Warn("account snapshot reload failed", logx.String("path", a.path), logx.Err(err))
				return
			}
			a.log.Debug("account snapshot reloaded", logx.String("path", a.path))
			if onChange != nil {
				onChange()
			}
		})
	}

	a.log.Debug("account watcher started", logx.String("dir", dir), logx.String("file", file))
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("account watcher closed")
			}
			if strings.EqualFold(filepath.Base(ev.Name), file) &&
				ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				schedule()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("account watcher closed")
			}
			if err != nil {
				a.log.Warn("account watch error", logx.Err(err))
			}
		}
	}
}
