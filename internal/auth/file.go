// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jeranaias/sagechat-tui/internal/util"
)

// =============================================================================
// FILE TOKEN
// =============================================================================

// FileToken serves the token stored in a file and keeps its cached copy in
// sync with the file through an fsnotify watcher, so `sagechat login` and
// `sagechat logout` in another terminal take effect immediately.
type FileToken struct {
	path string
	log  logrus.FieldLogger

	mu    sync.RWMutex
	token string

	watcher *fsnotify.Watcher
	changed chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewFileToken reads path once. A missing file is not an error.
func NewFileToken(path string, log logrus.FieldLogger) (*FileToken, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	ft := &FileToken{
		path:    path,
		log:     log,
		changed: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	if err := ft.reload(); err != nil {
		return nil, err
	}
	return ft, nil
}

// Token implements TokenSource.
func (ft *FileToken) Token() (string, bool) {
	ft.mu.RLock()
	tok := ft.token
	ft.mu.RUnlock()
	if tok == "" || Expired(tok, time.Now()) {
		return "", false
	}
	return tok, true
}

// Path returns the watched file path.
func (ft *FileToken) Path() string {
	return ft.path
}

// Changed delivers a signal after the cached token changed. Signals
// coalesce; readers should re-query Token.
func (ft *FileToken) Changed() <-chan struct{} {
	return ft.changed
}

// Watch starts following the file. The parent directory is watched rather
// than the file itself so atomic replace-by-rename is observed.
func (ft *FileToken) Watch() error {
	dir := filepath.Dir(ft.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.Wrap(err, "create token directory")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return errors.Wrapf(err, "watch %s", dir)
	}
	ft.watcher = w
	go ft.processEvents()
	return nil
}

// Close stops watching.
func (ft *FileToken) Close() error {
	var err error
	ft.once.Do(func() {
		close(ft.done)
		if ft.watcher != nil {
			err = ft.watcher.Close()
		}
	})
	return err
}

func (ft *FileToken) processEvents() {
	target := filepath.Clean(ft.path)
	for {
		select {
		case <-ft.done:
			return

		case event, ok := <-ft.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := ft.reload(); err != nil {
				ft.log.WithError(err).Warn("token file reload failed")
			}

		case err, ok := <-ft.watcher.Errors:
			if !ok {
				return
			}
			ft.log.WithError(err).Warn("token watcher error")
		}
	}
}

func (ft *FileToken) reload() error {
	data, err := os.ReadFile(ft.path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "read token file %s", ft.path)
	}
	tok := strings.TrimSpace(string(data))

	ft.mu.Lock()
	prev := ft.token
	ft.token = tok
	ft.mu.Unlock()

	if prev != tok {
		ft.log.WithField("present", tok != "").Debug("token file changed")
		select {
		case ft.changed <- struct{}{}:
		default:
		}
	}
	return nil
}

// SaveToken writes token to path with owner-only permissions.
func SaveToken(path, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("empty token")
	}
	return util.WriteFileAtomic(path, []byte(token+"\n"), 0600)
}

// ClearToken removes the token file. A missing file is not an error.
func ClearToken(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove token file")
	}
	return nil
}
