// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jeranaias/sagechat-tui/internal/model"
)

// DefaultChunkSize is the read buffer size for reply bodies.
const DefaultChunkSize = 4 * 1024

// ErrIdleTimeout is reported when a reply produced no bytes for longer than
// the configured idle timeout.
var ErrIdleTimeout = errors.New("stream idle timeout")

// Error wraps a read failure, preserving the text decoded before it.
type Error struct {
	Partial string
	Err     error
}

func (e *Error) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Options configures Read.
type Options struct {
	// IdleTimeout closes the body when no bytes arrive for this long.
	// Zero disables the watchdog.
	IdleTimeout time.Duration
	// ChunkSize overrides DefaultChunkSize.
	ChunkSize int
	// Log receives rejected payload markers at warn level.
	Log logrus.FieldLogger
	// OnPayloadError is called for each rejected marker, after logging.
	OnPayloadError func(error)
}

// Result is the terminal outcome of a reply.
type Result struct {
	State   State
	Text    string
	Payload *model.StreamPayload
	Bytes   int
}

// Read consumes body until a payload is found, the stream ends or a read
// fails. onText receives the full display text after every chunk that
// changed it. The body is always closed before Read returns, including on
// the early stop after a payload.
//
// Cancelling ctx or hitting the idle timeout closes the body to unblock the
// pending read; the returned error is then an *Error wrapping ctx.Err() or
// ErrIdleTimeout.
func Read(ctx context.Context, body io.ReadCloser, onText func(string), opts Options) (Result, error) {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	size := opts.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}

	closer := &onceCloser{rc: body}
	defer closer.Close()

	stopCtx := context.AfterFunc(ctx, func() { closer.Close() })
	defer stopCtx()

	var idled atomic.Bool
	var watchdog *time.Timer
	if opts.IdleTimeout > 0 {
		watchdog = time.AfterFunc(opts.IdleTimeout, func() {
			idled.Store(true)
			closer.Close()
		})
		defer watchdog.Stop()
	}

	dec := NewDecoder(func(err error) {
		log.WithError(err).Warn("ignoring malformed stream payload")
		if opts.OnPayloadError != nil {
			opts.OnPayloadError(err)
		}
	})

	var (
		res  Result
		last string
		buf  = make([]byte, size)
	)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			res.Bytes += n
			if watchdog != nil {
				watchdog.Reset(opts.IdleTimeout)
			}
			found := dec.Feed(buf[:n])
			if text := dec.Text(); text != last && onText != nil {
				onText(text)
				last = text
			}
			if found {
				break
			}
		}
		if readErr == io.EOF {
			dec.Finish()
			if text := dec.Text(); text != last && onText != nil {
				onText(text)
			}
			break
		}
		if readErr != nil {
			dec.Fail()
			res.State, res.Text = dec.State(), dec.Text()
			cause := readErr
			switch {
			case idled.Load():
				cause = ErrIdleTimeout
			case ctx.Err() != nil:
				cause = ctx.Err()
			}
			return res, &Error{Partial: res.Text, Err: cause}
		}
	}

	res.State = dec.State()
	res.Text = dec.Text()
	res.Payload = dec.Payload()
	return res, nil
}

type onceCloser struct {
	once sync.Once
	rc   io.Closer
	err  error
}

func (c *onceCloser) Close() error {
	c.once.Do(func() { c.err = c.rc.Close() })
	return c.err
}
