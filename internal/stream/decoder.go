// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes a streamed chat reply and extracts the trailing
// payload that carries the durable message identifiers.
package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/jeranaias/sagechat-tui/internal/model"
	"github.com/jeranaias/sagechat-tui/internal/util"
)

// =============================================================================
// STATE
// =============================================================================

// State is the decoder's position in the life of one reply.
type State int

const (
	// Streaming is the initial state: text is accumulating.
	Streaming State = iota
	// PayloadFound means a well-formed trailing payload was captured.
	PayloadFound
	// Done means the stream ended without a payload.
	Done
	// Errored means the read failed; partial text is kept.
	Errored
)

func (s State) String() string {
	switch s {
	case Streaming:
		return "streaming"
	case PayloadFound:
		return "payload_found"
	case Done:
		return "done"
	case Errored:
		return "errored"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further input will be accepted.
func (s State) Terminal() bool {
	return s != Streaming
}

// =============================================================================
// MARKER GRAMMAR
// =============================================================================

// markerPattern matches `<!-- PAYLOAD:{...} -->` and the server's
// `<!-- FINAL_PAYLOAD:{...} -->` spelling. The body is matched lazily so a
// marker ends at the first closing delimiter.
var markerPattern = regexp.MustCompile(`(?s)<!--\s*(?:FINAL_)?PAYLOAD:(.*?)\s*-->`)

// PayloadError describes a marker whose body could not be used. It is
// recovered locally and never shown to the user.
type PayloadError struct {
	Body string
	Err  error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("malformed stream payload %q: %v", util.TruncateRunes(e.Body, 80), e.Err)
}

func (e *PayloadError) Unwrap() error {
	return e.Err
}

// ParsePayload decodes a marker body. The body must be a JSON object
// carrying both message ids.
func ParsePayload(body string) (model.StreamPayload, error) {
	var p model.StreamPayload
	dec := json.NewDecoder(strings.NewReader(body))
	if err := dec.Decode(&p); err != nil {
		return model.StreamPayload{}, &PayloadError{Body: body, Err: err}
	}
	if dec.More() {
		return model.StreamPayload{}, &PayloadError{Body: body, Err: errors.New("trailing data after payload object")}
	}
	if !p.Valid() {
		return model.StreamPayload{}, &PayloadError{Body: body, Err: errors.New("payload is missing userMessageId or aiMessageId")}
	}
	return p, nil
}

// =============================================================================
// DECODER
// =============================================================================

// Decoder is the push side of the reply state machine. Feed it chunks in
// arrival order; after each call Text holds the full display text, which
// callers re-render by replacement rather than appending.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	state State

	utf8    transform.Transformer
	pending []byte // incomplete UTF-8 sequence carried to the next chunk

	buf      strings.Builder
	text     string
	scanFrom int // first byte offset not yet rejected as a marker start
	payload  *model.StreamPayload

	onPayloadError func(error)
}

// NewDecoder creates a decoder in the Streaming state. onPayloadError, if
// non-nil, is called for every rejected marker.
func NewDecoder(onPayloadError func(error)) *Decoder {
	return &Decoder{
		state:          Streaming,
		utf8:           unicode.UTF8.NewDecoder(),
		onPayloadError: onPayloadError,
	}
}

// State returns the current state.
func (d *Decoder) State() State {
	return d.state
}

// Text returns the current display text.
func (d *Decoder) Text() string {
	return d.text
}

// Payload returns the captured payload, or nil.
func (d *Decoder) Payload() *model.StreamPayload {
	return d.payload
}

// Feed appends a chunk and re-evaluates the buffer. It returns true once a
// payload has been captured; the caller must stop reading at that point.
// Chunks written after a terminal state are ignored.
func (d *Decoder) Feed(chunk []byte) bool {
	if d.state.Terminal() {
		return d.state == PayloadFound
	}
	d.buf.WriteString(d.decode(chunk, false))
	d.scan()
	return d.state == PayloadFound
}

// Finish marks end of stream. A trailing incomplete rune is flushed as a
// replacement character. Without a payload the decoder moves to Done.
func (d *Decoder) Finish() {
	if d.state.Terminal() {
		return
	}
	if len(d.pending) > 0 {
		d.buf.WriteString(d.decode(nil, true))
		d.scan()
		if d.state.Terminal() {
			return
		}
	}
	d.state = Done
}

// Fail moves the decoder to Errored. The text accumulated so far is kept.
func (d *Decoder) Fail() {
	if d.state.Terminal() {
		return
	}
	d.state = Errored
}

func (d *Decoder) scan() {
	buffered := d.buf.String()
	for {
		loc := markerPattern.FindStringSubmatchIndex(buffered[d.scanFrom:])
		if loc == nil {
			d.text = buffered
			return
		}
		start := d.scanFrom + loc[0]
		body := buffered[d.scanFrom+loc[2] : d.scanFrom+loc[3]]

		p, err := ParsePayload(body)
		if err != nil {
			if d.onPayloadError != nil {
				d.onPayloadError(err)
			}
			// Rejected markers stay in the text; resume after this one.
			d.scanFrom += loc[1]
			continue
		}

		d.text = strings.TrimRightFunc(buffered[:start], isSpace)
		d.payload = &p
		d.state = PayloadFound
		return
	}
}

// decode runs bytes through the UTF-8 transformer. Bytes of a rune split
// across chunks are held until the rest arrives.
func (d *Decoder) decode(chunk []byte, atEOF bool) string {
	src := append(d.pending, chunk...)
	var out bytes.Buffer
	dst := make([]byte, 3*len(src)+utf8Slack)
	for {
		nDst, nSrc, err := d.utf8.Transform(dst, src, atEOF)
		out.Write(dst[:nDst])
		src = src[nSrc:]
		if err == transform.ErrShortDst {
			continue
		}
		break
	}
	d.pending = bytes.Clone(src)
	return out.String()
}

const utf8Slack = 16

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\r' || r == '\t'
}
