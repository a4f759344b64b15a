// Package stream defines the lazy, single-pass quad stream that every
// pipeline stage consumes and produces.
package stream

import (
	"errors"

	"github.com/jmylchreest/sop/internal/term"
)

// ErrConsumed is returned by Next once a stream has already reached EOF
// or an error and is pulled again. Streams are single-pass: nothing
// downstream may call Next a second time after a terminal result.
var ErrConsumed = errors.New("stream: already consumed")

// Header carries the metadata a stream exposes about itself: whether it
// may contain generalized quads, the prefix map accumulated so far, and
// the base IRI in effect. Per the contract, a stage may only trust a
// Header snapshot once it has observed the first quad (or EOF) from
// Next, since some producers discover prefixes mid-parse.
type Header struct {
	Generalized bool
	Prefixes    map[string]string
	Base        string
}

// clone returns a defensive copy so callers can't mutate a producer's
// internal prefix map through a returned Header.
func (h Header) clone() Header {
	out := Header{Generalized: h.Generalized, Base: h.Base}
	if h.Prefixes != nil {
		out.Prefixes = make(map[string]string, len(h.Prefixes))
		for k, v := range h.Prefixes {
			out.Prefixes[k] = v
		}
	}
	return out
}

// Result is what Next returns for a single pull: either a quad, end of
// stream, or a fatal error. Exactly one of (Quad set, Eof, Err set) holds.
type Result struct {
	Quad term.Quad
	Eof  bool
	Err  error
}

// Stream is a lazy, forward-only, fallible sequence of quads. Next may
// block on I/O; callers must not invoke it concurrently, and must stop
// calling it once a Result with Eof or Err is returned.
type Stream interface {
	// Next pulls the next quad, or signals EOF/error.
	Next() Result

	// Header returns the stream's current header snapshot. Its value is
	// only guaranteed stable after the first Next() call returns.
	Header() Header

	// Close releases any resources (open files, HTTP bodies) held by the
	// stream. It is safe to call Close more than once.
	Close() error
}

// nopCloser implements a no-op Close for in-memory streams.
type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// sliceStream replays a fixed slice of quads; used by tests and by
// stages that buffer a whole result before emitting it (query, and
// parse for JSON-LD sources).
type sliceStream struct {
	nopCloser
	quads  []term.Quad
	pos    int
	header Header
	done   bool
}

// FromSlice builds a Stream that replays quads in order under header h.
func FromSlice(quads []term.Quad, h Header) Stream {
	return &sliceStream{quads: quads, header: h.clone()}
}

func (s *sliceStream) Next() Result {
	if s.done {
		return Result{Err: ErrConsumed}
	}
	if s.pos >= len(s.quads) {
		s.done = true
		return Result{Eof: true}
	}
	q := s.quads[s.pos]
	s.pos++
	return Result{Quad: q}
}

func (s *sliceStream) Header() Header { return s.header }

// errStream immediately yields a single error, then ErrConsumed on any
// further pull.
// Used by stages that fail during setup (e.g. a bad --format flag) but
// must still return a Stream to satisfy the pipeline's shape.
type errStream struct {
	nopCloser
	err  error
	done bool
}

// FromError builds a Stream whose first and only Next() returns err.
func FromError(err error) Stream {
	return &errStream{err: err}
}

func (s *errStream) Next() Result {
	if s.done {
		return Result{Err: ErrConsumed}
	}
	s.done = true
	return Result{Err: s.err}
}

func (s *errStream) Header() Header { return Header{} }

// Concat chains streams in order: all quads of streams[0], then
// streams[1], and so on, presenting a single merged Header. Prefixes
// from later streams extend (never overwrite, per 3.E source ordering)
// the accumulated map; Generalized is the logical OR of all sources;
// Base is the first non-empty base IRI encountered. Used by the parse
// stage when a glob expands to more than one input file.
func Concat(streams []Stream) Stream {
	if len(streams) == 0 {
		return FromSlice(nil, Header{})
	}
	if len(streams) == 1 {
		return streams[0]
	}
	return &concatStream{streams: streams}
}

type concatStream struct {
	streams []Stream
	idx     int
	merged  Header
	seen    bool
}

func (c *concatStream) Next() Result {
	for c.idx < len(c.streams) {
		res := c.streams[c.idx].Next()
		if res.Err != nil {
			return res
		}
		if res.Eof {
			c.idx++
			continue
		}
		c.mergeHeader(c.streams[c.idx].Header())
		return res
	}
	return Result{Eof: true}
}

func (c *concatStream) mergeHeader(h Header) {
	if !c.seen {
		c.merged = Header{Prefixes: make(map[string]string)}
		c.seen = true
	}
	c.merged.Generalized = c.merged.Generalized || h.Generalized
	if c.merged.Base == "" {
		c.merged.Base = h.Base
	}
	for k, v := range h.Prefixes {
		if _, exists := c.merged.Prefixes[k]; !exists {
			c.merged.Prefixes[k] = v
		}
	}
}

func (c *concatStream) Header() Header { return c.merged.clone() }

func (c *concatStream) Close() error {
	var firstErr error
	for _, s := range c.streams {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Drain pulls every remaining quad from s, discarding them, and returns
// the first error encountered (nil on a clean EOF). Used by the null
// sink and by stages that must exhaust an upstream after detecting a
// fatal condition of their own.
func Drain(s Stream) error {
	for {
		res := s.Next()
		if res.Err != nil {
			return res.Err
		}
		if res.Eof {
			return nil
		}
	}
}

// Collect pulls every remaining quad from s into a slice. Used by
// whole-dataset sinks (canonicalize) that cannot operate incrementally.
func Collect(s Stream) ([]term.Quad, error) {
	var out []term.Quad
	for {
		res := s.Next()
		if res.Err != nil {
			return out, res.Err
		}
		if res.Eof {
			return out, nil
		}
		out = append(out, res.Quad)
	}
}
