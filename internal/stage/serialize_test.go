package stage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/sop/internal/plan"
	"github.com/jmylchreest/sop/internal/stream"
	"github.com/jmylchreest/sop/internal/term"
)

func serializeSpec(t *testing.T, opts map[string][]string) plan.Spec {
	t.Helper()
	if opts == nil {
		opts = map[string][]string{}
	}
	opts["output"] = []string{filepath.Join(t.TempDir(), "out")}
	return plan.Spec{Options: opts}
}

func TestSerializeDefaultsToNQuadsForNamedGraph(t *testing.T) {
	built, err := NewSerializeConstructor()(serializeSpec(t, nil))
	require.NoError(t, err)
	s := built.(*Serialize)

	in := stream.FromSlice([]term.Quad{namedQuad("http://ex/a", "http://ex/p", "http://ex/b", "http://ex/g")}, stream.Header{})
	out := s.Wrap(context.Background(), in)

	res := out.Next()
	require.NoError(t, res.Err)
	assert.Equal(t, "http://ex/g", res.Quad.Graph.Value(), "serialize re-emits the original quad unchanged")

	ss := out.(*serializeStream)
	assert.Equal(t, "N-Quads", ss.fmt.String())

	res = out.Next()
	assert.True(t, res.Eof)
}

func TestSerializeDefaultsToTurtleForDefaultGraphOnly(t *testing.T) {
	built, err := NewSerializeConstructor()(serializeSpec(t, nil))
	require.NoError(t, err)
	s := built.(*Serialize)

	in := stream.FromSlice([]term.Quad{quad("http://ex/a", "http://ex/p", "http://ex/b")}, stream.Header{})
	out := s.Wrap(context.Background(), in)

	_ = out.Next()
	ss := out.(*serializeStream)
	assert.Equal(t, "Turtle", ss.fmt.String())
}

func TestSerializeExplicitFormatOverrides(t *testing.T) {
	built, err := NewSerializeConstructor()(serializeSpec(t, map[string][]string{"format": {"nt"}}))
	require.NoError(t, err)
	s := built.(*Serialize)

	in := stream.FromSlice([]term.Quad{quad("http://ex/a", "http://ex/p", "http://ex/b")}, stream.Header{})
	out := s.Wrap(context.Background(), in)
	_ = out.Next()
	ss := out.(*serializeStream)
	assert.Equal(t, "N-Triples", ss.fmt.String())
}

func TestSerializeRejectsGeneralizedPredicateIntoTurtle(t *testing.T) {
	built, err := NewSerializeConstructor()(serializeSpec(t, map[string][]string{"format": {"turtle"}}))
	require.NoError(t, err)
	s := built.(*Serialize)

	bad := term.Quad{Subject: term.IRI("http://ex/a"), Predicate: term.Blank("p"), Object: term.IRI("http://ex/b"), Graph: term.DefaultGraph()}
	in := stream.FromSlice([]term.Quad{bad}, stream.Header{Generalized: true})
	out := s.Wrap(context.Background(), in)

	res := out.Next()
	require.Error(t, res.Err)
	var serErr *SerializeError
	assert.ErrorAs(t, res.Err, &serErr)
}

func TestSerializeUnknownExplicitFormatIsUsageError(t *testing.T) {
	built, err := NewSerializeConstructor()(serializeSpec(t, map[string][]string{"format": {"not-a-format"}}))
	require.NoError(t, err)
	s := built.(*Serialize)

	in := stream.FromSlice([]term.Quad{quad("http://ex/a", "http://ex/p", "http://ex/b")}, stream.Header{})
	out := s.Wrap(context.Background(), in)
	res := out.Next()
	require.Error(t, res.Err)
}
