package stage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/sop/internal/plan"
	"github.com/jmylchreest/sop/internal/stream"
	"github.com/jmylchreest/sop/internal/term"
)

func namedQuad(s, p, o, g string) term.Quad {
	return term.Quad{Subject: term.IRI(s), Predicate: term.IRI(p), Object: term.IRI(o), Graph: term.IRI(g)}
}

func TestMergeWithoutDropEmitsBoth(t *testing.T) {
	built, err := NewMergeConstructor()(plan.Spec{})
	require.NoError(t, err)
	m := built.(*Merge)

	in := stream.FromSlice([]term.Quad{namedQuad("http://ex/a", "http://ex/p", "http://ex/b", "http://ex/g")}, stream.Header{})
	out := m.Wrap(context.Background(), in)
	quads, err := stream.Collect(out)
	require.NoError(t, err)
	require.Len(t, quads, 2)
	assert.Equal(t, "http://ex/g", quads[0].Graph.Value())
	assert.True(t, quads[1].Graph.IsDefaultGraph())
}

func TestMergeWithDropEmitsOnlyRewritten(t *testing.T) {
	built, err := NewMergeConstructor()(plan.Spec{Options: map[string][]string{"drop": {""}}})
	require.NoError(t, err)
	m := built.(*Merge)

	in := stream.FromSlice([]term.Quad{namedQuad("http://ex/a", "http://ex/p", "http://ex/b", "http://ex/g")}, stream.Header{})
	out := m.Wrap(context.Background(), in)
	quads, err := stream.Collect(out)
	require.NoError(t, err)
	require.Len(t, quads, 1)
	assert.True(t, quads[0].Graph.IsDefaultGraph())
}
