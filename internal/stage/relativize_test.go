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

func TestRelativizeRewritesUnderBase(t *testing.T) {
	built, err := NewRelativizeConstructor()(plan.Spec{Options: map[string][]string{"base": {"http://ex/a/b/"}}})
	require.NoError(t, err)
	r := built.(*Relativize)

	in := stream.FromSlice([]term.Quad{quad("http://ex/a/b/c", "http://ex/p", "http://ex/a/other")}, stream.Header{})
	out := r.Wrap(context.Background(), in)
	quads, err := stream.Collect(out)
	require.NoError(t, err)
	require.Len(t, quads, 1)
	assert.Equal(t, "c", quads[0].Subject.Value())
	assert.Equal(t, "../other", quads[0].Object.Value())
	assert.Equal(t, "/p", quads[0].Predicate.Value())
}

func TestRelativizeLeavesUnrelatedAuthorityUnchanged(t *testing.T) {
	built, err := NewRelativizeConstructor()(plan.Spec{Options: map[string][]string{"base": {"http://ex/a/"}}})
	require.NoError(t, err)
	r := built.(*Relativize)

	in := stream.FromSlice([]term.Quad{quad("http://other/x", "http://ex/p", "http://ex/a/y")}, stream.Header{})
	out := r.Wrap(context.Background(), in)
	quads, err := stream.Collect(out)
	require.NoError(t, err)
	require.Len(t, quads, 1)
	assert.Equal(t, "http://other/x", quads[0].Subject.Value())
}

func TestRelativizeRequiresBase(t *testing.T) {
	_, err := NewRelativizeConstructor()(plan.Spec{})
	assert.Error(t, err)
}
