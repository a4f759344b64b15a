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

func TestAbsolutizeResolvesRelativeIRIs(t *testing.T) {
	built, err := NewAbsolutizeConstructor()(plan.Spec{Options: map[string][]string{"base": {"http://ex/a/b/"}}})
	require.NoError(t, err)
	a := built.(*Absolutize)

	in := stream.FromSlice([]term.Quad{quad("c", "http://ex/p", "../other")}, stream.Header{})
	out := a.Wrap(context.Background(), in)
	quads, err := stream.Collect(out)
	require.NoError(t, err)
	require.Len(t, quads, 1)
	assert.Equal(t, "http://ex/a/b/c", quads[0].Subject.Value())
	assert.Equal(t, "http://ex/a/other", quads[0].Object.Value())
}

func TestAbsolutizeRequiresBase(t *testing.T) {
	_, err := NewAbsolutizeConstructor()(plan.Spec{})
	assert.Error(t, err)
}
