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

func TestNullDrainsWithoutError(t *testing.T) {
	built, err := NewNullConstructor()(plan.Spec{})
	require.NoError(t, err)
	n := built.(*Null)

	in := stream.FromSlice([]term.Quad{quad("http://ex/a", "http://ex/p", "http://ex/b")}, stream.Header{})
	assert.NoError(t, n.Drain(context.Background(), in))
}

func TestNullPropagatesUpstreamError(t *testing.T) {
	built, err := NewNullConstructor()(plan.Spec{})
	require.NoError(t, err)
	n := built.(*Null)

	in := stream.FromError(assert.AnError)
	assert.Error(t, n.Drain(context.Background(), in))
}
