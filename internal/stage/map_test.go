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

func TestMapSubstitutesOnlyGivenPositions(t *testing.T) {
	built, err := NewMapConstructor()(plan.Spec{Options: map[string][]string{
		"o": {`"replaced"`},
	}})
	require.NoError(t, err)
	m := built.(*Map)

	in := stream.FromSlice([]term.Quad{quad("http://ex/a", "http://ex/p", "http://ex/b")}, stream.Header{})
	out := m.Wrap(context.Background(), in)
	quads, err := stream.Collect(out)
	require.NoError(t, err)
	require.Len(t, quads, 1)
	assert.Equal(t, "http://ex/a", quads[0].Subject.Value())
	assert.True(t, quads[0].Object.IsLiteral())
	assert.Equal(t, "replaced", quads[0].Object.Value())
}

func TestMapUnboundSubstitutionFails(t *testing.T) {
	built, err := NewMapConstructor()(plan.Spec{Options: map[string][]string{
		"s": {"?g"},
	}})
	require.NoError(t, err)
	m := built.(*Map)

	in := stream.FromSlice([]term.Quad{quad("http://ex/a", "http://ex/p", "http://ex/b")}, stream.Header{})
	out := m.Wrap(context.Background(), in)
	_, err = stream.Collect(out)
	require.Error(t, err)
	var exprErr *ExpressionError
	assert.ErrorAs(t, err, &exprErr)
}

func TestMapMarksGeneralizedOnLiteralSubject(t *testing.T) {
	built, err := NewMapConstructor()(plan.Spec{Options: map[string][]string{
		"s": {`"literal-subject"`},
	}})
	require.NoError(t, err)
	m := built.(*Map)

	in := stream.FromSlice([]term.Quad{quad("http://ex/a", "http://ex/p", "http://ex/b")}, stream.Header{})
	out := m.Wrap(context.Background(), in)
	_, err = stream.Collect(out)
	require.NoError(t, err)
	assert.True(t, out.Header().Generalized)
}
