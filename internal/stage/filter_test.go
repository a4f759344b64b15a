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

func quad(s, p, o string) term.Quad {
	return term.Quad{Subject: term.IRI(s), Predicate: term.IRI(p), Object: term.IRI(o), Graph: term.DefaultGraph()}
}

func TestFilterKeepsMatching(t *testing.T) {
	built, err := NewFilterConstructor()(plan.Spec{Positional: []string{"?p = <http://ex/knows>"}})
	require.NoError(t, err)
	f := built.(*Filter)

	in := stream.FromSlice([]term.Quad{
		quad("http://ex/a", "http://ex/knows", "http://ex/b"),
		quad("http://ex/a", "http://ex/likes", "http://ex/c"),
	}, stream.Header{})

	out := f.Wrap(context.Background(), in)
	quads, err := stream.Collect(out)
	require.NoError(t, err)
	require.Len(t, quads, 1)
	assert.Equal(t, "http://ex/knows", quads[0].Predicate.Value())
}

func TestFilterRequiresOneArg(t *testing.T) {
	_, err := NewFilterConstructor()(plan.Spec{Positional: []string{}})
	assert.Error(t, err)
	_, err = NewFilterConstructor()(plan.Spec{Positional: []string{"a", "b"}})
	assert.Error(t, err)
}

func TestFilterBadExpressionIsExpressionError(t *testing.T) {
	_, err := NewFilterConstructor()(plan.Spec{Positional: []string{"?p ="}})
	require.Error(t, err)
	var exprErr *ExpressionError
	assert.ErrorAs(t, err, &exprErr)
}
