package stage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/sop/internal/plan"
	"github.com/jmylchreest/sop/internal/stream"
	"github.com/jmylchreest/sop/internal/term"
)

func blankQuad(s, p, o string) term.Quad {
	subj := term.IRI(s)
	if s[0] == '_' {
		subj = term.Blank(s[2:])
	}
	obj := term.IRI(o)
	if o[0] == '_' {
		obj = term.Blank(o[2:])
	}
	return term.Quad{Subject: subj, Predicate: term.IRI(p), Object: obj, Graph: term.DefaultGraph()}
}

func TestCanonicalBlankLabelsIndependentOfOriginalNames(t *testing.T) {
	a := []term.Quad{
		blankQuad("_:x", "http://ex/knows", "_:y"),
		blankQuad("_:y", "http://ex/knows", "_:x"),
	}
	b := []term.Quad{
		blankQuad("_:m", "http://ex/knows", "_:n"),
		blankQuad("_:n", "http://ex/knows", "_:m"),
	}

	labelsA := canonicalBlankLabels(a)
	labelsB := canonicalBlankLabels(b)

	// Isomorphic graphs get the same set of canonical label values,
	// regardless of the original blank node names used to reach them.
	valsA := map[string]bool{}
	for _, v := range labelsA {
		valsA[v] = true
	}
	valsB := map[string]bool{}
	for _, v := range labelsB {
		valsB[v] = true
	}
	assert.Equal(t, valsA, valsB)
}

func TestCanonicalBlankLabelsAreIdempotent(t *testing.T) {
	quads := []term.Quad{
		blankQuad("_:a", "http://ex/p", "http://ex/lit"),
		blankQuad("_:b", "http://ex/p", "_:a"),
	}
	first := canonicalBlankLabels(quads)
	second := canonicalBlankLabels(quads)
	assert.Equal(t, first, second)
}

func TestCanonicalBlankLabelsDistinguishAsymmetricRoles(t *testing.T) {
	// _:a is only ever a subject, _:b only ever an object: structurally
	// distinct, so they must not collapse to the same canonical label.
	quads := []term.Quad{
		blankQuad("_:a", "http://ex/p", "http://ex/lit1"),
		blankQuad("http://ex/other", "http://ex/p", "_:b"),
	}
	labels := canonicalBlankLabels(quads)
	require.Len(t, labels, 2)
	assert.NotEqual(t, labels["a"], labels["b"])
}

func TestCanonicalizeDrainWritesSortedNQuads(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "out.nq")
	built, err := NewCanonicalizeConstructor()(plan.Spec{Options: map[string][]string{"output": {outPath}}})
	require.NoError(t, err)
	c := built.(*Canonicalize)

	quads := []term.Quad{
		blankQuad("_:a", "http://ex/p", "http://ex/lit"),
	}
	in := stream.FromSlice(quads, stream.Header{})
	err = c.Drain(context.Background(), in)
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "c14n0")
	assert.Contains(t, string(data), "http://ex/p")
}

func TestCanonicalizePropagatesUpstreamError(t *testing.T) {
	built, err := NewCanonicalizeConstructor()(plan.Spec{Options: map[string][]string{"output": {filepath.Join(t.TempDir(), "out.nq")}}})
	require.NoError(t, err)
	c := built.(*Canonicalize)

	in := stream.FromError(assert.AnError)
	err = c.Drain(context.Background(), in)
	assert.Error(t, err)
}
