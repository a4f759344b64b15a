package stage

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/sop/internal/plan"
	"github.com/jmylchreest/sop/internal/registry"
	"github.com/jmylchreest/sop/internal/stream"
	"github.com/jmylchreest/sop/internal/term"
)

func queryFixture() []term.Quad {
	return []term.Quad{
		quad("http://ex/alice", "http://ex/knows", "http://ex/bob"),
		quad("http://ex/bob", "http://ex/knows", "http://ex/alice"),
	}
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	orig := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	fn()
	w.Close()
	os.Stdout = orig
	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)
	return buf.String()
}

func TestQueryASKMatchTrue(t *testing.T) {
	built, err := NewQueryConstructor()(plan.Spec{Positional: []string{`ASK { ?s <http://ex/knows> <http://ex/bob> }`}})
	require.NoError(t, err)
	q := built.(*Query)
	assert.Equal(t, "query", q.Name())

	in := stream.FromSlice(queryFixture(), stream.Header{})
	out := captureStdout(t, func() {
		require.NoError(t, q.Drain(context.Background(), in))
	})
	assert.Equal(t, "true\n", out)
}

func TestQueryASKNoMatchFalse(t *testing.T) {
	built, err := NewQueryConstructor()(plan.Spec{Positional: []string{`ASK { ?s <http://ex/knows> <http://ex/nobody> }`}})
	require.NoError(t, err)
	q := built.(*Query)

	in := stream.FromSlice(queryFixture(), stream.Header{})
	out := captureStdout(t, func() {
		require.NoError(t, q.Drain(context.Background(), in))
	})
	assert.Equal(t, "false\n", out)
}

func TestQuerySelectStarProducesHeaderAndRows(t *testing.T) {
	built, err := NewQueryConstructor()(plan.Spec{Positional: []string{`SELECT * WHERE { ?s ?p ?o }`}})
	require.NoError(t, err)
	q := built.(*Query)

	in := stream.FromSlice(queryFixture(), stream.Header{})
	out := captureStdout(t, func() {
		require.NoError(t, q.Drain(context.Background(), in))
	})
	assert.Contains(t, out, "?s\t?p\t?o")
	assert.Contains(t, out, "http://ex/alice")
}

func TestQuerySelectWithFilter(t *testing.T) {
	built, err := NewQueryConstructor()(plan.Spec{Positional: []string{`SELECT ?s WHERE { ?s ?p ?o FILTER(?o = <http://ex/bob>) }`}})
	require.NoError(t, err)
	q := built.(*Query)

	in := stream.FromSlice(queryFixture(), stream.Header{})
	out := captureStdout(t, func() {
		require.NoError(t, q.Drain(context.Background(), in))
	})
	assert.Contains(t, out, "http://ex/alice")
	assert.NotContains(t, out, "<http://ex/bob>")
}

func TestQueryConstructInheritsBaseAndRebuildsQuads(t *testing.T) {
	built, err := NewQueryConstructor()(plan.Spec{Positional: []string{
		`CONSTRUCT { ?o <http://ex/knownBy> ?s } WHERE { ?s <http://ex/knows> ?o }`,
	}})
	require.NoError(t, err)
	q := built.(*Query)
	assert.Equal(t, registry.RoleTransformer, q.Role())

	in := stream.FromSlice(queryFixture(), stream.Header{Base: "http://ex/base/"})
	out := q.Wrap(context.Background(), in)
	assert.Equal(t, "http://ex/base/", out.Header().Base)

	quads, err := stream.Collect(out)
	require.NoError(t, err)
	require.Len(t, quads, 2)
	assert.Equal(t, "http://ex/knownBy", quads[0].Predicate.Value())
}

func TestQueryDescribeMatchesSubjectTerm(t *testing.T) {
	built, err := NewQueryConstructor()(plan.Spec{Positional: []string{`DESCRIBE <http://ex/alice>`}})
	require.NoError(t, err)
	q := built.(*Query)

	in := stream.FromSlice(queryFixture(), stream.Header{})
	out := q.Wrap(context.Background(), in)
	quads, err := stream.Collect(out)
	require.NoError(t, err)
	require.Len(t, quads, 1)
	assert.Equal(t, "http://ex/alice", quads[0].Subject.Value())
}

func TestQueryRejectsMultiplePositionalArgs(t *testing.T) {
	_, err := NewQueryConstructor()(plan.Spec{Positional: []string{"ASK { ?s ?p ?o }", "extra"}})
	assert.Error(t, err)
}

func TestQueryRejectsMalformedQueryString(t *testing.T) {
	_, err := NewQueryConstructor()(plan.Spec{Positional: []string{"NOT A QUERY"}})
	require.Error(t, err)
	var qerr *QueryError
	assert.ErrorAs(t, err, &qerr)
}
