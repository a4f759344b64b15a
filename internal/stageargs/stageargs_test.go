package stageargs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResolvesAliasToCanonicalKind(t *testing.T) {
	spec, err := Parse([]string{"s", "-f", "turtle"})
	require.NoError(t, err)
	assert.Equal(t, "serialize", spec.Kind)
	f, ok := spec.Option("format")
	assert.True(t, ok)
	assert.Equal(t, "turtle", f)
}

func TestParseUnknownStageIsUsageError(t *testing.T) {
	_, err := Parse([]string{"bogus"})
	assert.Error(t, err)
}

func TestParseEmptyShardIsUsageError(t *testing.T) {
	_, err := Parse(nil)
	assert.Error(t, err)
}

func TestParseParseStageExtractsSentinelGlobsAndPositionals(t *testing.T) {
	spec, err := Parse([]string{"parse", "-m", "*.ttl", "*.nt", "m-", "extra.ttl", "-f", "turtle"})
	require.NoError(t, err)
	assert.Equal(t, "parse", spec.Kind)
	assert.Equal(t, []string{"*.ttl", "*.nt"}, spec.OptionValues("m"))
	assert.Equal(t, []string{"extra.ttl"}, spec.Positional)
	f, _ := spec.Option("format")
	assert.Equal(t, "turtle", f)
}

func TestParseParseStageWithoutSentinelHasNoMOption(t *testing.T) {
	spec, err := Parse([]string{"parse", "data.ttl"})
	require.NoError(t, err)
	assert.Nil(t, spec.OptionValues("m"))
	assert.Equal(t, []string{"data.ttl"}, spec.Positional)
}

func TestParseMapStagePositionalFlags(t *testing.T) {
	spec, err := Parse([]string{"ma", "-o", `"replaced"`})
	require.NoError(t, err)
	assert.Equal(t, "map", spec.Kind)
	o, ok := spec.Option("o")
	assert.True(t, ok)
	assert.Equal(t, `"replaced"`, o)
	_, ok = spec.Option("s")
	assert.False(t, ok)
}

func TestParseMergeBoolFlag(t *testing.T) {
	spec, err := Parse([]string{"me", "--drop"})
	require.NoError(t, err)
	assert.Equal(t, "merge", spec.Kind)
	_, ok := spec.Option("drop")
	assert.True(t, ok)
}

func TestParseMergeWithoutDropFlagUnset(t *testing.T) {
	spec, err := Parse([]string{"me"})
	require.NoError(t, err)
	_, ok := spec.Option("drop")
	assert.False(t, ok)
}

func TestParseUnknownFlagForStageIsUsageError(t *testing.T) {
	_, err := Parse([]string{"filter", "--nope", "x"})
	assert.Error(t, err)
}

func TestParseQueryStageKeepsPositionalQueryString(t *testing.T) {
	spec, err := Parse([]string{"q", "ASK { ?s ?p ?o }"})
	require.NoError(t, err)
	assert.Equal(t, "query", spec.Kind)
	assert.Equal(t, []string{"ASK { ?s ?p ?o }"}, spec.Positional)
}

func TestParseCanonicalizeAliasC14n(t *testing.T) {
	spec, err := Parse([]string{"c14n", "-o", "out.nq"})
	require.NoError(t, err)
	assert.Equal(t, "canonicalize", spec.Kind)
	o, _ := spec.Option("output")
	assert.Equal(t, "out.nq", o)
}

func TestParseNullAliasZ(t *testing.T) {
	spec, err := Parse([]string{"Z"})
	require.NoError(t, err)
	assert.Equal(t, "null", spec.Kind)
}
