package argv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitPipelineSingleStage(t *testing.T) {
	shards, err := SplitPipeline([]string{"parse", "a.ttl"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"parse", "a.ttl"}}, shards)
}

func TestSplitPipelineMultipleStages(t *testing.T) {
	shards, err := SplitPipeline([]string{"parse", "a.ttl", "!", "filter", "?p", "!", "serialize"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"parse", "a.ttl"}, {"filter", "?p"}, {"serialize"}}, shards)
}

func TestSplitPipelineEmptyIsUsageError(t *testing.T) {
	_, err := SplitPipeline(nil)
	assert.Error(t, err)
}

func TestSplitPipelineLeadingBangIsUsageError(t *testing.T) {
	_, err := SplitPipeline([]string{"!", "parse", "a.ttl"})
	assert.Error(t, err)
}

func TestSplitPipelineTrailingBangIsUsageError(t *testing.T) {
	_, err := SplitPipeline([]string{"parse", "a.ttl", "!"})
	assert.Error(t, err)
}

func TestSplitPipelineDoubledBangIsUsageError(t *testing.T) {
	_, err := SplitPipeline([]string{"parse", "!", "!", "serialize"})
	assert.Error(t, err)
}

func TestExtractSentinelSingleSpan(t *testing.T) {
	values, rest, err := ExtractSentinel([]string{"-m", "*.ttl", "*.nt", "m-", "-f", "turtle"}, "-m", "m-")
	require.NoError(t, err)
	assert.Equal(t, []string{"*.ttl", "*.nt"}, values)
	assert.Equal(t, []string{"-f", "turtle"}, rest)
}

func TestExtractSentinelEmptySpanAllowed(t *testing.T) {
	values, rest, err := ExtractSentinel([]string{"-m", "m-", "x.ttl"}, "-m", "m-")
	require.NoError(t, err)
	assert.Nil(t, values)
	assert.Equal(t, []string{"x.ttl"}, rest)
}

func TestExtractSentinelMissingTerminatorIsUsageError(t *testing.T) {
	_, _, err := ExtractSentinel([]string{"-m", "*.ttl"}, "-m", "m-")
	assert.Error(t, err)
}

func TestExtractSentinelConcatenatesMultipleOccurrencesInOrder(t *testing.T) {
	values, rest, err := ExtractSentinel(
		[]string{"-m", "a.ttl", "m-", "-f", "turtle", "-m", "b.ttl", "c.ttl", "m-"},
		"-m", "m-",
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.ttl", "b.ttl", "c.ttl"}, values)
	assert.Equal(t, []string{"-f", "turtle"}, rest)
}

func TestExtractSentinelAbsentFlagIsNoop(t *testing.T) {
	values, rest, err := ExtractSentinel([]string{"-f", "turtle"}, "-m", "m-")
	require.NoError(t, err)
	assert.Nil(t, values)
	assert.Equal(t, []string{"-f", "turtle"}, rest)
}
