package plan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/sop/internal/registry"
	"github.com/jmylchreest/sop/internal/stream"
	"github.com/jmylchreest/sop/internal/term"
)

// fakeProducer/fakeTransformer/fakeSink are minimal Built implementations
// standing in for real stage.* types, so plan's type-checking and
// execution logic can be tested without pulling in the stage package
// (which itself depends on plan).

type fakeProducer struct{ quads []term.Quad }

func (f *fakeProducer) Name() string        { return "parse" }
func (f *fakeProducer) Role() registry.Role { return registry.RoleProducer }
func (f *fakeProducer) Produce(ctx context.Context) stream.Stream {
	return stream.FromSlice(f.quads, stream.Header{})
}

type fakeTransformer struct{ tag string }

func (f *fakeTransformer) Name() string        { return "filter" }
func (f *fakeTransformer) Role() registry.Role { return registry.RoleTransformer }
func (f *fakeTransformer) Wrap(ctx context.Context, upstream stream.Stream) stream.Stream {
	return upstream
}

type fakeSink struct{ drained int }

func (f *fakeSink) Name() string        { return "null" }
func (f *fakeSink) Role() registry.Role { return registry.RoleSink }
func (f *fakeSink) Drain(ctx context.Context, upstream stream.Stream) error {
	quads, err := stream.Collect(upstream)
	f.drained = len(quads)
	return err
}

func fakeConstructors() (map[string]Constructor, *fakeSink) {
	sink := &fakeSink{}
	return map[string]Constructor{
		"parse":     func(s Spec) (Built, error) { return &fakeProducer{}, nil },
		"filter":    func(s Spec) (Built, error) { return &fakeTransformer{}, nil },
		"null":      func(s Spec) (Built, error) { return sink, nil },
		"serialize": func(s Spec) (Built, error) { return &fakeTransformer{}, nil },
	}, sink
}

func TestCompileRejectsEmptyPipeline(t *testing.T) {
	ctors, _ := fakeConstructors()
	_, err := Compile(nil, ctors, "turtle")
	require.Error(t, err)
	var uerr *UsageError
	assert.ErrorAs(t, err, &uerr)
}

func TestCompileRejectsNonProducerFirstStage(t *testing.T) {
	ctors, _ := fakeConstructors()
	_, err := Compile([]Spec{{Kind: "filter"}}, ctors, "turtle")
	require.Error(t, err)
}

func TestCompileRejectsSinkMidPipeline(t *testing.T) {
	ctors, _ := fakeConstructors()
	_, err := Compile([]Spec{{Kind: "null"}, {Kind: "parse"}}, ctors, "turtle")
	require.Error(t, err)
}

func TestCompileAppendsImplicitDefaultSerializerAfterOpenTransformer(t *testing.T) {
	ctors, _ := fakeConstructors()
	p, err := Compile([]Spec{{Kind: "parse"}, {Kind: "filter"}}, ctors, "turtle")
	require.NoError(t, err)
	assert.Len(t, p.stages, 3)
	assert.Equal(t, "serialize", p.stages[2].Name())
}

func TestCompileProducerAloneGetsImplicitSerializer(t *testing.T) {
	// A lone producer has no sink and no transformer; it still gets the
	// implicit default serializer since a bare producer isn't a Sink.
	ctors, _ := fakeConstructors()
	p, err := Compile([]Spec{{Kind: "parse"}}, ctors, "turtle")
	require.NoError(t, err)
	assert.Len(t, p.stages, 2)
}

func TestCompileEndingOnSinkAddsNoImplicitSerializer(t *testing.T) {
	ctors, _ := fakeConstructors()
	p, err := Compile([]Spec{{Kind: "parse"}, {Kind: "null"}}, ctors, "turtle")
	require.NoError(t, err)
	assert.Len(t, p.stages, 2)
}

func TestRunDrivesProducerThroughTransformersToSink(t *testing.T) {
	ctors, sink := fakeConstructors()
	p, err := Compile([]Spec{{Kind: "parse"}, {Kind: "filter"}, {Kind: "null"}}, ctors, "turtle")
	require.NoError(t, err)

	p.stages[0] = &fakeProducer{quads: []term.Quad{
		{Subject: term.IRI("http://ex/a"), Predicate: term.IRI("http://ex/p"), Object: term.IRI("http://ex/b"), Graph: term.DefaultGraph()},
	}}

	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, 1, sink.drained)
}
