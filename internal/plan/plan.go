// Package plan type-checks an ordered list of stage specs into an
// executable pipeline and drives it to completion.
package plan

import (
	"context"
	"fmt"

	"github.com/jmylchreest/sop/internal/registry"
	"github.com/jmylchreest/sop/internal/stream"
)

// Spec is the immutable, parsed description of one pipeline stage,
// produced by the argv layer and consumed here and by stage
// constructors. Kind is always the canonical name (aliases already
// resolved).
type Spec struct {
	Kind       string
	Options    map[string][]string
	Positional []string
}

// Option returns the single value of a flag, or ("", false) if unset.
// Flags declared more than once keep only the last occurrence.
func (s Spec) Option(name string) (string, bool) {
	vals, ok := s.Options[name]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[len(vals)-1], true
}

// OptionValues returns every value given for a (possibly repeated or
// multi-valued) flag.
func (s Spec) OptionValues(name string) []string {
	return s.Options[name]
}

// Built is implemented by every constructed stage instance, regardless
// of which of Producer/Transformer/Sink it also satisfies.
type Built interface {
	// Name is the canonical stage name, used in error messages and logs.
	Name() string
	// Role reports the concrete role this instance plays. For most
	// stage kinds this matches the registry's static Role; "query"
	// resolves it dynamically from the parsed SPARQL form.
	Role() registry.Role
}

// Producer is a stage that only emits quads (parse).
type Producer interface {
	Built
	Produce(ctx context.Context) stream.Stream
}

// Transformer is a stage that wraps an upstream stream into a new one.
type Transformer interface {
	Built
	Wrap(ctx context.Context, upstream stream.Stream) stream.Stream
}

// Sink is a stage that only reads, returning an error (nil on success)
// once the upstream is exhausted.
type Sink interface {
	Built
	Drain(ctx context.Context, upstream stream.Stream) error
}

// Constructor builds a stage instance from its spec. It may return a
// value satisfying Producer, Transformer, and/or Sink; the compiler
// asserts the interface it needs for the stage's position in the plan.
type Constructor func(spec Spec) (Built, error)

// DefaultSerializerKind names the stage the compiler appends when a
// plan's last stage is a transformer with nothing draining it.
const DefaultSerializerKind = "serialize"

// Compile type-checks specs against the registry and constructs an
// executable Plan, appending an implicit default serializer per 4.F
// when the plan would otherwise end on an open transformer.
func Compile(specs []Spec, constructors map[string]Constructor, defaultSerializeFormat string) (*Plan, error) {
	if len(specs) == 0 {
		return nil, &UsageError{Message: "empty pipeline"}
	}

	entries := make([]*registry.Entry, len(specs))
	for i, s := range specs {
		e, ok := registry.Resolve(s.Kind)
		if !ok {
			return nil, &UsageError{Message: fmt.Sprintf("unknown stage %q", s.Kind)}
		}
		entries[i] = e
	}

	if entries[0].Role != registry.RoleProducer {
		return nil, &UsageError{Message: fmt.Sprintf("first stage %q must be a producer", specs[0].Kind)}
	}

	for i := 1; i < len(entries)-1; i++ {
		r := entries[i].Role
		if r != registry.RoleTransformer && r != registry.RoleSinkOrTransformer {
			return nil, &UsageError{Message: fmt.Sprintf("stage %q (role %s) cannot appear mid-pipeline; only the last stage may be a sink", specs[i].Kind, r)}
		}
	}

	built := make([]Built, len(specs))
	for i, s := range specs {
		ctor, ok := constructors[entries[i].Canonical]
		if !ok {
			return nil, &UsageError{Message: fmt.Sprintf("no constructor registered for stage %q", entries[i].Canonical)}
		}
		b, err := ctor(s)
		if err != nil {
			return nil, err
		}
		built[i] = b
	}

	// Re-validate with the dynamically resolved role of sink-or-transformer
	// stages (query decides at construction time per its SPARQL form).
	for i := 0; i < len(built)-1; i++ {
		if built[i].Role() == registry.RoleSink {
			return nil, &UsageError{Message: fmt.Sprintf("sink stage %q is not at the end of the pipeline", built[i].Name())}
		}
	}

	last := built[len(built)-1]
	if last.Role() == registry.RoleProducer && len(built) > 1 {
		return nil, &UsageError{Message: fmt.Sprintf("producer stage %q cannot appear mid-pipeline or as a non-first stage", last.Name())}
	}

	if _, isSink := last.(Sink); !isSink {
		// Last stage is a transformer (or an unresolved sink-or-transformer
		// acting as one): append the implicit default serializer.
		ctor, ok := constructors[DefaultSerializerKind]
		if !ok {
			return nil, fmt.Errorf("plan: no constructor registered for implicit default serializer")
		}
		implicitOptions := map[string][]string{}
		if defaultSerializeFormat != "" {
			// Only set when the caller pinned an explicit default (e.g.
			// --default-format); otherwise leave "format" unset so
			// serialize's own per-4.H adaptive rule (N-Quads for a
			// generalized/multi-graph stream, Turtle otherwise) applies,
			// same as an explicit serialize stage with no -f.
			implicitOptions["format"] = []string{defaultSerializeFormat}
		}
		implicit, err := ctor(Spec{
			Kind:    DefaultSerializerKind,
			Options: implicitOptions,
		})
		if err != nil {
			return nil, fmt.Errorf("plan: building implicit default serializer: %w", err)
		}
		built = append(built, implicit)
	}

	return &Plan{stages: built}, nil
}

// UsageError reports a pipeline that fails to type-check; the CLI
// surfaces these as exit code 2.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string { return e.Message }

// Plan is a validated, linear chain of constructed stages ready to run.
type Plan struct {
	stages []Built
}

// Run drives the plan to completion: the producer's stream is wrapped
// by each transformer in order, then drained by the terminal sink (or,
// if the plan somehow ends on a bare transformer, simply drained).
func (p *Plan) Run(ctx context.Context) error {
	producer, ok := p.stages[0].(Producer)
	if !ok {
		return fmt.Errorf("plan: first stage %q is not a producer", p.stages[0].Name())
	}
	s := producer.Produce(ctx)

	last := len(p.stages) - 1
	for i := 1; i < last; i++ {
		t, ok := p.stages[i].(Transformer)
		if !ok {
			return fmt.Errorf("plan: stage %q cannot appear mid-pipeline", p.stages[i].Name())
		}
		s = t.Wrap(ctx, s)
	}

	if last > 0 {
		finalStage := p.stages[last]
		if sink, ok := finalStage.(Sink); ok {
			return sink.Drain(ctx, s)
		}
		if t, ok := finalStage.(Transformer); ok {
			s = t.Wrap(ctx, s)
		}
	}

	return stream.Drain(s)
}
