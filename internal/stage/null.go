package stage

import (
	"context"

	"github.com/jmylchreest/sop/internal/plan"
	"github.com/jmylchreest/sop/internal/registry"
	"github.com/jmylchreest/sop/internal/stream"
)

// Null is the sink stage that drains the stream, discarding every quad;
// it exits nonzero if any error surfaces from the upstream (4.G).
type Null struct{}

// NewNullConstructor returns the plan.Constructor for "null".
func NewNullConstructor() plan.Constructor {
	return func(spec plan.Spec) (plan.Built, error) {
		return &Null{}, nil
	}
}

func (n *Null) Name() string        { return "null" }
func (n *Null) Role() registry.Role { return registry.RoleSink }

func (n *Null) Drain(ctx context.Context, upstream stream.Stream) error {
	return stream.Drain(upstream)
}
