package toast

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/CallMeMhz/feature-gating/pkg/broadcast"
)

// OpKind names a container mutation.
type OpKind string

const (
	OpAppend  OpKind = "append"
	OpRestyle OpKind = "restyle"
	OpRemove  OpKind = "remove"
)

// Op is one container mutation as published by StreamContainer.
type Op struct {
	Kind    OpKind
	Element Element
}

// Patch writes op to the browser as a datastar patch: appends go into the
// container, restyles morph the element in place, removals drop it.
func (op Op) Patch(sse *datastar.ServerSentEventGenerator) error {
	switch op.Kind {
	case OpAppend:
		return sse.PatchElementTempl(op.Element.Component(),
			datastar.WithSelector("#"+ContainerID),
			datastar.WithMode(datastar.ElementPatchModeAppend),
		)
	case OpRestyle:
		return sse.PatchElementTempl(op.Element.Component(),
			datastar.WithSelector(op.Element.Selector()),
			datastar.WithMode(datastar.ElementPatchModeOuter),
		)
	case OpRemove:
		return sse.PatchElements("",
			datastar.WithSelector(op.Element.Selector()),
			datastar.WithMode(datastar.ElementPatchModeRemove),
		)
	default:
		return fmt.Errorf("toast: unknown op %q", op.Kind)
	}
}

// SyncPatch replaces the whole container content with elements.
func SyncPatch(sse *datastar.ServerSentEventGenerator, elements []Element) error {
	return sse.PatchElementTempl(List(elements),
		datastar.WithSelector("#"+ContainerID),
		datastar.WithMode(datastar.ElementPatchModeInner),
	)
}

// StreamContainer is a MemoryContainer that also publishes every mutation.
// Subscribers receive the current children together with a subscription, so
// nothing is missed or applied twice between the two.
type StreamContainer struct {
	mem MemoryContainer
	bus *broadcast.MemoryBroadcaster[Op]
}

// NewStreamContainer creates a container whose subscribers buffer up to
// buffer ops.
func NewStreamContainer(buffer int, seed ...Element) *StreamContainer {
	return &StreamContainer{
		mem: MemoryContainer{elements: slices.Clone(seed)},
		bus: broadcast.NewMemoryBroadcaster[Op](buffer),
	}
}

func (c *StreamContainer) Append(ctx context.Context, e Element) error {
	c.mem.mu.Lock()
	defer c.mem.mu.Unlock()
	if err := c.mem.append(e); err != nil {
		return err
	}
	return c.publish(ctx, Op{Kind: OpAppend, Element: e})
}

// Adopt records an element that is already in the page. Nothing is published.
func (c *StreamContainer) Adopt(_ context.Context, e Element) error {
	c.mem.mu.Lock()
	defer c.mem.mu.Unlock()
	return c.mem.append(e)
}

func (c *StreamContainer) Restyle(ctx context.Context, id string, s Style) error {
	c.mem.mu.Lock()
	defer c.mem.mu.Unlock()
	e, err := c.mem.restyle(id, s)
	if err != nil {
		return err
	}
	return c.publish(ctx, Op{Kind: OpRestyle, Element: e})
}

func (c *StreamContainer) Remove(ctx context.Context, id string) error {
	c.mem.mu.Lock()
	defer c.mem.mu.Unlock()
	if err := c.mem.remove(id); err != nil {
		return err
	}
	return c.publish(ctx, Op{Kind: OpRemove, Element: Element{ID: id}})
}

func (c *StreamContainer) Children(ctx context.Context) ([]Element, error) {
	return c.mem.Children(ctx)
}

// Subscribe returns the current children and a subscription to every later
// mutation. The subscription ends with ctx or Close.
func (c *StreamContainer) Subscribe(ctx context.Context) ([]Element, broadcast.Subscriber[Op]) {
	c.mem.mu.Lock()
	defer c.mem.mu.Unlock()
	return slices.Clone(c.mem.elements), c.bus.Subscribe(ctx)
}

// Subscribers returns the number of live subscriptions.
func (c *StreamContainer) Subscribers() int {
	return c.bus.Subscribers()
}

// Close ends every subscription.
func (c *StreamContainer) Close() error {
	return c.bus.Close()
}

// Must be called with the lock held.
func (c *StreamContainer) publish(ctx context.Context, op Op) error {
	err := c.bus.Broadcast(ctx, broadcast.Message[Op]{Data: op})
	if errors.Is(err, broadcast.ErrClosed) {
		return nil
	}
	return err
}
