package toast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

var (
	ErrElementNotFound = errors.New("toast: element not found")
	ErrDuplicateID     = errors.New("toast: duplicate element id")
)

// Container is the mount point toasts live in. The manager only appends,
// restyles and removes its own elements, and lists children when
// re-hydrating.
type Container interface {
	Append(ctx context.Context, e Element) error
	Restyle(ctx context.Context, id string, s Style) error
	Remove(ctx context.Context, id string) error
	Children(ctx context.Context) ([]Element, error)
}

// Adopter is implemented by containers that can take over elements already
// present in the page without re-inserting them.
type Adopter interface {
	Adopt(ctx context.Context, e Element) error
}

// MemoryContainer keeps elements in insertion order. Safe for concurrent use.
type MemoryContainer struct {
	mu       sync.RWMutex
	elements []Element
}

// NewMemoryContainer returns a container pre-populated with seed, as if the
// elements had been rendered with the page.
func NewMemoryContainer(seed ...Element) *MemoryContainer {
	return &MemoryContainer{elements: slices.Clone(seed)}
}

func (c *MemoryContainer) Append(_ context.Context, e Element) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.append(e)
}

// Adopt records e like Append does.
func (c *MemoryContainer) Adopt(ctx context.Context, e Element) error {
	return c.Append(ctx, e)
}

func (c *MemoryContainer) Restyle(_ context.Context, id string, s Style) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.restyle(id, s)
	return err
}

func (c *MemoryContainer) Remove(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remove(id)
}

func (c *MemoryContainer) Children(context.Context) ([]Element, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.elements), nil
}

// Get returns the element with the given id.
func (c *MemoryContainer) Get(id string) (Element, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.index(id); i >= 0 {
		return c.elements[i], true
	}
	return Element{}, false
}

// Len returns the number of elements.
func (c *MemoryContainer) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.elements)
}

// The helpers below must be called with the lock held.

func (c *MemoryContainer) index(id string) int {
	return slices.IndexFunc(c.elements, func(e Element) bool { return e.ID == id })
}

func (c *MemoryContainer) append(e Element) error {
	if c.index(e.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateID, e.ID)
	}
	c.elements = append(c.elements, e)
	return nil
}

func (c *MemoryContainer) restyle(id string, s Style) (Element, error) {
	i := c.index(id)
	if i < 0 {
		return Element{}, fmt.Errorf("%w: %s", ErrElementNotFound, id)
	}
	c.elements[i].Style = s
	return c.elements[i], nil
}

func (c *MemoryContainer) remove(id string) error {
	i := c.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrElementNotFound, id)
	}
	c.elements = slices.Delete(c.elements, i, i+1)
	return nil
}

// ParseElements reads the toast elements out of rendered HTML: every element
// with the marker class inside #toast-container, or anywhere in the document
// when there is no container. Elements without an id come back with an empty
// ID.
func ParseElements(r io.Reader) ([]Element, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse toast markup: %w", err)
	}

	scope := doc.Find("#" + ContainerID)
	if scope.Length() == 0 {
		scope = doc.Selection
	}

	var out []Element
	scope.Find("." + MarkerClass).Each(func(_ int, s *goquery.Selection) {
		e := Element{
			ID:    strings.TrimPrefix(s.AttrOr("id", ""), idPrefix),
			Style: parseStyle(s.AttrOr("style", "")),
		}
		if cat, ok := s.Attr("data-category"); ok {
			e.Category = ParseCategory(cat)
		} else {
			e.Category = categoryFromClass(s.AttrOr("class", ""))
		}
		if msg, err := s.Find("p").First().Html(); err == nil {
			e.Message = strings.TrimSpace(msg)
		}
		out = append(out, e)
	})
	return out, nil
}
