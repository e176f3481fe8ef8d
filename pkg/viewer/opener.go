package viewer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/starfederation/datastar-go/datastar"
)

// Opener creates a new browsing context and writes document into it.
type Opener interface {
	Open(ctx context.Context, document string) error
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, document string) error

func (f OpenerFunc) Open(ctx context.Context, document string) error { return f(ctx, document) }

// MemoryOpener records every opened window.
type MemoryOpener struct {
	mu      sync.Mutex
	windows []string
}

func (o *MemoryOpener) Open(_ context.Context, document string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.windows = append(o.windows, document)
	return nil
}

// Windows returns the documents opened so far.
func (o *MemoryOpener) Windows() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.windows)
}

// WriterOpener writes each document to W, one per line.
type WriterOpener struct {
	W io.Writer
}

func (o WriterOpener) Open(_ context.Context, document string) error {
	_, err := fmt.Fprintln(o.W, document)
	return err
}

// StreamOpener opens the window in the browser at the other end of a
// datastar stream.
type StreamOpener struct {
	SSE *datastar.ServerSentEventGenerator
}

func (o StreamOpener) Open(_ context.Context, document string) error {
	return o.SSE.ExecuteScript(OpenScript(document))
}

// OpenScript is the browser script that opens a blank window and writes
// document into it.
func OpenScript(document string) string {
	// json.Marshal escapes <, > and & so the literal cannot close the script.
	lit, _ := json.Marshal(document)
	return fmt.Sprintf("const w = window.open('', '_blank'); if (w) { w.document.write(%s); w.document.close(); }", lit)
}
