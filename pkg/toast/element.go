package toast

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

const (
	// ContainerID is the DOM id of the toast mount point.
	ContainerID = "toast-container"
	// MarkerClass is carried by every toast element.
	MarkerClass = "toast"

	idPrefix  = "toast-"
	baseClass = "toast max-w-md w-full shadow-lg rounded-lg pointer-events-auto overflow-hidden mb-2"
)

// Element is the rendered form of a notification. Message holds sanitized
// HTML.
type Element struct {
	ID         string
	Category   Category
	Message    string
	Style      Style
	DismissURL string
}

// DOMID returns the element id attribute, e.g. "toast-01J...".
func (e Element) DOMID() string { return idPrefix + e.ID }

// Selector returns the CSS selector matching the element.
func (e Element) Selector() string { return "#" + e.DOMID() }

// Class returns the class attribute.
func (e Element) Class() string { return baseClass + " " + e.Category.Background() }

// Component renders the element.
func (e Element) Component() templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, e.HTML())
		return err
	})
}

// HTML renders the element markup.
func (e Element) HTML() string {
	var b strings.Builder
	fmt.Fprintf(&b, `<div id="%s" class="%s" data-category="%s" style="%s">`,
		templ.EscapeString(e.DOMID()),
		templ.EscapeString(e.Class()),
		templ.EscapeString(string(e.Category)),
		templ.EscapeString(e.Style.String()),
	)
	b.WriteString(`<div class="p-4"><div class="flex items-start">`)
	b.WriteString(`<div class="flex-shrink-0"><svg class="h-6 w-6 text-white" fill="none" viewBox="0 0 24 24" stroke="currentColor">`)
	b.WriteString(e.Category.Icon())
	b.WriteString(`</svg></div>`)
	b.WriteString(`<div class="ml-3 flex-1"><p class="text-sm font-medium text-white">`)
	b.WriteString(e.Message)
	b.WriteString(`</p></div>`)
	b.WriteString(`<div class="ml-4 flex-shrink-0 flex">`)
	if e.DismissURL != "" {
		fmt.Fprintf(&b, `<button type="button" class="inline-flex text-white hover:text-gray-200 focus:outline-none" data-on-click="@post(&#39;%s&#39;)">`,
			templ.EscapeString(e.DismissURL))
	} else {
		b.WriteString(`<button type="button" class="inline-flex text-white hover:text-gray-200 focus:outline-none" onclick="this.closest('.toast').remove()">`)
	}
	b.WriteString(`<svg class="h-5 w-5" viewBox="0 0 20 20" fill="currentColor">`)
	b.WriteString(iconClose)
	b.WriteString(`</svg></button></div></div></div></div>`)
	return b.String()
}

// List renders elements in order, e.g. as the content of the container.
func List(elements []Element) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		for _, e := range elements {
			if err := e.Component().Render(ctx, w); err != nil {
				return err
			}
		}
		return nil
	})
}

// Mount renders the container mount point with the given elements inside.
func Mount(elements []Element) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<div id="`+ContainerID+`" class="fixed top-4 right-4 z-50 flex flex-col items-end">`); err != nil {
			return err
		}
		if err := List(elements).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</div>`)
		return err
	})
}
