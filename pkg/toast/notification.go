package toast

import (
	"strings"
	"time"
)

// Lifecycle timings.
const (
	RevealDelay = 10 * time.Millisecond
	DwellTime   = 5000 * time.Millisecond
	ExitTime    = 300 * time.Millisecond
)

// State is a lifecycle stage of a notification.
type State string

const (
	Entering State = "entering"
	Visible  State = "visible"
	Exiting  State = "exiting"
	Removed  State = "removed"
)

func (s State) Name() string { return string(s) }

type event string

const (
	eventReveal  event = "reveal"
	eventExpire  event = "expire"
	eventDetach  event = "detach"
	eventDismiss event = "dismiss"
)

func (e event) Name() string { return string(e) }

// Notification is a snapshot of one toast.
type Notification struct {
	ID        string
	Message   string
	Category  Category
	CreatedAt time.Time
	State     State
}

// Style is the inline style of a toast element.
type Style struct {
	Opacity    string
	Transform  string
	Transition string
}

const transition = "all 0.3s ease-out"

var (
	// StyleHidden is transparent and pushed off to the right.
	StyleHidden = Style{Opacity: "0", Transform: "translateX(100%)", Transition: transition}
	// StyleShown is opaque and in place.
	StyleShown = Style{Opacity: "1", Transform: "translateX(0)", Transition: transition}
)

// String renders s as a style attribute value.
func (s Style) String() string {
	parts := make([]string, 0, 3)
	for _, d := range [][2]string{
		{"opacity", s.Opacity},
		{"transform", s.Transform},
		{"transition", s.Transition},
	} {
		if d[1] != "" {
			parts = append(parts, d[0]+": "+d[1])
		}
	}
	return strings.Join(parts, "; ")
}

// parseStyle reads the properties String writes; others are ignored.
func parseStyle(attr string) Style {
	var s Style
	for decl := range strings.SplitSeq(attr, ";") {
		prop, val, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		switch strings.TrimSpace(prop) {
		case "opacity":
			s.Opacity = val
		case "transform":
			s.Transform = val
		case "transition":
			s.Transition = val
		}
	}
	return s
}

// Flash is a toast carried across a redirect in the flash cookie.
type Flash struct {
	Message  string   `json:"message"`
	Category Category `json:"category"`
}
