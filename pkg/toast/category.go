package toast

import "strings"

// Category selects the colour and icon of a notification.
type Category string

const (
	CategoryInfo    Category = "info"
	CategorySuccess Category = "success"
	CategoryWarning Category = "warning"
	CategoryError   Category = "error"
)

// Categories lists the known categories.
var Categories = []Category{CategorySuccess, CategoryError, CategoryWarning, CategoryInfo}

// ParseCategory maps s onto a known category; anything else is info.
func ParseCategory(s string) Category {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategorySuccess, CategoryError, CategoryWarning, CategoryInfo:
		return c
	default:
		return CategoryInfo
	}
}

// Background is the Tailwind background class of the category.
func (c Category) Background() string {
	switch c {
	case CategorySuccess:
		return "bg-green-500"
	case CategoryError:
		return "bg-red-500"
	case CategoryWarning:
		return "bg-yellow-500"
	default:
		return "bg-blue-500"
	}
}

// Icon is the SVG path drawn inside the notification.
func (c Category) Icon() string {
	switch c {
	case CategorySuccess:
		return iconSuccess
	case CategoryError:
		return iconError
	case CategoryWarning:
		return iconWarning
	default:
		return iconInfo
	}
}

func categoryFromClass(class string) Category {
	for _, c := range Categories {
		if strings.Contains(class, c.Background()) {
			return c
		}
	}
	return CategoryInfo
}

const (
	iconSuccess = `<path stroke-linecap="round" stroke-linejoin="round" stroke-width="2" d="M9 12l2 2 4-4m6 2a9 9 0 11-18 0 9 9 0 0118 0z" />`
	iconError   = `<path stroke-linecap="round" stroke-linejoin="round" stroke-width="2" d="M10 14l2-2m0 0l2-2m-2 2l-2-2m2 2l2 2m7-2a9 9 0 11-18 0 9 9 0 0118 0z" />`
	iconWarning = `<path stroke-linecap="round" stroke-linejoin="round" stroke-width="2" d="M12 9v2m0 4h.01m-6.938 4h13.856c1.54 0 2.502-1.667 1.732-3L13.732 4c-.77-1.333-2.694-1.333-3.464 0L3.34 16c-.77 1.333.192 3 1.732 3z" />`
	iconInfo    = `<path stroke-linecap="round" stroke-linejoin="round" stroke-width="2" d="M13 16h-1v-4h-1m1-4h.01M21 12a9 9 0 11-18 0 9 9 0 0118 0z" />`
	iconClose   = `<path fill-rule="evenodd" d="M4.293 4.293a1 1 0 011.414 0L10 8.586l4.293-4.293a1 1 0 111.414 1.414L11.414 10l4.293 4.293a1 1 0 01-1.414 1.414L10 11.414l-4.293 4.293a1 1 0 01-1.414-1.414L8.586 10 4.293 5.707a1 1 0 010-1.414z" clip-rule="evenodd" />`
)
