package logger

import (
	"log/slog"
	"strconv"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// RequestID records the request identifier under the key "request_id".
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

// NotificationID records a toast identifier.
func NotificationID(id string) slog.Attr {
	return slog.String("notification_id", id)
}

// Category records a toast category.
func Category(c string) slog.Attr {
	return slog.String("category", c)
}

// State records a lifecycle state name.
func State(name string) slog.Attr {
	return slog.String("state", name)
}

// FormKey records the identity of a guarded form.
func FormKey(key string) slog.Attr {
	return slog.String("form_key", key)
}

// SnapshotID records a snapshot identifier.
func SnapshotID(id string) slog.Attr {
	return slog.String("snapshot_id", id)
}

// ProjectID records a project identifier.
func ProjectID(id string) slog.Attr {
	return slog.String("project_id", id)
}

// Duration records a duration under the key "duration".
func Duration(d any) slog.Attr {
	return slog.Any("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event records the event name under the key "event".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}
