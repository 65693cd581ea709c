// Package watcher observes a drop folder for incoming documents.
// Events are debounced so a file still being copied in produces one
// event once it settles, not one per write.
package watcher

import (
	"path/filepath"
	"strings"
	"time"
)

// Operation is the kind of change seen on a file.
type Operation int

const (
	// OpCreate indicates a new document appeared.
	OpCreate Operation = iota
	// OpModify indicates an existing document changed.
	OpModify
	// OpDelete indicates a document was removed.
	OpDelete
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one settled change in the drop folder.
type FileEvent struct {
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Options configures a drop-folder watcher.
type Options struct {
	// DebounceWindow coalesces rapid events per path (default: 500ms).
	DebounceWindow time.Duration
	// Extensions restricts events to these file extensions, lowercase
	// with dot (default: .pdf).
	Extensions []string
	// EventBufferSize is the capacity of the outgoing batch channel
	// (default: 100).
	EventBufferSize int
}

// WithDefaults fills unset options.
func (o Options) WithDefaults() Options {
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = 500 * time.Millisecond
	}
	if len(o.Extensions) == 0 {
		o.Extensions = []string{".pdf"}
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = 100
	}
	return o
}

// wantsFile reports whether a path matches the watched extensions.
func (o Options) wantsFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range o.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
