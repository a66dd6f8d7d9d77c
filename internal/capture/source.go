// Package capture enumerates displays and application windows that can be
// offered for screen sharing.
package capture

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the type of a capture target.
type Kind string

const (
	KindScreen Kind = "screen"
	KindWindow Kind = "window"
)

// Source is one capturable display or window. Thumbnail and AppIcon are PNG
// data URLs.
type Source struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Thumbnail string `json:"thumbnail"`
	DisplayID string `json:"display_id,omitempty"`
	AppIcon   string `json:"appIcon,omitempty"`
}

// Kind returns the kind encoded in the id, or "" if the id is malformed.
func (s Source) Kind() Kind {
	k, _, err := ParseID(s.ID)
	if err != nil {
		return ""
	}
	return k
}

// Options controls what Enumerate returns.
type Options struct {
	Types            []Kind
	ThumbnailWidth   int
	ThumbnailHeight  int
	FetchWindowIcons bool
}

// DefaultOptions returns windows and screens with 320x180 thumbnails and
// window icons.
func DefaultOptions() Options {
	return Options{
		Types:            []Kind{KindWindow, KindScreen},
		ThumbnailWidth:   320,
		ThumbnailHeight:  180,
		FetchWindowIcons: true,
	}
}

// Wants reports whether k is among the requested types.
func (o Options) Wants(k Kind) bool {
	for _, t := range o.Types {
		if t == k {
			return true
		}
	}
	return false
}

// FormatID builds a source id such as "window:42".
func FormatID(k Kind, n uint64) string {
	return string(k) + ":" + strconv.FormatUint(n, 10)
}

// ParseID splits a source id into its kind and number.
func ParseID(id string) (Kind, uint64, error) {
	prefix, num, ok := strings.Cut(id, ":")
	if !ok {
		return "", 0, fmt.Errorf("capture: malformed source id %q", id)
	}
	k := Kind(prefix)
	if k != KindScreen && k != KindWindow {
		return "", 0, fmt.Errorf("capture: unknown source kind in %q", id)
	}
	// Some platforms append a suffix ("window:42:0"); only the number matters.
	num, _, _ = strings.Cut(num, ":")
	n, err := strconv.ParseUint(num, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("capture: malformed source id %q: %w", id, err)
	}
	return k, n, nil
}
