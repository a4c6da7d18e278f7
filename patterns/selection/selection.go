// Package selection declares the SelectionStart pattern, which
// exposes the start of a text selection and lets clients move it.
package selection

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/danderson/uia"
)

//go:generate go run github.com/danderson/uia/cmd/uia generate --pkg selection --pkg-path github.com/danderson/uia/patterns/selection --out client_gen.go Selection

var (
	// ID is the pattern's GUID.
	ID = uia.MustParseGUID("{c4a2e7b1-3f5d-4e8a-9b6c-1d2e3f4a5b6c}")
	// SelectionStartID is the GUID of the SelectionStart property.
	SelectionStartID = uia.MustParseGUID("{c4a2e7b1-3f5d-4e8a-9b6c-1d2e3f4a5b6d}")
)

// Provider is implemented by controls with a movable selection.
type Provider interface {
	SelectionStart() int32
	SetSelectionStart(value int32) error
}

// Consumer is the client side of the pattern.
type Consumer interface {
	CurrentSelectionStart() (int32, error)
	CachedSelectionStart() (int32, error)
	SetSelectionStart(value int32) error
}

// Pattern is the declaration of the SelectionStart pattern.
var Pattern = uia.Pattern{
	ID:       ID,
	Name:     "Selection",
	Provider: reflect.TypeFor[Provider](),
	Consumer: reflect.TypeFor[Consumer](),
	Properties: []uia.PropertyDecl{
		uia.Property("SelectionStart", SelectionStartID),
	},
	Methods: []uia.MethodDecl{
		uia.Method("SetSelectionStart", uia.In("value")),
	},
}

var (
	_ Provider = (*Text)(nil)
	_ Consumer = Client{}
)

// Text is an in-memory Provider over a fixed string.
type Text struct {
	mu    sync.Mutex
	text  string
	start int32
}

// NewText returns a Text over s, with the selection at the start.
func NewText(s string) *Text {
	return &Text{text: s}
}

func (t *Text) SelectionStart() int32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.start
}

// SetSelectionStart moves the selection. It fails with
// an [OutOfRangeError] if value is not a position within the text.
func (t *Text) SetSelectionStart(value int32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if value < 0 || int(value) > len(t.text) {
		return OutOfRangeError{value, int32(len(t.text))}
	}
	t.start = value
	return nil
}

// OutOfRangeError is returned when moving the selection outside the
// text.
type OutOfRangeError struct {
	Pos, Len int32
}

func (e OutOfRangeError) Error() string {
	return fmt.Sprintf("selection start %d outside text of length %d", e.Pos, e.Len)
}
