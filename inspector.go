package dispatch

import (
	"errors"

	"github.com/tidwall/gjson"
)

// ErrInvalidJSON is returned when a frame is not valid JSON.
var ErrInvalidJSON = errors.New("invalid JSON")

// Inspector validates a raw frame and exposes its fields without decoding
// it into Go values.
type Inspector interface {
	Inspect(raw []byte) (View, error)
}

// View is read-only field access over one inspected frame. Paths use gjson
// dot syntax ("d.author.id").
type View interface {
	HasField(path string) bool

	// GetString reports false for missing or non-string values.
	GetString(path string) (string, bool)

	// GetInt reports false for missing or non-numeric values. Fractions are
	// truncated.
	GetInt(path string) (int64, bool)

	// GetBool reports false for missing or non-boolean values.
	GetBool(path string) (bool, bool)

	// GetBytes returns the raw JSON at path, quotes included for strings.
	GetBytes(path string) ([]byte, bool)
}

// JSONInspector returns the gjson backed Inspector the envelope decoder
// uses.
func JSONInspector() Inspector {
	return gjsonInspector{}
}

type gjsonInspector struct{}

func (gjsonInspector) Inspect(raw []byte) (View, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrInvalidJSON
	}
	return frameView{root: gjson.ParseBytes(raw)}, nil
}

// frameView resolves paths against a frame parsed once at inspection.
type frameView struct {
	root gjson.Result
}

func (f frameView) lookup(path string, kinds ...gjson.Type) (gjson.Result, bool) {
	r := f.root.Get(path)
	if !r.Exists() {
		return r, false
	}
	for _, k := range kinds {
		if r.Type == k {
			return r, true
		}
	}
	return r, len(kinds) == 0
}

func (f frameView) HasField(path string) bool {
	_, ok := f.lookup(path)
	return ok
}

func (f frameView) GetString(path string) (string, bool) {
	r, ok := f.lookup(path, gjson.String)
	return r.Str, ok
}

func (f frameView) GetInt(path string) (int64, bool) {
	r, ok := f.lookup(path, gjson.Number)
	if !ok {
		return 0, false
	}
	return r.Int(), true
}

func (f frameView) GetBool(path string) (bool, bool) {
	r, ok := f.lookup(path, gjson.True, gjson.False)
	return r.Type == gjson.True, ok
}

func (f frameView) GetBytes(path string) ([]byte, bool) {
	r, ok := f.lookup(path)
	if !ok {
		return nil, false
	}
	return []byte(r.Raw), true
}
