package theme

import (
	"bytes"

	"github.com/pongopress/pongopress/internal/engine"
	"github.com/pongopress/pongopress/internal/host"
)

// Capture adapts a host function that writes its output into one that
// returns it, so a template can place the text where it wants.
func Capture(fn host.OutputFunc) engine.Function {
	return func(args ...any) (string, error) {
		var buf bytes.Buffer
		if err := fn(&buf, args...); err != nil {
			return "", err
		}
		return buf.String(), nil
	}
}
