package theme

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// MissingEngineNotice is the admin notice shown when the engine library
// directory cannot be found.
func MissingEngineNotice(path string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<div class="error"><p><b>Warning:</b> pongopress cannot find the template engine library at `+
			templ.EscapeString(path)+`. This is required!</p></div>`)
		return err
	})
}
