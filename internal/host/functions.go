package host

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/a-h/templ"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const defaultTitleSeparator = "|"

// wpHead prints the document head fragment: charset, theme stylesheet and
// any configured snippets.
func wpHead(r *Request, w io.Writer, _ ...any) error {
	info := r.Info()
	lines := []string{
		fmt.Sprintf(`<meta charset="%s">`, templ.EscapeString(info.Charset)),
	}
	if _, err := os.Stat(filepath.Join(r.StylesheetDir(), "style.css")); err == nil {
		lines = append(lines, fmt.Sprintf(`<link rel="stylesheet" href="%s/style.css">`, templ.EscapeString(r.StylesheetURI())))
	}
	lines = append(lines, r.site.cfg.Head...)
	return writeLines(w, lines)
}

// wpFooter prints the configured footer snippets.
func wpFooter(r *Request, w io.Writer, _ ...any) error {
	return writeLines(w, r.site.cfg.Footer)
}

// wpTitle prints the document title. The optional first argument is the
// separator placed between the page and site titles.
func wpTitle(r *Request, w io.Writer, args ...any) error {
	site := r.Info().Name
	if r.IsFrontPage() {
		_, err := io.WriteString(w, templ.EscapeString(site))
		return err
	}
	sep := argString(args, 0, defaultTitleSeparator)
	title := strings.TrimSpace(strings.Join([]string{r.PageTitle(), sep, site}, " "))
	_, err := io.WriteString(w, templ.EscapeString(title))
	return err
}

// bodyClass prints a class attribute describing the request. Arguments add
// extra classes.
func bodyClass(r *Request, w io.Writer, args ...any) error {
	var classes []string
	if r.IsFrontPage() {
		classes = append(classes, "home")
	} else {
		classes = append(classes, "page", "page-"+r.Slug())
	}
	for _, arg := range args {
		s, ok := arg.(string)
		if !ok {
			continue
		}
		classes = append(classes, strings.Fields(s)...)
	}
	_, err := fmt.Fprintf(w, `class="%s"`, templ.EscapeString(strings.Join(classes, " ")))
	return err
}

// wpNavMenu prints a configured menu as a list. The first argument is either
// the menu name or a mapping with a "menu" key; it defaults to "primary".
// Unknown menus print nothing.
func wpNavMenu(r *Request, w io.Writer, args ...any) error {
	name := "primary"
	if len(args) > 0 {
		switch v := args[0].(type) {
		case string:
			name = v
		case map[string]any:
			if s, ok := v["menu"].(string); ok {
				name = s
			}
		}
	}
	items, ok := r.site.cfg.Menus[name]
	if !ok || len(items) == 0 {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<ul class="menu menu-%s">`, templ.EscapeString(name))
	for _, item := range items {
		class := "menu-item"
		if item.URL == r.Path() {
			class += " current-menu-item"
		}
		fmt.Fprintf(&b, `<li class="%s"><a href="%s">%s</a></li>`,
			class, templ.EscapeString(item.URL), templ.EscapeString(item.Title))
	}
	b.WriteString("</ul>")
	_, err := io.WriteString(w, b.String())
	return err
}

// PageTitle derives a human readable title from the last path segment,
// cased for the site language.
func (r *Request) PageTitle() string {
	if r.IsFrontPage() {
		return ""
	}
	segment := r.path[strings.LastIndex(r.path, "/")+1:]
	segment = strings.NewReplacer("-", " ", "_", " ").Replace(segment)
	tag, err := language.Parse(r.Info().Language)
	if err != nil {
		tag = language.Und
	}
	return cases.Title(tag).String(segment)
}

func writeLines(w io.Writer, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	_, err := io.WriteString(w, strings.Join(lines, "\n"))
	return err
}

func argString(args []any, i int, def string) string {
	if i >= len(args) {
		return def
	}
	if s, ok := args[i].(string); ok {
		return s
	}
	return def
}
