package theme

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/pongopress/pongopress/internal/hooks"
)

// TestAdapterProperties checks the hook and shim invariants over generated input.
func TestAdapterProperties(t *testing.T) {
	f := newFixture(t, map[string]string{
		"index.html": `{{ value }}`,
	})
	properties := gopter.NewProperties(nil)

	// Property: the site variables filter result is exactly what gets built
	properties.Property("site variables follow the filter", prop.ForAll(
		func(key, value string) bool {
			plain := f.adapter("/", false, hooks.NewRegistry())
			defaults := plain.BuildVariables()
			if !reflect.DeepEqual(defaults, plain.DefaultVariables()) {
				return false
			}

			h := func(vars map[string]any) map[string]any {
				out := make(map[string]any, len(vars)+1)
				for k, v := range vars {
					out[k] = v
				}
				out[key] = value
				return out
			}
			reg := hooks.NewRegistry()
			reg.SiteVariables.Add(h)
			hooked := f.adapter("/", false, reg)

			return reflect.DeepEqual(hooked.BuildVariables(), h(plain.DefaultVariables()))
		},
		gen.Identifier(),
		gen.AlphaString(),
	))

	// Property: one advisory per invalid entry, every valid entry registered
	properties.Property("function advisories are counted per invalid entry", prop.ForAll(
		func(kinds []int) bool {
			list := make([]any, 0, len(kinds))
			invalid := 0
			valid := map[string]struct{}{}
			for _, k := range kinds {
				switch {
				case k < len(DefaultFunctions):
					list = append(list, DefaultFunctions[k])
					valid[DefaultFunctions[k]] = struct{}{}
				case k == len(DefaultFunctions):
					list = append(list, k)
					invalid++
				default:
					list = append(list, "missing_function")
					invalid++
				}
			}

			reg := hooks.NewRegistry()
			reg.GlobalFunctions.Add(func([]any) []any { return list })
			var advisories bytes.Buffer
			fns := f.adapter("/", false, reg).BuildFunctions(&advisories)

			if strings.Count(advisories.String(), "\n") != invalid {
				return false
			}
			if len(fns) != len(valid) {
				return false
			}
			for name := range valid {
				if _, ok := fns[name]; !ok {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, len(DefaultFunctions)+1)),
	))

	// Property: observing a template never changes it
	properties.Property("template observation is a pass-through", prop.ForAll(
		func(path string) bool {
			a := f.adapter("/", false, nil)
			return a.ObserveTemplate(path) == path && a.ChosenTemplate() == path
		},
		gen.AnyString(),
	))

	// Property: each render applies the post template vars filter exactly once
	properties.Property("post template vars run once per render", prop.ForAll(
		func(renders int, value string) bool {
			reg := hooks.NewRegistry()
			calls := 0
			reg.PostTemplateVars.Add(func(vars map[string]any) map[string]any {
				calls++
				return vars
			})
			a := f.adapter("/", false, reg)
			if err := a.Setup(nil); err != nil {
				return false
			}
			for i := 0; i < renders; i++ {
				out, err := a.Render("index.html", map[string]any{"value": value})
				if err != nil || out != value {
					return false
				}
			}
			return calls == renders
		},
		gen.IntRange(1, 4),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
