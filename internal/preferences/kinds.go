package preferences

import (
	"sort"
	"time"
)

const oneYear = 365 * 24 * time.Hour

var (
	Theme = MustNew("theme", "theme_mode",
		[]string{"light", "dark", "system"}, "system", oneYear)

	ThemeVariant = MustNew("theme-variant", "theme_variant",
		[]string{"default", "tangerine", "neo-brutalism", "soft-pop"}, "default", oneYear)

	Layout = MustNew("layout", "content_layout",
		[]string{"centered", "full-width"}, "centered", oneYear)
)

var registry = map[string]*Preference{
	Theme.Kind:        Theme,
	ThemeVariant.Kind: ThemeVariant,
	Layout.Kind:       Layout,
}

// Lookup returns the preference registered under kind
func Lookup(kind string) (*Preference, bool) {
	p, ok := registry[kind]
	return p, ok
}

// All returns every registered preference sorted by kind
func All() []*Preference {
	out := make([]*Preference, 0, len(registry))
	for _, p := range registry {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// Values reads every preference from store, keyed by kind
func Values(store Store) map[string]string {
	out := make(map[string]string, len(registry))
	for kind, p := range registry {
		out[kind] = p.Get(store)
	}
	return out
}

func GetThemePreference(store Store) string        { return Theme.Get(store) }
func GetThemeVariantPreference(store Store) string { return ThemeVariant.Get(store) }
func GetLayoutPreference(store Store) string       { return Layout.Get(store) }

func SetThemePreference(store Store, v string) error        { return Theme.Set(store, v) }
func SetThemeVariantPreference(store Store, v string) error { return ThemeVariant.Set(store, v) }
func SetLayoutPreference(store Store, v string) error       { return Layout.Set(store, v) }
