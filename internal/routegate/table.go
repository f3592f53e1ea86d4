// Package routegate decides whether a page request may proceed, must log in
// first, or should be sent to the user's default landing page.
package routegate

import (
	"fmt"
	"os"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"gopkg.in/yaml.v3"
)

// Class is the category a request path falls into
type Class int

const (
	ClassOther Class = iota
	ClassPublicAuth
	ClassProtected
	ClassAdmin
)

func (c Class) String() string {
	switch c {
	case ClassPublicAuth:
		return "public-auth"
	case ClassProtected:
		return "protected"
	case ClassAdmin:
		return "admin"
	default:
		return "other"
	}
}

// TableSpec is the YAML shape of a route table
type TableSpec struct {
	PublicAuthPaths   []string `yaml:"public_auth_paths"`
	ProtectedPrefixes []string `yaml:"protected_prefixes"`
	AdminPrefixes     []string `yaml:"admin_prefixes"`
}

// Table holds the route classification lists. It is immutable once built.
type Table struct {
	publicAuth mapset.Set[string]
	protected  []string
	admin      []string
}

// DefaultSpec returns the built-in route lists
func DefaultSpec() TableSpec {
	return TableSpec{
		PublicAuthPaths: []string{
			"/login",
			"/register",
			"/forgot-password",
			"/reset-password",
			"/verify-email",
		},
		ProtectedPrefixes: []string{
			"/dashboard",
			"/groups",
			"/expenses",
			"/settlements",
			"/notifications",
			"/settings",
		},
		AdminPrefixes: []string{
			"/admin",
		},
	}
}

// NewTable builds an immutable table from spec
func NewTable(spec TableSpec) (*Table, error) {
	t := &Table{publicAuth: mapset.NewSet[string]()}

	for _, p := range spec.PublicAuthPaths {
		p, err := normalizeEntry(p)
		if err != nil {
			return nil, fmt.Errorf("public_auth_paths: %w", err)
		}
		t.publicAuth.Add(p)
	}

	for _, p := range spec.ProtectedPrefixes {
		p, err := normalizeEntry(p)
		if err != nil {
			return nil, fmt.Errorf("protected_prefixes: %w", err)
		}
		t.protected = append(t.protected, p)
	}

	for _, p := range spec.AdminPrefixes {
		p, err := normalizeEntry(p)
		if err != nil {
			return nil, fmt.Errorf("admin_prefixes: %w", err)
		}
		t.admin = append(t.admin, p)
	}

	return t, nil
}

// DefaultTable returns the table built from DefaultSpec
func DefaultTable() *Table {
	t, err := NewTable(DefaultSpec())
	if err != nil {
		panic(err)
	}
	return t
}

// LoadTable reads a YAML route table from path. Lists missing from the file
// fall back to the defaults.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read routes file: %w", err)
	}

	spec := DefaultSpec()
	var fromFile TableSpec
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return nil, fmt.Errorf("failed to parse routes file: %w", err)
	}

	if fromFile.PublicAuthPaths != nil {
		spec.PublicAuthPaths = fromFile.PublicAuthPaths
	}
	if fromFile.ProtectedPrefixes != nil {
		spec.ProtectedPrefixes = fromFile.ProtectedPrefixes
	}
	if fromFile.AdminPrefixes != nil {
		spec.AdminPrefixes = fromFile.AdminPrefixes
	}

	return NewTable(spec)
}

// Classify returns the class of path. Admin wins over protected when both
// match.
func (t *Table) Classify(path string) Class {
	path = cleanPath(path)

	switch {
	case t.IsAdmin(path):
		return ClassAdmin
	case t.IsProtected(path):
		return ClassProtected
	case t.IsPublicAuth(path):
		return ClassPublicAuth
	default:
		return ClassOther
	}
}

// IsPublicAuth reports an exact match against the public auth paths
func (t *Table) IsPublicAuth(path string) bool {
	return t.publicAuth.Contains(cleanPath(path))
}

// IsProtected reports a prefix match against the protected prefixes
func (t *Table) IsProtected(path string) bool {
	return matchAny(t.protected, cleanPath(path))
}

// IsAdmin is the admin path predicate
func (t *Table) IsAdmin(path string) bool {
	return matchAny(t.admin, cleanPath(path))
}

// Spec returns a copy of the lists the table was built from
func (t *Table) Spec() TableSpec {
	return TableSpec{
		PublicAuthPaths:   mapset.Sorted(t.publicAuth),
		ProtectedPrefixes: append([]string(nil), t.protected...),
		AdminPrefixes:     append([]string(nil), t.admin...),
	}
}

func matchAny(prefixes []string, path string) bool {
	for _, prefix := range prefixes {
		if hasSegmentPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// hasSegmentPrefix matches whole path segments: /groups matches /groups and
// /groups/1 but not /groupsettings.
func hasSegmentPrefix(path, prefix string) bool {
	if prefix == "/" {
		return true
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

func cleanPath(path string) string {
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			return "/"
		}
	}
	return path
}

func normalizeEntry(p string) (string, error) {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("path %q must start with /", p)
	}
	return cleanPath(p), nil
}
