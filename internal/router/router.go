// Package router holds the console route table: which path renders which view
// and whether reaching it requires an authenticated session.
package router

import (
	_ "embed"
	"fmt"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoginPath is the path of the login page; the guard treats it specially.
const LoginPath = "/login"

// HomePath is where an already authenticated visitor of LoginPath is sent.
const HomePath = "/"

//go:embed routes.yaml
var defaultRoutes []byte

// Route describes a single navigable console page.
type Route struct {
	Path         string
	Name         string
	View         string
	Layout       string // view of the enclosing parent route, empty for top level
	RequiresAuth bool
}

// IsLogin reports whether the route is the login page.
func (r Route) IsLogin() bool {
	return r.Path == LoginPath
}

// Table is an immutable set of routes keyed by path.
type Table struct {
	routes map[string]Route
}

// routeFile is the on-disk shape of routes.yaml.
type routeFile struct {
	Routes []*routeEntry `yaml:"routes"`
}

type routeEntry struct {
	Path         string        `yaml:"path"`
	Name         string        `yaml:"name"`
	View         string        `yaml:"view"`
	RequiresAuth *bool         `yaml:"requiresAuth"`
	Children     []*routeEntry `yaml:"children"`
}

// Load parses a YAML route file into a Table.
func Load(data []byte) (*Table, error) {
	var f routeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal routes: %w", err)
	}

	t := &Table{routes: make(map[string]Route)}
	for _, e := range f.Routes {
		if e == nil {
			continue
		}
		if err := t.add(e, "", "", false); err != nil {
			return nil, err
		}
	}
	if len(t.routes) == 0 {
		return nil, fmt.Errorf("route file defines no routes")
	}
	return t, nil
}

// add flattens e and its children into t. Children inherit requiresAuth
// unless they set it themselves.
func (t *Table) add(e *routeEntry, parentPath, layout string, inherited bool) error {
	full := joinPath(parentPath, e.Path)
	if parentPath == "" && !strings.HasPrefix(e.Path, "/") {
		return fmt.Errorf("top-level route %q must be absolute", e.Path)
	}

	requiresAuth := inherited
	if e.RequiresAuth != nil {
		requiresAuth = *e.RequiresAuth
	}

	if len(e.Children) > 0 {
		for _, c := range e.Children {
			if c == nil {
				continue
			}
			if err := t.add(c, full, e.View, requiresAuth); err != nil {
				return err
			}
		}
		return nil
	}

	if e.View == "" {
		return fmt.Errorf("route %s has no view", full)
	}
	if _, dup := t.routes[full]; dup {
		return fmt.Errorf("duplicate route %s", full)
	}
	t.routes[full] = Route{
		Path:         full,
		Name:         e.Name,
		View:         e.View,
		Layout:       layout,
		RequiresAuth: requiresAuth,
	}
	return nil
}

func joinPath(parent, child string) string {
	if parent == "" {
		return path.Clean(child)
	}
	if child == "" {
		return parent
	}
	return path.Clean(parent + "/" + child)
}

// Default returns the table built from the embedded routes.yaml. It panics if
// the embedded file is malformed, which is a build defect.
func Default() *Table {
	t, err := Load(defaultRoutes)
	if err != nil {
		panic(fmt.Sprintf("embedded routes.yaml: %v", err))
	}
	return t
}

// Lookup returns the route registered for an exact path.
func (t *Table) Lookup(p string) (Route, bool) {
	r, ok := t.routes[p]
	return r, ok
}

// Routes returns all routes ordered by path.
func (t *Table) Routes() []Route {
	out := make([]Route, 0, len(t.routes))
	for _, r := range t.routes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
