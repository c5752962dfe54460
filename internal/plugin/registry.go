package plugin

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
)

// Kind tags how a component was resolved.
type Kind string

const (
	KindStatic  Kind = "static"
	KindFactory Kind = "factory"
)

// Router is an HTTP handler mounted under Prefix.
type Router struct {
	Prefix  string
	Handler http.Handler
}

// Factory builds a Router on demand.
type Factory func() Router

// Component is a resolved locator.
type Component struct {
	Locator string
	Kind    Kind
	Router  Router
}

// Info describes a registered locator.
type Info struct {
	Locator string `json:"locator"`
	Kind    Kind   `json:"kind"`
}

// Registry holds components addressable by "module:attribute" locators.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]any
}

// NewRegistry creates an empty component registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]any),
	}
}

// Register adds a static router under module:attribute.
func (r *Registry) Register(module, attribute string, router Router) {
	r.set(module, attribute, router)
}

// RegisterFactory adds a factory under module:attribute. The factory runs
// once per Resolve of that locator.
func (r *Registry) RegisterFactory(module, attribute string, f Factory) {
	r.set(module, attribute, f)
}

func (r *Registry) set(module, attribute string, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[module+":"+attribute] = v
}

// ParseLocator splits "module:attribute", rejecting empty halves.
func ParseLocator(locator string) (module, attribute string, err error) {
	module, attribute, ok := strings.Cut(strings.TrimSpace(locator), ":")
	if !ok || module == "" || attribute == "" {
		return "", "", fmt.Errorf("invalid locator %q: want module:attribute", locator)
	}
	return module, attribute, nil
}

// Resolve returns one component per locator, in order. Factories are invoked
// here, once, and never during request handling.
func (r *Registry) Resolve(locators []string) ([]Component, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	components := make([]Component, 0, len(locators))
	for _, loc := range locators {
		module, attribute, err := ParseLocator(loc)
		if err != nil {
			return nil, err
		}
		key := module + ":" + attribute

		entry, ok := r.entries[key]
		if !ok {
			return nil, fmt.Errorf("component %q is not registered", key)
		}

		c := Component{Locator: key}
		switch v := entry.(type) {
		case Router:
			c.Kind = KindStatic
			c.Router = v
		case Factory:
			c.Kind = KindFactory
			c.Router = v()
		}
		if c.Router.Handler == nil {
			return nil, fmt.Errorf("component %q has no handler", key)
		}
		components = append(components, c)
	}
	return components, nil
}

// List returns all registered locators sorted for a stable API response.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.entries))
	for loc, entry := range r.entries {
		kind := KindStatic
		if _, ok := entry.(Factory); ok {
			kind = KindFactory
		}
		infos = append(infos, Info{Locator: loc, Kind: kind})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Locator < infos[j].Locator
	})
	return infos
}
