// Package streams holds the closed set of business streams that partition
// the portfolio catalog, and resolves the stream a request is scoped to.
//
// Streams are stored as plain text in the catalog but every value that
// reaches storage has been validated against a Registry first.
package streams

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"gopkg.in/yaml.v3"
)

// Built-in streams.
const (
	Branding = "branding"
	Labs     = "labs"
	TLM      = "tlm"
)

const maxNameLen = 63

var nameRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// Definition describes a stream and the public pages that render it.
type Definition struct {
	Name        string   `yaml:"name" json:"name"`
	DisplayName string   `yaml:"displayName,omitempty" json:"displayName,omitempty"`
	Paths       []string `yaml:"paths,omitempty" json:"paths,omitempty"`
}

// Registry is the set of known streams. It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// DefaultRegistry returns a registry holding the built-in streams.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, d := range []Definition{
		{Name: Branding, DisplayName: "Branding"},
		{Name: Labs, DisplayName: "Labs"},
		{Name: TLM, DisplayName: "TLM"},
	} {
		// Built-ins are valid by construction.
		_ = r.Register(d)
	}
	return r
}

type registryFile struct {
	Streams []Definition `yaml:"streams"`
}

// LoadRegistryFile returns the default registry extended with the streams
// declared in a YAML file. A file entry may redefine a built-in stream, but
// each name may appear only once. The file has the form:
//
//	streams:
//	  - name: studio
//	    displayName: Studio
//	    paths: ["/studio", "/studio/work"]
func LoadRegistryFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read streams file %s: %w", path, err)
	}
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse streams file %s: %w", path, err)
	}

	r := DefaultRegistry()
	seen := mapset.NewThreadUnsafeSet[string]()
	for _, d := range f.Streams {
		if err := r.Register(d); err != nil {
			return nil, fmt.Errorf("streams file %s: %w", path, err)
		}
		if name := normalize(d.Name); !seen.Add(name) {
			return nil, fmt.Errorf("streams file %s: stream %q is declared more than once", path, name)
		}
	}
	return r, nil
}

// Register adds or replaces a stream definition.
func (r *Registry) Register(d Definition) error {
	d.Name = normalize(d.Name)
	if err := validateName(d.Name); err != nil {
		return err
	}
	if len(d.Paths) == 0 {
		d.Paths = defaultPaths(d.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[d.Name] = d
	return nil
}

// Parse normalizes s and returns it if it names a known stream.
func (r *Registry) Parse(s string) (string, error) {
	name := normalize(s)
	if name == "" {
		return "", ErrMissing
	}
	if !r.IsKnown(name) {
		return "", fmt.Errorf("%w: %q", ErrUnknown, s)
	}
	return name, nil
}

// IsKnown reports whether name is registered. No normalization is applied.
func (r *Registry) IsKnown(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.defs[name]
	return ok
}

// Get returns the definition for name.
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[name]
	return d, ok
}

// Paths returns the public page paths that display the stream. Unknown
// streams get the default layout.
func (r *Registry) Paths(name string) []string {
	if d, ok := r.Get(name); ok {
		return append([]string(nil), d.Paths...)
	}
	return defaultPaths(name)
}

// Names returns the registered stream names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.defs))
	for n := range r.defs {
		names = append(names, n)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Definitions returns all definitions sorted by name.
func (r *Registry) Definitions() []Definition {
	names := r.Names()
	out := make([]Definition, 0, len(names))
	for _, n := range names {
		if d, ok := r.Get(n); ok {
			out = append(out, d)
		}
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func defaultPaths(name string) []string {
	return []string{"/" + name, "/" + name + "/portfolio"}
}

func validateName(name string) error {
	if name == "" {
		return ErrMissing
	}
	if len(name) > maxNameLen {
		return fmt.Errorf("stream %q exceeds maximum length of %d characters", name, maxNameLen)
	}
	if !nameRe.MatchString(name) {
		return fmt.Errorf("stream %q is invalid: must consist of lowercase alphanumeric characters or hyphens", name)
	}
	return nil
}
