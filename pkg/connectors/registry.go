// pkg/connectors/registry.go
package connectors

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// SourceSpec is one connector entry in the registry file. A spec without a
// URL instantiates a stub, which keeps dev registry files trivial.
type SourceSpec struct {
	Name       string        `json:"name" yaml:"name"`
	URL        string        `json:"url" yaml:"url"`
	TimeoutSec int           `json:"timeout_sec" yaml:"timeout_sec"`
	Auth       AuthConfig    `json:"auth" yaml:"auth"`
	Mapping    MappingConfig `json:"mapping" yaml:"mapping"`
}

type registryFile struct {
	Sources []SourceSpec `json:"sources" yaml:"sources"`
}

// Registry is the ordered set of known source connectors. Order is
// significant: it defines the default source list and the aggregation
// order of fan-out responses. Replace swaps the whole set atomically so a
// file watcher can hot-reload it.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	byName map[string]Connector
}

func NewRegistry(conns ...Connector) *Registry {
	r := &Registry{}
	r.Replace(conns)
	return r
}

// Default returns the stub-backed registry used when no registry file is
// configured.
func Default() *Registry {
	return NewRegistry(
		&StubConnector{Source: "google_drive"},
		&StubConnector{Source: "notion"},
		&StubConnector{Source: "sharepoint"},
	)
}

func (r *Registry) Replace(conns []Connector) {
	order := make([]string, 0, len(conns))
	byName := make(map[string]Connector, len(conns))
	for _, c := range conns {
		if c == nil || c.Name() == "" {
			continue
		}
		if _, dup := byName[c.Name()]; dup {
			continue
		}
		order = append(order, c.Name())
		byName[c.Name()] = c
	}
	r.mu.Lock()
	r.order = order
	r.byName = byName
	r.mu.Unlock()
}

func (r *Registry) Lookup(name string) (Connector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[name]
	return c, ok
}

func (r *Registry) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Names returns the registered source names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Load reads connector specs from a YAML or JSON registry file and builds
// the connectors in file order.
func Load(path string) ([]Connector, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file registryFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(b, &file); err != nil {
			return nil, err
		}
	} else {
		if err := yaml.Unmarshal(b, &file); err != nil {
			return nil, fmt.Errorf("yaml parse: %w", err)
		}
	}
	if len(file.Sources) == 0 {
		return nil, fmt.Errorf("%s: no sources defined", path)
	}
	conns := make([]Connector, 0, len(file.Sources))
	for _, spec := range file.Sources {
		if spec.Name == "" {
			return nil, fmt.Errorf("%s: source with empty name", path)
		}
		if spec.URL == "" {
			conns = append(conns, &StubConnector{Source: spec.Name})
			continue
		}
		c, err := NewHTTP(spec)
		if err != nil {
			return nil, err
		}
		conns = append(conns, c)
	}
	return conns, nil
}

// LoadRegistry builds a registry from a registry file.
func LoadRegistry(path string) (*Registry, error) {
	conns, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewRegistry(conns...), nil
}
