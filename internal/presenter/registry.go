package presenter

import (
	"embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed schemas/*.yaml
var schemasFS embed.FS

var registry = &Registry{}

// Registry holds the embedded entity schemas indexed by name.
type Registry struct {
	once    sync.Once
	byName  map[string]*EntitySchema
	loadErr error
}

func (r *Registry) load() {
	r.once.Do(func() {
		r.byName = make(map[string]*EntitySchema)

		entries, err := schemasFS.ReadDir("schemas")
		if err != nil {
			r.loadErr = fmt.Errorf("reading schemas dir: %w", err)
			return
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			data, err := schemasFS.ReadFile("schemas/" + entry.Name())
			if err != nil {
				continue
			}
			schema := new(EntitySchema)
			if err := yaml.Unmarshal(data, schema); err != nil {
				r.loadErr = fmt.Errorf("parsing %s: %w", entry.Name(), err)
				continue
			}
			r.byName[schema.Entity] = schema
		}
	})
}

// LookupByName returns a schema by entity name (e.g. "post").
func LookupByName(name string) *EntitySchema {
	registry.load()
	return registry.byName[name]
}

// LoadError reports the first schema that failed to parse, if any.
func LoadError() error {
	registry.load()
	return registry.loadErr
}
