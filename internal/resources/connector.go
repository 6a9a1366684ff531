package resources

import (
	"fmt"
	"sync"

	"github.com/aetherflow/aetherflow/internal/spec"
)

// Connector is a thin, stateful handle around an external driver.
type Connector interface {
	Close() error
}

// ConnectorCtor builds a Connector from a resolved resource's config/options.
type ConnectorCtor func(config, options map[string]any) (Connector, error)

// ConnectorRegistry is a (kind, driver) -> constructor map, the connector
// half of spec.md's "Registries" component.
type ConnectorRegistry struct {
	mu    sync.RWMutex
	items map[string]ConnectorCtor
}

func NewConnectorRegistry() *ConnectorRegistry {
	return &ConnectorRegistry{items: make(map[string]ConnectorCtor)}
}

func connectorKey(kind, driver string) string { return kind + "/" + driver }

func (r *ConnectorRegistry) Register(kind, driver string, ctor ConnectorCtor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[connectorKey(kind, driver)] = ctor
}

func (r *ConnectorRegistry) build(kind, driver string, config, options map[string]any) (Connector, error) {
	r.mu.RLock()
	ctor, ok := r.items[connectorKey(kind, driver)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("resources: no connector registered for kind=%s driver=%s", kind, driver)
	}
	return ctor(config, options)
}

// Builder drives the full per-resource pipeline and the connector cache
// policy ("per-run", "per-process", "disabled") described in spec.md §4.4 /
// §9 ("Lifetime of connectors").
type Builder struct {
	registry    *ConnectorRegistry
	hook        SecretsHook
	cachePolicy string

	processCacheMu sync.Mutex
	processCache   map[string]Connector
}

func NewBuilder(registry *ConnectorRegistry, hook SecretsHook, cachePolicy string) *Builder {
	return &Builder{registry: registry, hook: hook, cachePolicy: cachePolicy, processCache: map[string]Connector{}}
}

// BuildAll resolves every declared resource in the order given by order and
// instantiates its connector, returning name -> Connector.
func (b *Builder) BuildAll(resources map[string]spec.ResourceSpec, order []string, profiles spec.ProfilesFileSpec, env map[string]string) (map[string]Connector, error) {
	out := make(map[string]Connector, len(resources))
	for _, name := range order {
		r, ok := resources[name]
		if !ok {
			continue
		}
		var profile *spec.ProfileSpec
		if r.Profile != "" {
			if p, ok := profiles[r.Profile]; ok {
				profile = &p
			}
		}
		resolved, err := ResolveResource(r, profile, env, b.hook)
		if err != nil {
			return nil, fmt.Errorf("resources: build %q: %w", name, err)
		}

		conn, err := b.instantiate(resolved)
		if err != nil {
			return nil, fmt.Errorf("resources: instantiate %q: %w", name, err)
		}
		out[name] = conn
	}
	return out, nil
}

func (b *Builder) instantiate(r Resolved) (Connector, error) {
	if b.cachePolicy != "process" {
		return b.registry.build(r.Kind, r.Driver, r.Config, r.Options)
	}

	key := fmt.Sprintf("%s/%s/%v/%v", r.Kind, r.Driver, r.Config, r.Options)
	b.processCacheMu.Lock()
	defer b.processCacheMu.Unlock()
	if c, ok := b.processCache[key]; ok {
		return c, nil
	}
	c, err := b.registry.build(r.Kind, r.Driver, r.Config, r.Options)
	if err != nil {
		return nil, err
	}
	b.processCache[key] = c
	return c, nil
}

// CloseAll best-effort closes every connector; errors are collected, not raised.
func CloseAll(conns map[string]Connector) []error {
	var errs []error
	for name, c := range conns {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	return errs
}
