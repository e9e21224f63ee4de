package sim

import "strings"

// Config type tags are namespaced; tags written by old simulator versions use
// the legacy prefix and are rewritten on read. Writes use the current prefix.
const (
	legacyTagPrefix  = "se.sics"
	currentTagPrefix = "org.contikios"
)

// Built-in collaborator tags.
const (
	BasicMoteTypeTag   = currentTagPrefix + ".motes.BasicMoteType"
	NullRadioMediumTag = currentTagPrefix + ".radiomediums.NullRadioMedium"
)

// rewriteLegacyTag maps a legacy-namespace type tag to the current namespace.
func rewriteLegacyTag(tag string) string {
	if strings.HasPrefix(tag, legacyTagPrefix) {
		return currentTagPrefix + tag[len(legacyTagPrefix):]
	}
	return tag
}

// Registry maps config type tags to collaborator factories. Registries are
// per-kernel: construct one, register extensions, and pass it to
// NewSimulation. There is no process-global table.
type Registry struct {
	moteTypes map[string]func() MoteType
	media     map[string]func(*Simulation) RadioMedium
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		moteTypes: make(map[string]func() MoteType),
		media:     make(map[string]func(*Simulation) RadioMedium),
	}
}

// DefaultRegistry returns a registry with the built-in collaborators.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterMoteType(BasicMoteTypeTag, func() MoteType { return &BasicMoteType{} })
	r.RegisterRadioMedium(NullRadioMediumTag, func(s *Simulation) RadioMedium { return NewNullRadioMedium(s) })
	return r
}

// RegisterMoteType binds a mote type factory to a config tag.
func (r *Registry) RegisterMoteType(tag string, factory func() MoteType) {
	r.moteTypes[tag] = factory
}

// RegisterRadioMedium binds a radio medium factory to a config tag.
func (r *Registry) RegisterRadioMedium(tag string, factory func(*Simulation) RadioMedium) {
	r.media[tag] = factory
}

func (r *Registry) moteTypeFactory(tag string) func() MoteType {
	return r.moteTypes[rewriteLegacyTag(tag)]
}

func (r *Registry) radioMediumFactory(tag string) func(*Simulation) RadioMedium {
	return r.media[rewriteLegacyTag(tag)]
}
