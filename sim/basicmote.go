package sim

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"
)

// BasicMoteType is the built-in application-level mote blueprint. It carries
// no firmware; it exists so configurations can be loaded and exercised
// without an external emulator collaborator.
type BasicMoteType struct {
	identifier  string
	description string
}

// NewBasicMoteType returns a blueprint with the given identifier.
func NewBasicMoteType(identifier string) *BasicMoteType {
	return &BasicMoteType{identifier: identifier, description: "Basic Mote Type #" + identifier}
}

func (t *BasicMoteType) Identifier() string {
	return t.identifier
}

// SetIdentifier renames the blueprint.
func (t *BasicMoteType) SetIdentifier(identifier string) {
	t.identifier = identifier
}

func (t *BasicMoteType) NewMote(s *Simulation) (Mote, error) {
	return &BasicMote{id: s.nextMoteID(), typ: t}, nil
}

func (t *BasicMoteType) ConfigXML(s *Simulation) []*etree.Element {
	identifier := etree.NewElement("identifier")
	identifier.SetText(t.identifier)
	description := etree.NewElement("description")
	description.SetText(t.description)
	return []*etree.Element{identifier, description}
}

func (t *BasicMoteType) SetConfigXML(s *Simulation, config []*etree.Element) error {
	for _, el := range config {
		switch el.Tag {
		case "identifier":
			t.identifier = el.Text()
		case "description":
			t.description = el.Text()
		}
	}
	if t.identifier == "" {
		return &ConfigError{Element: "motetype", Err: fmt.Errorf("missing identifier")}
	}
	return nil
}

// BasicMote is the mote produced by BasicMoteType: an identifier, a clock
// drift, and nothing else.
type BasicMote struct {
	id    int
	drift int64
	typ   *BasicMoteType
}

func (m *BasicMote) ID() int {
	return m.id
}

func (m *BasicMote) Type() MoteType {
	return m.typ
}

func (m *BasicMote) Removed() {
}

// SetClockDrift implements ClockMote.
func (m *BasicMote) SetClockDrift(drift int64) {
	m.drift = drift
}

// ClockDrift implements ClockMote.
func (m *BasicMote) ClockDrift() int64 {
	return m.drift
}

func (m *BasicMote) ConfigXML() []*etree.Element {
	id := etree.NewElement("id")
	id.SetText(strconv.Itoa(m.id))
	return []*etree.Element{id}
}

func (m *BasicMote) SetConfigXML(s *Simulation, config []*etree.Element) error {
	for _, el := range config {
		if el.Tag == "id" {
			id, err := strconv.Atoi(el.Text())
			if err != nil {
				return &ConfigError{Element: "mote", Err: fmt.Errorf("bad mote id %q: %w", el.Text(), err)}
			}
			m.id = id
		}
	}
	return nil
}

func (m *BasicMote) String() string {
	return fmt.Sprintf("Basic Mote %d", m.id)
}
