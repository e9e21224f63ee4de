package sim

import "github.com/beevik/etree"

// NullRadioMedium is the built-in medium: it tracks registrations and drops
// all traffic. Useful for kernel-only simulations and tests.
type NullRadioMedium struct {
	motes []Mote
}

// NewNullRadioMedium returns an empty medium.
func NewNullRadioMedium(s *Simulation) *NullRadioMedium {
	return &NullRadioMedium{}
}

func (r *NullRadioMedium) RegisterMote(m Mote, s *Simulation) {
	r.motes = append(r.motes, m)
}

func (r *NullRadioMedium) UnregisterMote(m Mote, s *Simulation) {
	for i, reg := range r.motes {
		if reg == m {
			r.motes = append(r.motes[:i], r.motes[i+1:]...)
			return
		}
	}
}

// RegisteredMotes returns the motes currently attached to the medium.
func (r *NullRadioMedium) RegisteredMotes() []Mote {
	out := make([]Mote, len(r.motes))
	copy(out, r.motes)
	return out
}

func (r *NullRadioMedium) SimulationFinishedLoading() {
}

func (r *NullRadioMedium) Removed() {
	r.motes = nil
}

func (r *NullRadioMedium) ConfigXML() []*etree.Element {
	return nil
}

func (r *NullRadioMedium) SetConfigXML(config []*etree.Element) error {
	return nil
}
