package sim

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"
)

// defaultLogOutputBufferSize bounds the in-memory log output history kept for
// observers such as log visualizers.
const defaultLogOutputBufferSize = 40000

// EventCentral aggregates mote-level observation settings shared by
// collaborators, and round-trips the "events" config element.
type EventCentral struct {
	logOutputBufferSize int
}

func newEventCentral() *EventCentral {
	return &EventCentral{logOutputBufferSize: defaultLogOutputBufferSize}
}

// LogOutputBufferSize returns the configured log history bound.
func (c *EventCentral) LogOutputBufferSize() int {
	return c.logOutputBufferSize
}

// SetLogOutputBufferSize sets the log history bound.
func (c *EventCentral) SetLogOutputBufferSize(n int) {
	c.logOutputBufferSize = n
}

func (c *EventCentral) configXML() []*etree.Element {
	el := etree.NewElement("logoutput")
	el.SetText(strconv.Itoa(c.logOutputBufferSize))
	return []*etree.Element{el}
}

func (c *EventCentral) setConfigXML(config []*etree.Element) error {
	for _, el := range config {
		if el.Tag == "logoutput" {
			n, err := strconv.Atoi(el.Text())
			if err != nil {
				return &ConfigError{Element: "events", Err: fmt.Errorf("bad logoutput %q: %w", el.Text(), err)}
			}
			c.logOutputBufferSize = n
		}
	}
	return nil
}
