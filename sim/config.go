package sim

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"
)

// ConfigXML serializes the simulation into a <simulation> element: title,
// speed limit, random seed, startup delay, the radio medium, event central
// settings, and every mote type and mote. Collaborator subtrees are opaque to
// the kernel.
func (s *Simulation) ConfigXML() *etree.Element {
	root := etree.NewElement("simulation")

	title := root.CreateElement("title")
	title.SetText(s.title)

	if !s.speedLimitNone {
		limit := root.CreateElement("speedlimit")
		limit.SetText(strconv.FormatFloat(s.speedLimit, 'f', -1, 64))
	}

	seed := root.CreateElement("randomseed")
	if s.randomSeedGenerated {
		seed.SetText("generated")
	} else {
		seed.SetText(strconv.FormatInt(s.randomSeed, 10))
	}

	delay := root.CreateElement("motedelay_us")
	delay.SetText(strconv.FormatInt(s.maxMoteStartupDelay, 10))

	if s.radioMedium != nil {
		medium := root.CreateElement("radiomedium")
		medium.SetText(s.radioMediumTag(s.radioMedium))
		for _, child := range s.radioMedium.ConfigXML() {
			medium.AddChild(child)
		}
	}

	events := root.CreateElement("events")
	for _, child := range s.eventCentral.configXML() {
		events.AddChild(child)
	}

	for _, t := range s.moteTypes {
		mt := root.CreateElement("motetype")
		mt.SetText(s.moteTypeTag(t))
		for _, child := range t.ConfigXML(s) {
			mt.AddChild(child)
		}
	}

	for _, m := range s.motes {
		mote := root.CreateElement("mote")
		for _, child := range m.ConfigXML() {
			mote.AddChild(child)
		}
		typeID := mote.CreateElement("motetype_identifier")
		typeID.SetText(m.Type().Identifier())
	}

	return root
}

// SetConfigXML loads the simulation from a <simulation> element. Legacy type
// tags are rewritten to the current namespace before factory lookup. Motes
// with duplicate IDs are dropped with a warning. A non-nil manualSeed
// overrides the file's seed. Must be called while stopped.
func (s *Simulation) SetConfigXML(root *etree.Element, manualSeed *int64) error {
	for _, element := range root.ChildElements() {
		switch element.Tag {
		case "title":
			s.title = element.Text()

		case "speedlimit":
			text := element.Text()
			if text == "null" {
				s.SetSpeedLimit(nil)
			} else {
				limit, err := strconv.ParseFloat(text, 64)
				if err != nil {
					return &ConfigError{Element: "speedlimit", Err: err}
				}
				s.SetSpeedLimit(&limit)
			}

		case "randomseed":
			var newSeed int64
			if element.Text() == "generated" {
				s.randomSeedGenerated = true
				newSeed = rand.Int63()
			} else {
				seed, err := strconv.ParseInt(element.Text(), 10, 64)
				if err != nil {
					return &ConfigError{Element: "randomseed", Err: err}
				}
				newSeed = seed
			}
			if manualSeed != nil {
				newSeed = *manualSeed
			}
			s.SetRandomSeed(newSeed)

		case "motedelay":
			// Legacy unit: milliseconds.
			ms, err := strconv.ParseInt(element.Text(), 10, 64)
			if err != nil {
				return &ConfigError{Element: "motedelay", Err: err}
			}
			s.maxMoteStartupDelay = ms * MILLISECOND

		case "motedelay_us":
			us, err := strconv.ParseInt(element.Text(), 10, 64)
			if err != nil {
				return &ConfigError{Element: "motedelay_us", Err: err}
			}
			s.maxMoteStartupDelay = us

		case "radiomedium":
			tag := strings.TrimSpace(element.Text())
			medium, err := s.CreateRadioMedium(tag)
			if err != nil {
				return &ConfigError{Element: "radiomedium", Err: err}
			}
			if err := medium.SetConfigXML(element.ChildElements()); err != nil {
				return &ConfigError{Element: "radiomedium", Err: err}
			}
			s.SetRadioMedium(medium)

		case "events":
			if err := s.eventCentral.setConfigXML(element.ChildElements()); err != nil {
				return err
			}

		case "motetype":
			tag := strings.TrimSpace(element.Text())
			moteType, err := s.CreateMoteType(tag)
			if err != nil {
				return &ConfigError{Element: "motetype", Err: err}
			}
			if err := moteType.SetConfigXML(s, element.ChildElements()); err != nil {
				return err
			}
			s.AddMoteType(moteType)

		case "mote":
			var moteType MoteType
			for _, sub := range element.ChildElements() {
				if sub.Tag == "motetype_identifier" {
					moteType = s.MoteType(sub.Text())
					if moteType == nil {
						return &ConfigError{Element: "mote", Err: fmt.Errorf("no mote type %q for mote", sub.Text())}
					}
					break
				}
			}
			if moteType == nil {
				return &ConfigError{Element: "mote", Err: fmt.Errorf("no mote type specified for mote")}
			}

			mote, err := moteType.NewMote(s)
			if err != nil {
				return &ConfigError{Element: "mote", Err: err}
			}
			if err := mote.SetConfigXML(s, element.ChildElements()); err != nil {
				return err
			}
			if s.MoteWithID(mote.ID()) != nil {
				logrus.Warnf("ignoring duplicate mote ID: %d", mote.ID())
			} else {
				s.AddMote(mote)
			}
		}
	}

	if s.radioMedium != nil {
		s.radioMedium.SimulationFinishedLoading()
	}

	s.Observers.Notify(SimUpdate{Kind: ConfigChanged})

	// Run queued setup actions now, before any user-initiated start.
	s.polls.drain()

	return nil
}
