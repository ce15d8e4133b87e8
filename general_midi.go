package main

import (
	"fmt"
	"sort"
	"strings"
)

// General MIDI percussion keys usable as metronome clicks
// Reference: https://computermusicresource.com/GM.Percussion.KeyMap.html
const (
	SideStick    = 37 // C#1 - Side Stick
	Cowbell      = 56 // Ab2 - Cowbell
	HiBongo      = 60 // C3 - Hi Bongo
	LowBongo     = 61 // C#3 - Low Bongo
	HighAgogo    = 67 // G3 - High Agogo
	LowAgogo     = 68 // Ab3 - Low Agogo
	Claves       = 75 // Eb4 - Claves
	HiWoodBlock  = 76 // E4 - Hi Wood Block
	LowWoodBlock = 77 // F4 - Low Wood Block
)

// ClickVoice is a pair of percussion keys: one for the first beat of a
// measure and one for the other beats.
type ClickVoice struct {
	Name   string
	Accent uint8
	Beat   uint8
}

var clickVoices = map[string]ClickVoice{
	"woodblock": {Name: "woodblock", Accent: HiWoodBlock, Beat: LowWoodBlock},
	"agogo":     {Name: "agogo", Accent: HighAgogo, Beat: LowAgogo},
	"bongo":     {Name: "bongo", Accent: HiBongo, Beat: LowBongo},
	"claves":    {Name: "claves", Accent: Claves, Beat: SideStick},
	"cowbell":   {Name: "cowbell", Accent: Cowbell, Beat: SideStick},
}

// DefaultClickVoice is used when no voice is chosen
var DefaultClickVoice = clickVoices["woodblock"]

// LookupClickVoice finds a click voice by name, case-insensitively. An
// empty name is the default voice.
func LookupClickVoice(name string) (ClickVoice, error) {
	if name == "" {
		return DefaultClickVoice, nil
	}
	voice, ok := clickVoices[strings.ToLower(name)]
	if !ok {
		return ClickVoice{}, fmt.Errorf("unknown click voice %q (available: %s)", name, strings.Join(ClickVoiceNames(), ", "))
	}
	return voice, nil
}

// ClickVoiceNames lists the available voices in alphabetical order.
func ClickVoiceNames() []string {
	names := make([]string, 0, len(clickVoices))
	for name := range clickVoices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// percussionName returns the GM name of a click key.
func percussionName(key uint8) string {
	switch key {
	case SideStick:
		return "Side Stick"
	case Cowbell:
		return "Cowbell"
	case HiBongo:
		return "Hi Bongo"
	case LowBongo:
		return "Low Bongo"
	case HighAgogo:
		return "High Agogo"
	case LowAgogo:
		return "Low Agogo"
	case Claves:
		return "Claves"
	case HiWoodBlock:
		return "Hi Wood Block"
	case LowWoodBlock:
		return "Low Wood Block"
	}
	return fmt.Sprintf("Unknown (%d)", key)
}

func (v ClickVoice) String() string {
	return fmt.Sprintf("%s (%s / %s)", v.Name, percussionName(v.Accent), percussionName(v.Beat))
}
