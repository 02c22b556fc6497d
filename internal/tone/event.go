// Package tone holds the convention clients use on top of the relay: a
// start/stop record carrying a frequency, the frequency-to-pan mapping and a
// registry of playing voices. The relay itself never looks at any of this.
package tone

import (
	"encoding/json"
	"math/rand"
)

type Action string

const (
	ActionStart Action = "start" // begin a tone at Frequency
	ActionStop  Action = "stop"  // end the tone at Frequency
)

// Frequencies are drawn from [MinFrequency, MaxFrequency); pan is centred on PanCenter.
const (
	MinFrequency = 400.0
	MaxFrequency = 800.0
	PanCenter    = 600.0
	panSpan      = 200.0
)

// Event is the payload clients exchange through the relay.
type Event struct {
	Action    Action  `json:"action"`
	Frequency float64 `json:"frequency"`
}

// Start builds a start event.
func Start(frequency float64) Event {
	return Event{Action: ActionStart, Frequency: frequency}
}

// Stop builds a stop event.
func Stop(frequency float64) Event {
	return Event{Action: ActionStop, Frequency: frequency}
}

// ToJSON marshals the event the way browser clients send it.
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Parse decodes a relayed payload. ok is false when the payload is not a
// usable event (bad JSON, unknown action, missing frequency); receivers take
// no action in that case.
func Parse(payload []byte) (Event, bool) {
	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return Event{}, false
	}
	if e.Frequency == 0 {
		return Event{}, false
	}
	switch e.Action {
	case ActionStart, ActionStop:
		return e, true
	default:
		return Event{}, false
	}
}

// Pan maps a frequency to a stereo position: 400Hz is hard left, 600Hz
// centre, 800Hz hard right. Out-of-range frequencies are clamped.
func Pan(frequency float64) float64 {
	pan := (frequency - PanCenter) / panSpan
	if pan < -1 {
		return -1
	}
	if pan > 1 {
		return 1
	}
	return pan
}

// RandomFrequency picks a frequency for a new client.
func RandomFrequency() float64 {
	return MinFrequency + rand.Float64()*(MaxFrequency-MinFrequency)
}
