package tone

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

// SelfKey identifies the local voice in a Registry.
const SelfKey = "self"

// Voice is one playing tone.
type Voice struct {
	Key       string
	Frequency float64
	Pan       float64
	StartedAt time.Time
}

// Registry maps a voice key to its playing voice. Local and remote tones
// share it; the local one just uses SelfKey.
type Registry struct {
	mu     sync.Mutex
	voices map[string]*Voice
	now    func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		voices: make(map[string]*Voice),
		now:    time.Now,
	}
}

// KeyFor is the key remote voices are tracked under. Two peers that picked
// the same frequency share a key.
func KeyFor(frequency float64) string {
	return strconv.FormatFloat(frequency, 'f', -1, 64)
}

// Start begins a voice. A key that is already playing is left alone and
// started is false.
func (r *Registry) Start(key string, frequency, pan float64) (voice *Voice, started bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.voices[key]; ok {
		return v, false
	}
	v := &Voice{Key: key, Frequency: frequency, Pan: pan, StartedAt: r.now()}
	r.voices[key] = v
	return v, true
}

// Stop ends a voice, returning it and how long it played.
func (r *Registry) Stop(key string) (*Voice, time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.voices[key]
	if !ok {
		return nil, 0, false
	}
	delete(r.voices, key)
	return v, r.now().Sub(v.StartedAt), true
}

// Apply feeds a remote event into the registry. It reports whether anything changed.
func (r *Registry) Apply(e Event) bool {
	key := KeyFor(e.Frequency)
	switch e.Action {
	case ActionStart:
		_, started := r.Start(key, e.Frequency, Pan(e.Frequency))
		return started
	case ActionStop:
		_, _, stopped := r.Stop(key)
		return stopped
	}
	return false
}

// Active returns the playing voices ordered by frequency.
func (r *Registry) Active() []*Voice {
	r.mu.Lock()
	defer r.mu.Unlock()

	voices := make([]*Voice, 0, len(r.voices))
	for _, v := range r.voices {
		voices = append(voices, v)
	}
	sort.Slice(voices, func(i, j int) bool { return voices[i].Frequency < voices[j].Frequency })
	return voices
}

// Len returns the number of playing voices.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.voices)
}
