package content

import "sync"

// Turn selects the kind of content the rotation job sends.
type Turn int

const (
	TurnText Turn = iota
	TurnImage
	TurnVoice
	TurnAudio

	turns = 4
)

func (t Turn) String() string {
	switch t {
	case TurnText:
		return "text"
	case TurnImage:
		return "image"
	case TurnVoice:
		return "voice"
	case TurnAudio:
		return "audio"
	}
	return "unknown"
}

// Rotation cycles text, image, voice, audio.
type Rotation struct {
	mu   sync.Mutex
	turn Turn
}

// Next returns the current turn and advances the counter.
func (r *Rotation) Next() Turn {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.turn
	r.turn = (r.turn + 1) % turns
	return cur
}

func (r *Rotation) Current() Turn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.turn
}
