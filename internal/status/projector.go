package status

import (
	"sync"
	"time"

	"draftcrane-agent/internal/domain"
)

// Projector holds the current SaveStatus for one editing session and fans
// transitions out to subscribers. Snapshot is synchronous and side-effect
// free; Set notifies subscribers outside the lock so a slow listener cannot
// stall the save path.
type Projector struct {
	mu        sync.RWMutex
	current   domain.SaveStatus
	listeners map[int]func(domain.SaveStatus)
	nextID    int
}

func NewProjector() *Projector {
	return &Projector{
		current:   domain.Idle(),
		listeners: make(map[int]func(domain.SaveStatus)),
	}
}

// Snapshot returns the current status.
func (p *Projector) Snapshot() domain.SaveStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Set records a transition and notifies every subscriber.
func (p *Projector) Set(s domain.SaveStatus) {
	p.mu.Lock()
	p.current = s
	listeners := make([]func(domain.SaveStatus), 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
}

// Subscribe registers a listener for future transitions and returns an
// unsubscribe function.
func (p *Projector) Subscribe(fn func(domain.SaveStatus)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// recentWindow is how long a completed save still reads as "just now".
const recentWindow = 30 * time.Second

// Label renders the status for the UI indicator: empty for idle, "Saving…"
// while a save is in flight, "Saved just now" or "Saved 15:04" after, and
// the error message on failure.
func Label(s domain.SaveStatus, now time.Time) string {
	switch s.State {
	case domain.StateIdle:
		return ""
	case domain.StateSaving:
		return "Saving…"
	case domain.StateSaved:
		if now.Sub(s.SavedAt) < recentWindow {
			return "Saved just now"
		}
		return "Saved " + s.SavedAt.Format("15:04")
	case domain.StateError:
		return s.Message
	default:
		return ""
	}
}
