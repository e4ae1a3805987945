package sim

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"go.viam.com/flightcontrol/flight"
)

// Leg is one step of a scripted flight. It takes effect At after the script starts and lasts
// until the next leg.
type Leg struct {
	At      time.Duration
	Command flight.Command
	// Silent stops transmission: the previous command is still reported but stops being
	// refreshed, so it goes stale.
	Silent bool
}

// Pilot replays a script of operator commands. It implements flight.CommandSource.
type Pilot struct {
	mu      sync.Mutex
	clk     clock.Clock
	start   time.Time
	legs    []Leg
	current flight.Command
	sent    bool
}

// NewPilot starts the script at the clock's current time.
func NewPilot(clk clock.Clock, legs ...Leg) *Pilot {
	if clk == nil {
		clk = clock.New()
	}
	legs = append([]Leg(nil), legs...)
	sort.SliceStable(legs, func(i, j int) bool { return legs[i].At < legs[j].At })
	return &Pilot{clk: clk, start: clk.Now(), legs: legs}
}

// Latest returns the command of the active leg stamped with the current time, or the last
// transmitted command while the link is silent.
func (p *Pilot) Latest(ctx context.Context) (flight.Command, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.clk.Now()
	elapsed := now.Sub(p.start)

	active := -1
	for i, leg := range p.legs {
		if leg.At > elapsed {
			break
		}
		active = i
	}
	if active < 0 {
		return flight.Command{}, false
	}
	if p.legs[active].Silent {
		return p.current, p.sent
	}
	p.current = p.legs[active].Command
	p.current.Time = now
	p.sent = true
	return p.current, true
}
