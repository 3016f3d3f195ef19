package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmylchreest/classbell/internal/audio"
	"github.com/jmylchreest/classbell/internal/model"
)

// at returns a UTC time in January 2024; the 1st was a Monday.
func at(day, hour, minute, second int) time.Time {
	return time.Date(2024, 1, day, hour, minute, second, 0, time.UTC)
}

// fakeClock returns a fixed time, or the next scripted time while any remain.
type fakeClock struct {
	mu     sync.Mutex
	t      time.Time
	script []time.Time
}

func fixedClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func scriptedClock(times ...time.Time) *fakeClock {
	return &fakeClock{t: times[len(times)-1], script: times}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.script) > 0 {
		t := c.script[0]
		c.script = c.script[1:]
		return t
	}
	return c.t
}

// fakePlayer records plays and the peak number of concurrent plays.
type fakePlayer struct {
	mu        sync.Mutex
	plays     int
	active    int
	maxActive int
	paths     []string

	err      error
	hold     time.Duration // how long each play lasts
	waitFor  int           // block until this many plays are active, up to hold
	panicOn  int           // panic on this play number (1-based), 0 = never
	released chan struct{}
}

func (p *fakePlayer) Play(ctx context.Context, path string) error {
	p.mu.Lock()
	p.plays++
	n := p.plays
	p.active++
	if p.active > p.maxActive {
		p.maxActive = p.active
	}
	p.paths = append(p.paths, path)
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.active--
		p.mu.Unlock()
	}()

	if p.panicOn == n {
		panic(fmt.Sprintf("decoder exploded on play %d", n))
	}

	deadline := time.Now().Add(p.hold)
	for time.Now().Before(deadline) {
		p.mu.Lock()
		reached := p.waitFor > 0 && p.active >= p.waitFor
		p.mu.Unlock()
		if reached {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
	return p.err
}

func (p *fakePlayer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.plays
}

func (p *fakePlayer) peak() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxActive
}

// countingProber fails the first fails probes with ErrDeviceBusy.
type countingProber struct {
	mu     sync.Mutex
	fails  int
	probes int
}

func (p *countingProber) Probe() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probes++
	if p.fails > 0 {
		p.fails--
		return fmt.Errorf("%w: held by another process", audio.ErrDeviceBusy)
	}
	return nil
}

func (p *countingProber) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.probes
}

// outcomeLog collects recorded and announced outcomes.
type outcomeLog struct {
	mu       sync.Mutex
	outcomes []model.Outcome
	err      error
}

func (l *outcomeLog) Add(o model.Outcome) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outcomes = append(l.outcomes, o)
	return l.err
}

func (l *outcomeLog) NotifyOutcome(o model.Outcome) {
	_ = l.Add(o)
}

func (l *outcomeLog) all() []model.Outcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.Outcome(nil), l.outcomes...)
}

var errNoSoundCard = errors.New("no sound card")
