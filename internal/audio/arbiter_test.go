package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProber fails until its fail budget is spent.
type scriptedProber struct {
	mu     sync.Mutex
	fails  int
	probes int
}

func (p *scriptedProber) Probe() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probes++
	if p.fails > 0 {
		p.fails--
		return fmt.Errorf("%w: device held", ErrDeviceBusy)
	}
	return nil
}

func (p *scriptedProber) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.probes
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeExclusive, m)

	m, err = ParseMode("advisory")
	require.NoError(t, err)
	assert.Equal(t, ModeAdvisory, m)

	_, err = ParseMode("shared")
	assert.Error(t, err)
}

func TestArbiter_StartsBusy(t *testing.T) {
	a := NewArbiter(nil, ModeExclusive, nil)
	assert.True(t, a.Busy())
	assert.Equal(t, ModeExclusive, a.Mode())
}

func TestArbiter_CheckProbesOnlyWhileBusy(t *testing.T) {
	prober := &scriptedProber{fails: 2}
	a := NewArbiter(prober, ModeExclusive, nil)

	assert.Equal(t, GateBusy, a.Check())
	assert.True(t, a.Busy())
	assert.Equal(t, GateBusy, a.Check())
	assert.True(t, a.Busy())

	assert.Equal(t, GateCleared, a.Check())
	assert.False(t, a.Busy())

	// Flag clear: no further probes
	assert.Equal(t, GateOpen, a.Check())
	assert.Equal(t, GateOpen, a.Check())
	assert.Equal(t, 3, prober.count())
}

func TestArbiter_ReleaseClearsFlagUnconditionally(t *testing.T) {
	a := NewArbiter(&scriptedProber{fails: 100}, ModeAdvisory, nil)
	require.True(t, a.Busy())

	require.NoError(t, a.Acquire(context.Background()))
	a.Release()
	assert.False(t, a.Busy())

	// Stray releases never set the flag or panic
	a.Release()
	assert.False(t, a.Busy())
}

func TestArbiter_FlagOnlySetByFailedProbe(t *testing.T) {
	a := NewArbiter(ProberFunc(func() error { return nil }), ModeExclusive, nil)

	assert.Equal(t, GateCleared, a.Check())
	for i := 0; i < 5; i++ {
		assert.Equal(t, GateOpen, a.Check())
		require.NoError(t, a.Acquire(context.Background()))
		a.Release()
		assert.False(t, a.Busy())
	}
}

func TestArbiter_ExclusiveSerialisesPlayback(t *testing.T) {
	a := NewArbiter(nil, ModeExclusive, nil)

	var active, maxActive atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !assert.NoError(t, a.Acquire(context.Background())) {
				return
			}
			n := active.Add(1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			active.Add(-1)
			a.Release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive.Load())
}

func TestArbiter_AdvisoryAllowsConcurrentHolders(t *testing.T) {
	a := NewArbiter(nil, ModeAdvisory, nil)

	require.NoError(t, a.Acquire(context.Background()))
	require.NoError(t, a.Acquire(context.Background()))
	a.Release()
	a.Release()
}

func TestArbiter_AcquireHonoursContext(t *testing.T) {
	a := NewArbiter(nil, ModeExclusive, nil)
	require.NoError(t, a.Acquire(context.Background()))
	defer a.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := a.Acquire(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestGate_String(t *testing.T) {
	assert.Equal(t, "busy", GateBusy.String())
	assert.Equal(t, "cleared", GateCleared.String())
	assert.Equal(t, "open", GateOpen.String())
	assert.Equal(t, "gate(7)", Gate(7).String())
}
