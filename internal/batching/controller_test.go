package batching_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-ofd/internal/batching"
)

func withInitial(n int) batching.Config {
	cfg := batching.DefaultConfig()
	cfg.Initial = n
	return cfg
}

func TestTargetStaysWithinBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, cfg := range []batching.Config{
		batching.DefaultConfig(),
		{Step: 3, MaxSteps: 5, HistoryWeight: 50, MaxDelay: 100 * time.Microsecond, Initial: 9},
		{Step: 1, MaxSteps: 2, HistoryWeight: 0, MaxDelay: time.Microsecond, Initial: 100},
	} {
		require.NoError(t, cfg.Validate())
		c := batching.New(cfg)
		for i := 0; i < 20000; i++ {
			if rng.Intn(2) == 0 {
				c.Congested()
			}
			c.Record(rng.Intn(5000), time.Duration(rng.Intn(3000))*time.Microsecond)

			require.GreaterOrEqual(t, c.Target(), cfg.Step)
			require.LessOrEqual(t, c.Target(), c.Max())
			require.LessOrEqual(t, c.Max(), cfg.Step*cfg.MaxSteps)
			require.Zero(t, c.Target()%cfg.Step)
		}
	}
}

func TestInitialTargetIsQuantized(t *testing.T) {
	assert.Equal(t, 10, batching.New(withInitial(0)).Target())
	assert.Equal(t, 20, batching.New(withInitial(25)).Target())
	assert.Equal(t, 20, batching.New(withInitial(25)).Max())
}

func TestSlowBatchShrinksTarget(t *testing.T) {
	c := batching.New(withInitial(50))
	c.Congested()
	c.Record(1000, 2*time.Millisecond)
	assert.Equal(t, 40, c.Target())
	assert.False(t, c.Increasing())

	floor := batching.New(withInitial(10))
	floor.Record(1000, 2*time.Millisecond)
	assert.Equal(t, 10, floor.Target())
}

func TestBetterScoreGrowsOnlyWhenCongested(t *testing.T) {
	c := batching.New(withInitial(10))
	c.Congested()
	c.Record(100, 10*time.Microsecond)
	assert.Equal(t, 20, c.Target())
	assert.Equal(t, 20, c.Max())

	c = batching.New(withInitial(50))
	c.Record(100, 10*time.Microsecond)
	assert.Equal(t, 40, c.Target())
	assert.Equal(t, 50, c.Max())
}

func TestWorseScoreFlipsTrend(t *testing.T) {
	c := batching.New(withInitial(50))
	c.Record(100, 10*time.Microsecond)
	require.True(t, c.Increasing())
	require.Equal(t, 40, c.Target())

	c.Record(1, 100*time.Microsecond)
	assert.False(t, c.Increasing())
	assert.Equal(t, 40, c.Target())

	c.Record(0, 100*time.Microsecond)
	assert.True(t, c.Increasing())
}

func TestCongestionIsResetAfterDecision(t *testing.T) {
	c := batching.New(withInitial(10))
	c.Congested()
	c.Record(100, 10*time.Microsecond)
	require.Equal(t, 20, c.Target())

	// Still improving, but no full read since the last decision.
	c.Record(1000, 10*time.Microsecond)
	assert.Equal(t, 10, c.Target())
}

func TestBatchLifecycle(t *testing.T) {
	base := time.Unix(0, 0)
	now := base
	c := batching.New(withInitial(10)).WithClock(func() time.Time { return now })

	for i := 0; i < 10; i++ {
		require.False(t, c.Due())
		c.Add()
	}
	assert.True(t, c.Due())
	assert.Equal(t, 10, c.Batched())

	now = base.Add(5 * time.Microsecond)
	c.Complete()
	assert.Zero(t, c.Batched())
	assert.False(t, c.Due())
	assert.Equal(t, 10, c.Target())
}

func TestIdleForcesFlushAfterFullPass(t *testing.T) {
	c := batching.New(withInitial(10))
	c.Add()
	c.Add()

	assert.False(t, c.Idle(2))
	assert.False(t, c.Idle(2))
	assert.True(t, c.Idle(2))
	assert.Zero(t, c.Batched())
	assert.False(t, c.Increasing())

	c.Idle(2)
	c.Active()
	assert.False(t, c.Idle(2))
	assert.False(t, c.Idle(2))
}

func TestConfigValidate(t *testing.T) {
	bad := []func(*batching.Config){
		func(c *batching.Config) { c.Step = 0 },
		func(c *batching.Config) { c.MaxSteps = -1 },
		func(c *batching.Config) { c.HistoryWeight = 101 },
		func(c *batching.Config) { c.MaxDelay = 0 },
		func(c *batching.Config) { c.Initial = -5 },
	}
	for i, mutate := range bad {
		cfg := batching.DefaultConfig()
		mutate(&cfg)
		assert.Error(t, cfg.Validate(), "case %d", i)
	}
	assert.NoError(t, batching.DefaultConfig().Validate())
}
