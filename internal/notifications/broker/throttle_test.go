package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ToFood/tofood-zip/internal/types"
)

type fakeRedis struct {
	setResults []bool
	setErr     error
	ttls       []time.Duration
	keys       []string
	exps       []time.Duration
}

func (f *fakeRedis) SetNX(_ context.Context, key string, _ interface{}, exp time.Duration) *redis.BoolCmd {
	f.keys = append(f.keys, key)
	f.exps = append(f.exps, exp)
	if f.setErr != nil {
		return redis.NewBoolResult(false, f.setErr)
	}
	ok := f.setResults[0]
	f.setResults = f.setResults[1:]
	return redis.NewBoolResult(ok, nil)
}

func (f *fakeRedis) PTTL(context.Context, string) *redis.DurationCmd {
	ttl := f.ttls[0]
	f.ttls = f.ttls[1:]
	return redis.NewDurationResult(ttl, nil)
}

func throttledConfig(ms int) types.BrokerServiceConfig {
	cfg := emailConfig(types.BrokerSmtp)
	cfg.MinMillisecondsBetweenSends = ms
	return cfg
}

func TestRedisGate_AcquiresFreeSlot(t *testing.T) {
	client := &fakeRedis{setResults: []bool{true}}
	g := NewRedisGate(client, "worker-1")

	require.NoError(t, g.Wait(context.Background(), throttledConfig(250)))
	assert.Equal(t, []string{"notifications:throttle:3"}, client.keys)
	assert.Equal(t, []time.Duration{250 * time.Millisecond}, client.exps)
}

func TestRedisGate_WaitsOutRemainingTTL(t *testing.T) {
	client := &fakeRedis{
		setResults: []bool{false, false, false, true},
		ttls:       []time.Duration{120 * time.Millisecond, -2 * time.Nanosecond, -1 * time.Nanosecond},
	}
	sleeps := &recordedSleeps{}
	g := NewRedisGate(client, "worker-1")
	g.sleep = sleeps.sleep

	require.NoError(t, g.Wait(context.Background(), throttledConfig(250)))
	assert.Len(t, client.keys, 4)
	assert.Equal(t, []time.Duration{120 * time.Millisecond, 250 * time.Millisecond}, sleeps.waits)
}

func TestRedisGate_NoIntervalSkipsRedis(t *testing.T) {
	client := &fakeRedis{}
	g := NewRedisGate(client, "worker-1")

	require.NoError(t, g.Wait(context.Background(), throttledConfig(0)))
	assert.Empty(t, client.keys)
}

func TestRedisGate_ClientError(t *testing.T) {
	client := &fakeRedis{setErr: errors.New("connection refused")}
	g := NewRedisGate(client, "worker-1")

	err := g.Wait(context.Background(), throttledConfig(100))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notifications:throttle:3")
}

func TestRedisGate_CancelledWhileWaiting(t *testing.T) {
	client := &fakeRedis{setResults: []bool{false}, ttls: []time.Duration{time.Hour}}
	g := NewRedisGate(client, "worker-1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, g.Wait(ctx, throttledConfig(int(time.Hour/time.Millisecond))), context.Canceled)
}

func TestProcessGate_SpacesSends(t *testing.T) {
	g := NewProcessGate()
	cfg := throttledConfig(50)

	start := time.Now()
	require.NoError(t, g.Wait(context.Background(), cfg))
	require.NoError(t, g.Wait(context.Background(), cfg))
	require.NoError(t, g.Wait(context.Background(), cfg))

	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestProcessGate_ConfigsAreIndependent(t *testing.T) {
	g := NewProcessGate()
	a := throttledConfig(int(time.Hour / time.Millisecond))
	b := a
	b.ID = 4

	require.NoError(t, g.Wait(context.Background(), a))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, g.Wait(ctx, b))
}

func TestProcessGate_ZeroIntervalPasses(t *testing.T) {
	g := NewProcessGate()
	for range 100 {
		require.NoError(t, g.Wait(context.Background(), throttledConfig(0)))
	}
}
