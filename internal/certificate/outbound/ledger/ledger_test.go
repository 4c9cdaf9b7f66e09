package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/certsend/internal/certificate/entity"
	"github.com/shandysiswandi/certsend/internal/pkg/instrument"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewRedis(client, Config{Campaign: "spring", LockDuration: time.Minute, SentTTL: time.Hour}, instrument.NewNoop())
}

func TestRedis_Lifecycle(t *testing.T) {
	t.Parallel()

	mr, l := newTestLedger(t)
	ctx := context.Background()
	key := "ada@example.com|Ada Lovelace"

	state, err := l.Acquire(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, entity.DeliveryStateNone, state)

	state, err = l.Acquire(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, entity.DeliveryStateInProgress, state)

	require.NoError(t, l.MarkSent(ctx, key))

	state, err = l.Acquire(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, entity.DeliveryStateSent, state)

	got, err := mr.Get("certsend:ledger:spring:" + key)
	require.NoError(t, err)
	assert.Equal(t, "sent", got)
	assert.Equal(t, time.Hour, mr.TTL("certsend:ledger:spring:"+key))
}

func TestRedis_ReleaseAllowsRetry(t *testing.T) {
	t.Parallel()

	_, l := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, l.Release(ctx, "k"))

	state, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, entity.DeliveryStateNone, state)
}

func TestRedis_LockExpires(t *testing.T) {
	t.Parallel()

	mr, l := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	state, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, entity.DeliveryStateNone, state)
}

func TestRedis_UnknownValue(t *testing.T) {
	t.Parallel()

	mr, l := newTestLedger(t)
	require.NoError(t, mr.Set("certsend:ledger:spring:k", "garbage"))

	_, err := l.Acquire(context.Background(), "k")
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestRedis_Unavailable(t *testing.T) {
	t.Parallel()

	mr, l := newTestLedger(t)
	mr.Close()

	_, err := l.Acquire(context.Background(), "k")
	require.Error(t, err)
}
