package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/certsend/internal/certificate/entity"
	"github.com/shandysiswandi/certsend/internal/pkg/instrument"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrInvalidState = errors.New("ledger: invalid state")

const (
	defaultLockDuration = 10 * time.Minute
	defaultSentTTL      = 30 * 24 * time.Hour
)

// Redis records delivered recipients so a re-run of the same campaign does
// not send a certificate twice.
type Redis struct {
	client       *redis.Client
	prefix       string
	lockDuration time.Duration
	sentTTL      time.Duration
	ins          instrument.Instrumentation
}

// Config configures key naming and expiry.
type Config struct {
	// Campaign scopes the keys, typically one per certificate run.
	Campaign string
	// LockDuration bounds how long an in-flight recipient is reserved.
	LockDuration time.Duration
	// SentTTL is how long a delivery is remembered.
	SentTTL time.Duration
}

func NewRedis(client *redis.Client, cfg Config, ins instrument.Instrumentation) *Redis {
	r := &Redis{
		client:       client,
		prefix:       "certsend:ledger:" + cfg.Campaign + ":",
		lockDuration: cfg.LockDuration,
		sentTTL:      cfg.SentTTL,
		ins:          ins,
	}
	if r.lockDuration <= 0 {
		r.lockDuration = defaultLockDuration
	}
	if r.sentTTL <= 0 {
		r.sentTTL = defaultSentTTL
	}

	return r
}

// Acquire reserves the recipient. DeliveryStateNone means the caller owns
// the reservation and must call MarkSent or Release.
func (r *Redis) Acquire(ctx context.Context, key string) (state entity.DeliveryState, err error) {
	ctx, span := r.startSpan(ctx, "Acquire")
	defer func() { r.endSpan(span, err) }()

	fk := r.prefix + key

	acquired, err := r.client.SetNX(ctx, fk, entity.DeliveryStateInProgress.String(), r.lockDuration).Result()
	if err != nil {
		return entity.DeliveryStateNone, err
	}
	if acquired {
		return entity.DeliveryStateNone, nil
	}

	result, err := r.client.Get(ctx, fk).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET
		acquired, err = r.client.SetNX(ctx, fk, entity.DeliveryStateInProgress.String(), r.lockDuration).Result()
		if err != nil {
			return entity.DeliveryStateNone, err
		}
		if acquired {
			return entity.DeliveryStateNone, nil
		}
		return entity.DeliveryStateNone, ErrInvalidState
	}
	if err != nil {
		return entity.DeliveryStateNone, err
	}

	switch result {
	case entity.DeliveryStateInProgress.String():
		return entity.DeliveryStateInProgress, nil
	case entity.DeliveryStateSent.String():
		return entity.DeliveryStateSent, nil
	default:
		return entity.DeliveryStateNone, ErrInvalidState
	}
}

// MarkSent remembers a delivered recipient.
func (r *Redis) MarkSent(ctx context.Context, key string) (err error) {
	ctx, span := r.startSpan(ctx, "MarkSent")
	defer func() { r.endSpan(span, err) }()

	return r.client.Set(ctx, r.prefix+key, entity.DeliveryStateSent.String(), r.sentTTL).Err()
}

// Release drops a reservation so the recipient is attempted again next run.
func (r *Redis) Release(ctx context.Context, key string) (err error) {
	ctx, span := r.startSpan(ctx, "Release")
	defer func() { r.endSpan(span, err) }()

	return r.client.Del(ctx, r.prefix+key).Err()
}

func (r *Redis) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return r.ins.Tracer("certificate.outbound.ledger").Start(ctx, name)
}

func (r *Redis) endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Noop never skips anyone; used when no Redis is configured.
type Noop struct{}

func (Noop) Acquire(context.Context, string) (entity.DeliveryState, error) {
	return entity.DeliveryStateNone, nil
}

func (Noop) MarkSent(context.Context, string) error {
	return nil
}

func (Noop) Release(context.Context, string) error {
	return nil
}
