package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/redis/go-redis/v9"
)

var ErrInsufficientCredits = errors.New("insufficient credits")

// CreditLedger tracks how many failures each scope may still submit.
type CreditLedger interface {
	Balance(ctx context.Context, scope string) (int64, error)
	// Consume takes one credit and returns the remaining balance, or
	// ErrInsufficientCredits when the balance is already zero.
	Consume(ctx context.Context, scope string) (int64, error)
	Grant(ctx context.Context, scope string, amount int64) (int64, error)
}

// consumeScript decrements only a positive balance so concurrent requests
// cannot drive it below zero.
var consumeScript = redis.NewScript(`
local v = tonumber(redis.call('GET', KEYS[1]) or '0')
if v <= 0 then
  return -1
end
return redis.call('DECR', KEYS[1])
`)

type redisCreditLedger struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisCreditLedger(client *redis.Client, keyPrefix string) CreditLedger {
	if keyPrefix == "" {
		keyPrefix = "faultline:credits:"
	}
	return &redisCreditLedger{client: client, keyPrefix: keyPrefix}
}

func (l *redisCreditLedger) key(scope string) string {
	return l.keyPrefix + scope
}

func (l *redisCreditLedger) Balance(ctx context.Context, scope string) (int64, error) {
	raw, err := l.client.Get(ctx, l.key(scope)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading credit balance: %w", err)
	}
	balance, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing credit balance %q: %w", raw, err)
	}
	return balance, nil
}

func (l *redisCreditLedger) Consume(ctx context.Context, scope string) (int64, error) {
	remaining, err := consumeScript.Run(ctx, l.client, []string{l.key(scope)}).Int64()
	if err != nil {
		return 0, fmt.Errorf("consuming credit: %w", err)
	}
	if remaining < 0 {
		return 0, ErrInsufficientCredits
	}
	return remaining, nil
}

func (l *redisCreditLedger) Grant(ctx context.Context, scope string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("grant amount must be positive, got %d", amount)
	}
	balance, err := l.client.IncrBy(ctx, l.key(scope), amount).Result()
	if err != nil {
		return 0, fmt.Errorf("granting credits: %w", err)
	}
	return balance, nil
}

// UnlimitedLedger is used when credit accounting is disabled.
type UnlimitedLedger struct{}

func (UnlimitedLedger) Balance(context.Context, string) (int64, error) {
	return math.MaxInt64, nil
}

func (UnlimitedLedger) Consume(context.Context, string) (int64, error) {
	return math.MaxInt64, nil
}

func (UnlimitedLedger) Grant(context.Context, string, int64) (int64, error) {
	return math.MaxInt64, nil
}
