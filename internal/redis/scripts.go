package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// compareAndUpdate conditionally replaces one hash field. The read and
// the conditional write execute server-side as one unit, so concurrent
// callers racing on the same field always leave the true extreme behind.
var compareAndUpdate = goredis.NewScript(`
local key = KEYS[1]
local field = ARGV[1]
local value = ARGV[2]
local op = ARGV[3]
local current = redis.call('HGET', key, field)
if current == false then
  redis.call('HSET', key, field, value)
  return 1
elseif op == '>' and tonumber(value) > tonumber(current) then
  redis.call('HSET', key, field, value)
  return 1
elseif op == '<' and tonumber(value) < tonumber(current) then
  redis.call('HSET', key, field, value)
  return 1
end
return 0
`)

// updateIfLowest is the scalar variant of compareAndUpdate, used for
// plain string keys holding a number.
var updateIfLowest = goredis.NewScript(`
local key = KEYS[1]
local new = ARGV[1]
local current = redis.call('GET', key)
if current == false or tonumber(new) < tonumber(current) then
  redis.call('SET', key, new)
  return 1
end
return 0
`)

// UpdateIfGreater sets field to value when the field is absent or value
// exceeds the stored number. Evaluated atomically in a single round trip.
func (c *Client) UpdateIfGreater(ctx context.Context, key, field string, value float64) error {
	if err := compareAndUpdate.Run(ctx, c.rdb, []string{key}, field, value, ">").Err(); err != nil {
		return fmt.Errorf("update if greater on %s.%s: %w", key, field, err)
	}

	return nil
}

// UpdateIfLess sets field to value when the field is absent or value is
// below the stored number. Evaluated atomically in a single round trip.
func (c *Client) UpdateIfLess(ctx context.Context, key, field string, value float64) error {
	if err := compareAndUpdate.Run(ctx, c.rdb, []string{key}, field, value, "<").Err(); err != nil {
		return fmt.Errorf("update if less on %s.%s: %w", key, field, err)
	}

	return nil
}

// UpdateIfLowest sets key to value when the key is absent or value is
// below the stored number. Reports whether the write was applied.
func (c *Client) UpdateIfLowest(ctx context.Context, key string, value float64) (bool, error) {
	applied, err := updateIfLowest.Run(ctx, c.rdb, []string{key}, value).Int()
	if err != nil {
		return false, fmt.Errorf("update if lowest on %s: %w", key, err)
	}

	return applied == 1, nil
}
