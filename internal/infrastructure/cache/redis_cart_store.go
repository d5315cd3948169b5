package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const defaultCartKeyPrefix = "cart:"

// setLineScript overwrites the quantity of an existing line. ARGV[3] is '1'
// to select it, '0' to deselect it, and empty to keep the selection.
var setLineScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
if ARGV[3] == '1' then
  redis.call('SADD', KEYS[2], ARGV[1])
elseif ARGV[3] == '0' then
  redis.call('SREM', KEYS[2], ARGV[1])
end
return 1
`)

// setSelectedScript changes membership of the selected set, refusing lines
// without a quantity so the set never references an absent line
var setSelectedScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
  redis.call('SREM', KEYS[2], ARGV[1])
  return 0
end
if ARGV[2] == '1' then
  redis.call('SADD', KEYS[2], ARGV[1])
else
  redis.call('SREM', KEYS[2], ARGV[1])
end
return 1
`)

// transientReplyPrefixes are server replies that clear up on their own
var transientReplyPrefixes = []string{
	"LOADING", "BUSY", "TRYAGAIN", "CLUSTERDOWN", "READONLY", "MASTERDOWN",
}

// RedisCartStore implements cart.AuthenticatedStore on Redis.
// Per user it keeps a hash item_id -> quantity and a set of selected item ids.
// Both keys share the {uid} hash tag so they live in one cluster slot.
type RedisCartStore struct {
	client    redis.UniversalClient
	keyPrefix string
	opTimeout time.Duration
	logger    *zap.Logger
	metrics   *telemetry.CartMetrics
}

var _ cart.AuthenticatedStore = (*RedisCartStore)(nil)

// RedisCartStoreOption configures a RedisCartStore
type RedisCartStoreOption func(*RedisCartStore)

// WithKeyPrefix overrides the "cart:" key prefix
func WithKeyPrefix(prefix string) RedisCartStoreOption {
	return func(s *RedisCartStore) {
		if prefix != "" {
			s.keyPrefix = prefix
		}
	}
}

// WithOpTimeout bounds each store call
func WithOpTimeout(d time.Duration) RedisCartStoreOption {
	return func(s *RedisCartStore) {
		if d > 0 {
			s.opTimeout = d
		}
	}
}

// WithStoreLogger sets the logger used for skipped records
func WithStoreLogger(logger *zap.Logger) RedisCartStoreOption {
	return func(s *RedisCartStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStoreMetrics records backend call durations
func WithStoreMetrics(m *telemetry.CartMetrics) RedisCartStoreOption {
	return func(s *RedisCartStore) {
		s.metrics = m
	}
}

// NewRedisCartStoreWithClient creates a store with an existing Redis client
func NewRedisCartStoreWithClient(client redis.UniversalClient, opts ...RedisCartStoreOption) *RedisCartStore {
	s := &RedisCartStore{
		client:    client,
		keyPrefix: defaultCartKeyPrefix,
		opTimeout: time.Second,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisCartStore) qtyKey(uid cart.UserID) string {
	return fmt.Sprintf("%s{%d}:qty", s.keyPrefix, uid)
}

func (s *RedisCartStore) selKey(uid cart.UserID) string {
	return fmt.Sprintf("%s{%d}:sel", s.keyPrefix, uid)
}

func field(id cart.ItemID) string {
	return strconv.FormatInt(int64(id), 10)
}

// call runs fn under the per-operation timeout and classifies its error
func (s *RedisCartStore) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	s.metrics.RecordBackendDuration(ctx, op, time.Since(start), err)

	if err == nil || errors.Is(err, cart.ErrLineNotFound) {
		return err
	}
	return cart.NewBackendError(op, isTransient(err), err)
}

// Add atomically increments the quantity with HINCRBY
func (s *RedisCartStore) Add(ctx context.Context, uid cart.UserID, id cart.ItemID, qty int64) error {
	if err := validateLine(id, qty); err != nil {
		return err
	}
	return s.call(ctx, "add", func(ctx context.Context) error {
		return s.client.HIncrBy(ctx, s.qtyKey(uid), field(id), qty).Err()
	})
}

// Set overwrites an existing quantity
func (s *RedisCartStore) Set(ctx context.Context, uid cart.UserID, id cart.ItemID, qty int64) error {
	return s.setLine(ctx, "set", uid, id, qty, "")
}

// Update overwrites quantity and selection of an existing line in one script
func (s *RedisCartStore) Update(ctx context.Context, uid cart.UserID, id cart.ItemID, qty int64, selected bool) error {
	return s.setLine(ctx, "update", uid, id, qty, selectedFlag(selected))
}

func (s *RedisCartStore) setLine(ctx context.Context, op string, uid cart.UserID, id cart.ItemID, qty int64, flag string) error {
	if err := validateLine(id, qty); err != nil {
		return err
	}
	return s.call(ctx, op, func(ctx context.Context) error {
		keys := []string{s.qtyKey(uid), s.selKey(uid)}
		n, err := setLineScript.Run(ctx, s.client, keys, field(id), qty, flag).Int64()
		if err != nil {
			return err
		}
		if n == 0 {
			return cart.ErrLineNotFound
		}
		return nil
	})
}

func selectedFlag(selected bool) string {
	if selected {
		return "1"
	}
	return "0"
}

// Remove deletes the quantity and the selection in one MULTI/EXEC
func (s *RedisCartStore) Remove(ctx context.Context, uid cart.UserID, id cart.ItemID) error {
	if err := cart.ValidateItemID(id); err != nil {
		return err
	}
	return s.call(ctx, "remove", func(ctx context.Context) error {
		var hdel *redis.IntCmd
		_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			hdel = pipe.HDel(ctx, s.qtyKey(uid), field(id))
			pipe.SRem(ctx, s.selKey(uid), field(id))
			return nil
		})
		if err != nil {
			return err
		}
		if hdel.Val() == 0 {
			return cart.ErrLineNotFound
		}
		return nil
	})
}

// SetSelected adds or removes the item from the selected set
func (s *RedisCartStore) SetSelected(ctx context.Context, uid cart.UserID, id cart.ItemID, selected bool) error {
	if err := cart.ValidateItemID(id); err != nil {
		return err
	}
	return s.call(ctx, "set_selected", func(ctx context.Context) error {
		keys := []string{s.qtyKey(uid), s.selKey(uid)}
		n, err := setSelectedScript.Run(ctx, s.client, keys, field(id), selectedFlag(selected)).Int64()
		if err != nil {
			return err
		}
		if n == 0 {
			return cart.ErrLineNotFound
		}
		return nil
	})
}

// SelectAll unions every quantity key into the selected set, or deletes the
// set. The HKEYS read and the SADD are separate round trips, so a line added
// in between may stay unselected.
func (s *RedisCartStore) SelectAll(ctx context.Context, uid cart.UserID, selected bool) error {
	return s.call(ctx, "select_all", func(ctx context.Context) error {
		if !selected {
			return s.client.Del(ctx, s.selKey(uid)).Err()
		}

		keys, err := s.client.HKeys(ctx, s.qtyKey(uid)).Result()
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			return nil
		}
		members := make([]interface{}, len(keys))
		for i, k := range keys {
			members[i] = k
		}
		return s.client.SAdd(ctx, s.selKey(uid), members...).Err()
	})
}

// Read snapshots the hash and the set in one MULTI/EXEC
func (s *RedisCartStore) Read(ctx context.Context, uid cart.UserID) (cart.Cart, error) {
	var out cart.Cart
	err := s.call(ctx, "read", func(ctx context.Context) error {
		var (
			qty *redis.MapStringStringCmd
			sel *redis.StringSliceCmd
		)
		_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			qty = pipe.HGetAll(ctx, s.qtyKey(uid))
			sel = pipe.SMembers(ctx, s.selKey(uid))
			return nil
		})
		if err != nil {
			return err
		}
		out = s.join(uid, qty.Val(), sel.Val())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Ping checks connectivity
func (s *RedisCartStore) Ping(ctx context.Context) error {
	return s.call(ctx, "ping", func(ctx context.Context) error {
		return s.client.Ping(ctx).Err()
	})
}

// Close releases the underlying client
func (s *RedisCartStore) Close() error {
	return s.client.Close()
}

// join builds cart lines; unparsable or non-positive records are skipped
func (s *RedisCartStore) join(uid cart.UserID, quantities map[string]string, selected []string) cart.Cart {
	sel := make(map[string]struct{}, len(selected))
	for _, m := range selected {
		sel[m] = struct{}{}
	}

	out := make(cart.Cart, len(quantities))
	for k, v := range quantities {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil || id <= 0 {
			s.logger.Warn("skipping malformed cart field", zap.Int64("user_id", int64(uid)), zap.String("field", k))
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			s.logger.Warn("skipping invalid cart quantity",
				zap.Int64("user_id", int64(uid)),
				zap.Int64("item_id", id),
				zap.String("value", v),
			)
			continue
		}
		_, isSelected := sel[k]
		out[cart.ItemID(id)] = cart.Line{ItemID: cart.ItemID(id), Quantity: n, Selected: isSelected}
	}
	return out
}

func validateLine(id cart.ItemID, qty int64) error {
	if err := cart.ValidateItemID(id); err != nil {
		return err
	}
	return cart.ValidateQuantity(qty)
}

// isTransient tells retryable failures (network, timeouts, server busy
// states) from fatal ones (WRONGTYPE, script errors, overflow)
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, redis.ErrPoolTimeout) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var rerr redis.Error
	if errors.As(err, &rerr) {
		msg := rerr.Error()
		for _, prefix := range transientReplyPrefixes {
			if strings.HasPrefix(msg, prefix) {
				return true
			}
		}
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
