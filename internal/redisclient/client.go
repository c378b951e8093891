package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/release_lock.lua
var releaseLockScript string

//go:embed scripts/extend_lock.lua
var extendLockScript string

//go:embed scripts/set_if_version.lua
var setIfVersionScript string

var (
	// ErrLockHeld is returned when another writer owns the supplier lock
	ErrLockHeld = errors.New("supplier is locked by another operation")
	// ErrLockUnavailable is returned when the lock could not be reached at all
	ErrLockUnavailable = errors.New("supplier lock unavailable")
)

const (
	dashboardKey        = "dashboard:summary"
	dashboardVersionKey = "dashboard:version"

	// IdempotencyPending is the value of a reserved key whose request is in flight
	IdempotencyPending = "pending"
)

type Client struct {
	rdb           *redis.Client
	releaseScript *redis.Script
	extendScript  *redis.Script
	setScript     *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		releaseScript: redis.NewScript(releaseLockScript),
		extendScript:  redis.NewScript(extendLockScript),
		setScript:     redis.NewScript(setIfVersionScript),
	}, nil
}

// Ping checks the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Lock is a held single-writer lock on one supplier
type Lock struct {
	client *Client
	key    string
	token  string
}

// LockSupplier takes the single-writer lock for a supplier.
// Returns ErrLockHeld if another operation holds it.
func (c *Client) LockSupplier(ctx context.Context, supplierID uuid.UUID, ttl time.Duration) (*Lock, error) {
	key := fmt.Sprintf("lock:supplier:%s", supplierID)
	token := uuid.New().String()

	ok, err := c.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLockUnavailable, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	return &Lock{client: c, key: key, token: token}, nil
}

// WithSupplierLock runs fn while holding the supplier lock, renewing it
// every ttl/2 until fn returns. fn is not run if the lock cannot be taken.
func (c *Client) WithSupplierLock(ctx context.Context, supplierID uuid.UUID, ttl time.Duration, fn func() error) error {
	lock, err := c.LockSupplier(ctx, supplierID, ttl)
	if err != nil {
		return err
	}

	renewCtx, stopRenew := context.WithCancel(context.Background())
	renewed := make(chan struct{})
	go func() {
		defer close(renewed)
		lock.keepAlive(renewCtx, ttl)
	}()

	defer func() {
		stopRenew()
		<-renewed
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = lock.Release(releaseCtx)
	}()

	return fn()
}

// keepAlive extends the lock every ttl/2 until ctx ends or ownership is lost
func (l *Lock) keepAlive(ctx context.Context, ttl time.Duration) {
	interval := ttl / 2
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			extendCtx, cancel := context.WithTimeout(ctx, interval)
			ok, err := l.Extend(extendCtx, ttl)
			cancel()
			if err != nil || !ok {
				return
			}
		}
	}
}

// Extend pushes the lock expiry out if it is still owned
func (l *Lock) Extend(ctx context.Context, ttl time.Duration) (bool, error) {
	result, err := l.client.extendScript.Run(ctx, l.client.rdb, []string{l.key}, l.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("extend lock script failed: %w", err)
	}
	return result == 1, nil
}

// Release frees the lock if it is still owned by this holder
func (l *Lock) Release(ctx context.Context) error {
	if _, err := l.client.releaseScript.Run(ctx, l.client.rdb, []string{l.key}, l.token).Result(); err != nil {
		return fmt.Errorf("release lock script failed: %w", err)
	}
	return nil
}

// ScorecardVersion returns the change counter of a supplier. Read it before
// loading the supplier and pass it to SetScorecard.
func (c *Client) ScorecardVersion(ctx context.Context, supplierID uuid.UUID) (int64, error) {
	return c.version(ctx, scorecardVersionKey(supplierID))
}

// SetScorecard caches the rendered view of a supplier unless the supplier
// changed since version was read. Reports whether the view was stored.
func (c *Client) SetScorecard(ctx context.Context, supplierID uuid.UUID, version int64, payload []byte, ttl time.Duration) (bool, error) {
	return c.setIfVersion(ctx, scorecardKey(supplierID), scorecardVersionKey(supplierID), version, payload, ttl)
}

// GetScorecard returns a cached supplier view, or nil on a miss
func (c *Client) GetScorecard(ctx context.Context, supplierID uuid.UUID) ([]byte, error) {
	payload, err := c.rdb.Get(ctx, scorecardKey(supplierID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return payload, err
}

// InvalidateSupplier bumps the change counters and drops the cached views
// affected by a supplier change
func (c *Client) InvalidateSupplier(ctx context.Context, supplierID uuid.UUID) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, scorecardVersionKey(supplierID))
		pipe.Incr(ctx, dashboardVersionKey)
		pipe.Del(ctx, scorecardKey(supplierID), dashboardKey)
		return nil
	})
	return err
}

// DashboardVersion returns the change counter across all suppliers
func (c *Client) DashboardVersion(ctx context.Context) (int64, error) {
	return c.version(ctx, dashboardVersionKey)
}

// SetDashboard caches the dashboard summary unless any supplier changed
// since version was read
func (c *Client) SetDashboard(ctx context.Context, version int64, payload []byte, ttl time.Duration) (bool, error) {
	return c.setIfVersion(ctx, dashboardKey, dashboardVersionKey, version, payload, ttl)
}

// GetDashboard returns the cached dashboard summary, or nil on a miss
func (c *Client) GetDashboard(ctx context.Context) ([]byte, error) {
	payload, err := c.rdb.Get(ctx, dashboardKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return payload, err
}

func (c *Client) version(ctx context.Context, key string) (int64, error) {
	v, err := c.rdb.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (c *Client) setIfVersion(ctx context.Context, key, versionKey string, version int64, payload []byte, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, nil
	}
	result, err := c.setScript.Run(ctx, c.rdb, []string{key, versionKey}, version, payload, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("set if version script failed: %w", err)
	}
	return result == 1, nil
}

// ReserveIdempotencyKey claims a key for an in-flight request. Returns false
// if the key is already reserved or completed.
func (c *Client) ReserveIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, idempotencyKey(key), IdempotencyPending, ttl).Result()
}

// SetIdempotencyKey stores the result of a completed request
func (c *Client) SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.rdb.Set(ctx, idempotencyKey(key), value, ttl).Err()
}

// GetIdempotencyKey returns the value stored for an idempotency key, or "" if
// unset. A reserved key that has not completed reads as IdempotencyPending.
func (c *Client) GetIdempotencyKey(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, idempotencyKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

// ReleaseIdempotencyKey frees a reservation whose request failed
func (c *Client) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, idempotencyKey(key)).Err()
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("idempotency:%s", key)
}

func scorecardVersionKey(supplierID uuid.UUID) string {
	return fmt.Sprintf("scorecard:version:%s", supplierID)
}

func scorecardKey(supplierID uuid.UUID) string {
	return fmt.Sprintf("scorecard:%s", supplierID)
}
