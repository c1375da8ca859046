// Package locker serializes the celebration flows that read state, validate,
// and then write. Creation reads the donor's full history and recomputes
// totals, so two concurrent creations that both read the same total could
// jointly exceed a legal limit; resolution must invoke the payment processor
// at most once per celebration. Locks are named by key ("donor:<id>",
// "celebration:<id>") so both flows share one mechanism.
package locker

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	dErrors "celebrate/pkg/domain-errors"
)

const (
	defaultLockTTL     = 10 * time.Second
	defaultAcquireWait = 5 * time.Second
	retryInterval      = 25 * time.Millisecond
)

// Memory serializes keys within a single process.
type Memory struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewMemory() *Memory {
	return &Memory{locks: make(map[string]*sync.Mutex)}
}

func (m *Memory) Acquire(_ context.Context, key string) (func(), error) {
	m.mu.Lock()
	lock, ok := m.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[key] = lock
	}
	m.mu.Unlock()

	lock.Lock()
	return lock.Unlock, nil
}

// Redis serializes keys across processes with a SET NX lease. The lease TTL
// bounds how long a crashed holder can block a key.
type Redis struct {
	client      *redis.Client
	ttl         time.Duration
	acquireWait time.Duration
}

// RedisOption configures the Redis locker.
type RedisOption func(*Redis)

// WithTTL overrides the lock lease duration.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) { r.ttl = ttl }
}

// WithAcquireWait bounds how long Acquire retries before giving up.
func WithAcquireWait(d time.Duration) RedisOption {
	return func(r *Redis) { r.acquireWait = d }
}

func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{
		client:      client,
		ttl:         defaultLockTTL,
		acquireWait: defaultAcquireWait,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	lockKey := "lock:" + key
	token := uuid.NewString()
	deadline := time.Now().Add(r.acquireWait)

	for {
		ok, err := r.client.SetNX(ctx, lockKey, token, r.ttl).Result()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "acquire lock")
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, dErrors.Newf(dErrors.CodeConflict, "%s has an operation in flight", key)
		}
		select {
		case <-ctx.Done():
			return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "acquire lock")
		case <-time.After(retryInterval):
		}
	}

	release := func() {
		// Release only our own lease; an expired lock may already belong to
		// another holder.
		r.client.Eval(context.Background(), `
			if redis.call("get", KEYS[1]) == ARGV[1] then
				return redis.call("del", KEYS[1])
			end
			return 0
		`, []string{lockKey}, token)
	}
	return release, nil
}

// Postgres serializes keys across processes with session-level advisory
// locks, so replicas sharing a database serialize without Redis. The lock is
// held on a dedicated pooled connection from Acquire until release, covering
// the caller's whole read-validate-persist span.
type Postgres struct {
	pool        *pgxpool.Pool
	acquireWait time.Duration
}

// PostgresOption configures the Postgres locker.
type PostgresOption func(*Postgres)

// WithPostgresAcquireWait bounds how long Acquire blocks on a held lock.
func WithPostgresAcquireWait(d time.Duration) PostgresOption {
	return func(p *Postgres) { p.acquireWait = d }
}

func NewPostgres(pool *pgxpool.Pool, opts ...PostgresOption) *Postgres {
	p := &Postgres{
		pool:        pool,
		acquireWait: defaultAcquireWait,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AdvisoryKey hashes a lock key into the bigint namespace pg_advisory_lock
// expects. fnv-64a keeps the mapping stable across processes and releases.
func AdvisoryKey(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64())
}

func (p *Postgres) Acquire(ctx context.Context, key string) (func(), error) {
	// The advisory lock is scoped to the session, so it needs its own
	// connection for its whole lifetime; the pool must not hand the
	// connection to another caller while the lock is held.
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "acquire lock connection")
	}

	lockID := AdvisoryKey(key)
	lockCtx, cancel := context.WithTimeout(ctx, p.acquireWait)
	defer cancel()

	if _, err := conn.Exec(lockCtx, "SELECT pg_advisory_lock($1)", lockID); err != nil {
		conn.Release()
		if lockCtx.Err() != nil && ctx.Err() == nil {
			return nil, dErrors.Newf(dErrors.CodeConflict, "%s has an operation in flight", key)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "acquire advisory lock")
	}

	release := func() {
		// Unlock on a fresh context: the caller's may already be cancelled,
		// and an unreleased session lock blocks the key until the connection
		// dies.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = conn.Exec(unlockCtx, "SELECT pg_advisory_unlock($1)", lockID)
		conn.Release()
	}
	return release, nil
}
