// Package redis backs the document store with Redis. Each document is a
// plain string value keyed by its path; CompareAndSwap runs inside a WATCH
// transaction so concurrent writers cannot interleave.
package redis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lalabot/delivery-api/internal/store"
	apperrors "github.com/lalabot/delivery-api/pkg/errors"
	"github.com/lalabot/delivery-api/pkg/metrics"
)

type Config struct {
	URL          string
	OpTimeout    time.Duration
	MaxRetries   int
	PoolSize     int
	MinIdleConns int
	Metrics      *metrics.Metrics
}

type Store struct {
	client    *redis.Client
	opTimeout time.Duration
	metrics   *metrics.Metrics
}

func NewStore(cfg Config) (*Store, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.MaxRetries = cfg.MaxRetries
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	opTimeout := cfg.OpTimeout
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}

	return &Store{client: client, opTimeout: opTimeout, metrics: cfg.Metrics}, nil
}

func (s *Store) Get(ctx context.Context, path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	val, err := s.client.Get(ctx, path).Bytes()
	if errors.Is(err, redis.Nil) {
		s.observe("get", nil)
		return nil, store.ErrNotFound
	}
	if err != nil {
		s.observe("get", err)
		return nil, wrapRemote("get", err)
	}
	s.observe("get", nil)
	return val, nil
}

func (s *Store) Set(ctx context.Context, path string, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	err := s.client.Set(ctx, path, value, 0).Err()
	s.observe("set", err)
	if err != nil {
		return wrapRemote("set", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	err := s.client.Del(ctx, path).Err()
	s.observe("delete", err)
	if err != nil {
		return wrapRemote("delete", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, path string) (map[string][]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	prefix := strings.TrimSuffix(path, "/") + "/"
	children := make(map[string][]byte)

	iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		child := strings.TrimPrefix(key, prefix)
		// Only immediate children; nested documents belong to deeper lists.
		if strings.Contains(child, "/") {
			continue
		}
		val, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, wrapRemote("list", err)
		}
		children[child] = val
	}
	if err := iter.Err(); err != nil {
		s.observe("list", err)
		return nil, wrapRemote("list", err)
	}
	s.observe("list", nil)
	return children, nil
}

func (s *Store) CompareAndSwap(ctx context.Context, path string, expected, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	txn := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, path).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			if expected != nil {
				return store.ErrCASMismatch
			}
		case err != nil:
			return err
		default:
			if expected == nil || !bytes.Equal(current, expected) {
				return store.ErrCASMismatch
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, path, value, 0)
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txn, path)
	s.observe("compare-and-swap", err)
	if errors.Is(err, store.ErrCASMismatch) {
		return store.ErrCASMismatch
	}
	if errors.Is(err, redis.TxFailedErr) {
		// Another writer touched the key between WATCH and EXEC.
		return store.ErrCASMismatch
	}
	if err != nil {
		return wrapRemote("compare-and-swap", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) observe(op string, err error) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	if err != nil && !errors.Is(err, store.ErrCASMismatch) {
		status = "error"
	}
	s.metrics.StoreOperations.WithLabelValues(op, status).Inc()
}

func wrapRemote(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Timeout("store "+op, err)
	}
	return apperrors.RemoteUnavailable(fmt.Errorf("store %s: %w", op, err))
}
