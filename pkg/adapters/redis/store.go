// Package redis stores flags in a Redis hash so several game processes can share one save.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/callgate/internal/logging"
	"github.com/aretw0/callgate/pkg/domain"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key the adapter writes.
const DefaultPrefix = "callgate:"

// Store implements ports.FlagStore and ports.Watchable over a Redis hash.
// Each flag is one hash field holding the JSON encoding of its value.
type Store struct {
	client   *backend.Client
	prefix   string
	save     string
	instance string
	logger   *slog.Logger
}

type Option func(*Store)

// WithLogger sets the logger that reports undecodable fields.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithSave selects which save slot the store reads and writes.
func WithSave(id string) Option {
	return func(s *Store) {
		s.save = id
	}
}

// New creates a new Redis store with options. It does not contact the server.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client:   client,
		prefix:   DefaultPrefix,
		save:     "default",
		instance: uuid.NewString(),
		logger:   logging.NewNop(),
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Open creates a store and waits for the server to answer PING.
// Connection attempts back off exponentially until ctx is done.
func Open(ctx context.Context, address, password string, db int, opts ...Option) (*Store, error) {
	s := New(address, password, db, opts...)

	ping := func() error {
		return s.client.Ping(ctx).Err()
	}
	if err := backoff.Retry(ping, backoff.WithContext(backoff.NewExponentialBackOff(), ctx)); err != nil {
		_ = s.client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", address, err)
	}
	return s, nil
}

// Client exposes the underlying client (shared with the Locker).
func (s *Store) Client() *backend.Client { return s.client }

func (s *Store) key() string {
	return s.prefix + "save:" + s.save
}

func (s *Store) channel() string {
	return s.key() + ":changed"
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (domain.Value, error) {
	raw, err := s.client.HGet(ctx, s.key(), key).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return domain.Value{}, domain.ErrFlagNotFound
		}
		return domain.Value{}, fmt.Errorf("failed to get flag from redis: %w", err)
	}
	return decodeValue(key, raw)
}

// Set writes value under key and announces the change to other instances.
func (s *Store) Set(ctx context.Context, key string, value domain.Value) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal flag %s: %w", key, err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key(), key, data)
	pipe.Publish(ctx, s.channel(), s.instance)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save flag to redis: %w", err)
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	pipe := s.client.TxPipeline()
	pipe.HDel(ctx, s.key(), key)
	pipe.Publish(ctx, s.channel(), s.instance)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete flag from redis: %w", err)
	}
	return nil
}

// Snapshot returns every flag of the save.
// Fields other apps wrote in a foreign encoding are logged and left out.
func (s *Store) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	all, err := s.client.HGetAll(ctx, s.key()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read flags from redis: %w", err)
	}

	snap := make(domain.Snapshot, len(all))
	for k, raw := range all {
		v, err := decodeValue(k, raw)
		if err != nil {
			s.logger.Warn("skipping undecodable flag", "key", k, "err", err)
			continue
		}
		if !v.IsZero() {
			snap[k] = v
		}
	}
	return snap, nil
}

// Watch signals when another instance changes the save. The channel is closed when ctx is done.
func (s *Store) Watch(ctx context.Context) (<-chan struct{}, error) {
	sub := s.client.Subscribe(ctx, s.channel())
	// Receive blocks until the subscription is confirmed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", s.channel(), err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				if msg.Payload == s.instance {
					continue
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func decodeValue(key, raw string) (domain.Value, error) {
	var v domain.Value
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return domain.Value{}, fmt.Errorf("flag %s holds an invalid value: %w", key, err)
	}
	return v, nil
}

// pingTimeout bounds a single health check.
const pingTimeout = 2 * time.Second

// Healthy reports whether the server answers PING.
func (s *Store) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return s.client.Ping(ctx).Err()
}
