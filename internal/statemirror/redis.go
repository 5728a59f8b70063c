// Package statemirror copies wallet state snapshots into Redis so other
// processes can read the latest one and follow changes.
package statemirror

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ombima56/TranspaCharity/internal/domain"
)

const EventWalletState = "wallet.state"

// Client is the part of *redis.Client the mirror uses.
type Client interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// StateEvent is the message published on every state change.
type StateEvent struct {
	EventType string             `json:"eventType"`
	State     domain.WalletState `json:"state"`
	Timestamp time.Time          `json:"timestamp"`
}

// Mirror writes snapshots from a background goroutine. Only the latest
// pending snapshot is kept; intermediate ones are superseded.
type Mirror struct {
	rdb     Client
	key     string
	channel string
	timeout time.Duration
	logger  *zap.Logger

	pending chan domain.WalletState
	mu      sync.Mutex
}

func NewMirror(rdb Client, key, channel string, logger *zap.Logger) *Mirror {
	return &Mirror{
		rdb:     rdb,
		key:     key,
		channel: channel,
		timeout: 3 * time.Second,
		logger:  logger,
		pending: make(chan domain.WalletState, 1),
	}
}

// NewRedisClient connects to Redis and checks the connection.
func NewRedisClient(addr, password string, db int, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            addr,
		Password:        password,
		DB:              db,
		PoolSize:        10,
		PoolTimeout:     4 * time.Second,
		ConnMaxIdleTime: 5 * time.Minute,
		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.Info("Redis connected", zap.String("addr", addr))
	return client, nil
}

// Enqueue queues state for writing, replacing any snapshot not yet written.
// It never blocks and can be registered directly as a broadcast listener.
func (m *Mirror) Enqueue(state domain.WalletState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case <-m.pending:
	default:
	}
	m.pending <- state
}

// Run writes queued snapshots until ctx is cancelled.
func (m *Mirror) Run(ctx context.Context) {
	m.logger.Info("Starting wallet state mirror",
		zap.String("key", m.key),
		zap.String("channel", m.channel))
	for {
		select {
		case state := <-m.pending:
			if err := m.Write(ctx, state); err != nil {
				m.logger.Warn("Failed to mirror wallet state", zap.Error(err))
			}
		case <-ctx.Done():
			m.logger.Info("Stopping wallet state mirror")
			return
		}
	}
}

// Write stores state under the key and publishes it on the channel.
func (m *Mirror) Write(ctx context.Context, state domain.WalletState) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	snapshot, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := m.rdb.Set(ctx, m.key, snapshot, 0).Err(); err != nil {
		return fmt.Errorf("failed to store state: %w", err)
	}

	payload, err := json.Marshal(StateEvent{
		EventType: EventWalletState,
		State:     state,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := m.rdb.Publish(ctx, m.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish state: %w", err)
	}

	m.logger.Debug("Wallet state mirrored",
		zap.Bool("connected", state.IsConnected),
		zap.String("account", state.AccountHex()))
	return nil
}
