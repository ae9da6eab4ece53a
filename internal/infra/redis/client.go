package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/locator/internal/core/domain"
)

// Client wraps Redis operations for the shared position feed.
// A device gateway stores the latest fix per device and publishes every new fix.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`

	// PublishDeviceID, when set, makes this instance publish every acquired
	// fix under that device id. FixTTL bounds how long the stored fix lives.
	PublishDeviceID string        `yaml:"publish_device_id"`
	FixTTL          time.Duration `yaml:"fix_ttl"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Key helpers
func fixKey(deviceID string) string {
	return fmt.Sprintf("location:fix:%s", deviceID)
}

func updatesChannel(deviceID string) string {
	return fmt.Sprintf("location:updates:%s", deviceID)
}

// EncodeFix serializes a fix for storage and publishing.
func EncodeFix(loc domain.Location) ([]byte, error) {
	return json.Marshal(loc)
}

// DecodeFix parses a stored or published fix.
func DecodeFix(data []byte) (domain.Location, error) {
	var loc domain.Location
	if err := json.Unmarshal(data, &loc); err != nil {
		return domain.Location{}, fmt.Errorf("invalid fix payload: %w", err)
	}
	return loc, nil
}

// SaveFix stores the latest fix for a device and publishes it to subscribers.
func (c *Client) SaveFix(ctx context.Context, deviceID string, loc domain.Location, ttl time.Duration) error {
	data, err := EncodeFix(loc)
	if err != nil {
		return err
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, fixKey(deviceID), data, ttl)
		pipe.Publish(ctx, updatesChannel(deviceID), data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save fix failed: %w", err)
	}
	return nil
}

// LatestFix returns the stored fix for a device, if any.
func (c *Client) LatestFix(ctx context.Context, deviceID string) (domain.Location, bool, error) {
	data, err := c.rdb.Get(ctx, fixKey(deviceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Location{}, false, nil
	}
	if err != nil {
		return domain.Location{}, false, fmt.Errorf("get failed: %w", err)
	}

	loc, err := DecodeFix(data)
	if err != nil {
		return domain.Location{}, false, err
	}
	return loc, true, nil
}

// Subscription delivers fixes published for one device.
type Subscription struct {
	ps  *redis.PubSub
	out chan domain.Location
}

// C returns the fix stream. It closes when the subscription is closed.
func (s *Subscription) C() <-chan domain.Location {
	return s.out
}

// Close unsubscribes.
func (s *Subscription) Close() error {
	return s.ps.Close()
}

// SubscribeFixes subscribes to live fixes for a device. The subscription is
// confirmed before returning so no fix published afterwards is missed.
func (c *Client) SubscribeFixes(ctx context.Context, deviceID string) (*Subscription, error) {
	ps := c.rdb.Subscribe(ctx, updatesChannel(deviceID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe failed: %w", err)
	}

	sub := &Subscription{ps: ps, out: make(chan domain.Location)}
	go func() {
		defer close(sub.out)
		for msg := range ps.Channel() {
			loc, err := DecodeFix([]byte(msg.Payload))
			if err != nil {
				continue
			}
			select {
			case sub.out <- loc:
			case <-ctx.Done():
				return
			}
		}
	}()

	return sub, nil
}

// Subscribe is SubscribeFixes in channel form, for consumers that only need the stream.
func (c *Client) Subscribe(ctx context.Context, deviceID string) (<-chan domain.Location, func() error, error) {
	sub, err := c.SubscribeFixes(ctx, deviceID)
	if err != nil {
		return nil, nil, err
	}
	return sub.C(), sub.Close, nil
}
