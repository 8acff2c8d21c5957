package messaging

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"awning-service/internal/logger"
	"awning-service/internal/types"
)

// Settings are the optional startup overrides read from the "settings"
// hash. Zero fields mean the hash carried no override.
type Settings struct {
	RainThreshold  int
	LightThreshold int
	RotationMs     int
}

type RedisClient struct {
	client *redis.Client
	logger *logger.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewRedisClient(host string, port int, l *logger.Logger) *RedisClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisClient{
		client: redis.NewClient(&redis.Options{
			Addr: fmt.Sprintf("%s:%d", host, port),
			DB:   0,
		}),
		logger: l,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (r *RedisClient) Connect() error {
	r.logger.Infof("Attempting to connect to Redis at %s", r.client.Options().Addr)

	if err := r.client.Ping(r.ctx).Err(); err != nil {
		return fmt.Errorf("Redis connection failed: %w", err)
	}
	r.logger.Infof("Successfully connected to Redis")
	return nil
}

// GetSettings reads threshold and rotation overrides from the
// "settings" hash. Missing fields are left at zero so the caller keeps
// its configured values; a field that is present but not an integer is
// an error.
func (r *RedisClient) GetSettings() (Settings, error) {
	var s Settings

	fields := []struct {
		name string
		dst  *int
	}{
		{"awning.rain-threshold", &s.RainThreshold},
		{"awning.light-threshold", &s.LightThreshold},
		{"awning.rotation-ms", &s.RotationMs},
	}

	for _, f := range fields {
		value, err := r.client.HGet(r.ctx, "settings", f.name).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return Settings{}, fmt.Errorf("failed to get setting %s: %w", f.name, err)
		}

		n, err := strconv.Atoi(value)
		if err != nil {
			return Settings{}, fmt.Errorf("invalid setting %s=%q: %w", f.name, value, err)
		}
		*f.dst = n
		r.logger.Infof("Settings override %s=%d", f.name, n)
	}

	return s, nil
}

// publishHashSet atomically updates a hash field and publishes a notification
func (r *RedisClient) publishHashSet(hash, field string, value interface{}, channel, payload string) error {
	pipe := r.client.Pipeline()
	pipe.HSet(r.ctx, hash, field, value)
	pipe.Publish(r.ctx, channel, payload)
	_, err := pipe.Exec(r.ctx)
	return err
}

func (r *RedisClient) PublishMotorState(state types.MotorState) error {
	r.logger.Debugf("Publishing motor state: %s", state)

	if err := r.publishHashSet("awning", "motor:state", string(state), "awning", "motor:state"); err != nil {
		r.logger.Warnf("Failed to publish motor state: %v", err)
		return err
	}
	return nil
}

func (r *RedisClient) PublishStatus(report types.StatusReport) error {
	timestamp := time.Now().Format(time.RFC3339)

	pipe := r.client.Pipeline()
	pipe.HSet(r.ctx, "awning", "command:level", strconv.FormatBool(report.CommandLevel))
	pipe.HSet(r.ctx, "awning", "motor:running", strconv.FormatBool(report.MotorRunning))
	pipe.HSet(r.ctx, "awning", "motor:state", string(report.MotorState))
	pipe.HSet(r.ctx, "awning", "sensor:rain", report.Rain)
	pipe.HSet(r.ctx, "awning", "sensor:light", report.Light)
	pipe.HSet(r.ctx, "awning", "status:timestamp", timestamp)
	pipe.Publish(r.ctx, "awning", "status")
	_, err := pipe.Exec(r.ctx)

	if err != nil {
		r.logger.Warnf("Failed to publish status: %v", err)
		return err
	}
	r.logger.Debugf("Published status at %s", timestamp)
	return nil
}

func (r *RedisClient) Close() error {
	r.logger.Infof("Closing Redis client")
	r.cancel()
	return r.client.Close()
}
