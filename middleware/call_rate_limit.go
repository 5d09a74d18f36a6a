package middleware

import (
	"context"
	"time"

	"dealdialer/config"
	"dealdialer/models"
	"dealdialer/utils"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/sirupsen/logrus"
)

// CallRateLimiter throttles call initiation per banker. Outbound dials
// cost real telephony minutes, so a runaway client must not be able to
// burn through a campaign.
func CallRateLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.AppConfig.RateLimitStartCall,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			// Banker is set by the JWT middleware
			banker := c.Locals("banker").(*models.Banker)
			return utils.GenerateRateLimitKey(banker.ID, "", c.Path())
		},
		LimitReached: func(c *fiber.Ctx) error {
			banker := c.Locals("banker").(*models.Banker)
			logrus.WithFields(logrus.Fields{
				"banker_id": banker.ID,
				"endpoint":  c.Path(),
				"ip":        c.IP(),
			}).Warn("call rate limit hit")

			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many calls started. Please wait before dialing again.",
				"retry_after": "1 minute",
			})
		},
		Storage: createRateLimitStorage(),
	})
}

// createRateLimitStorage creates a persistent storage for rate limiting
func createRateLimitStorage() fiber.Storage {
	if config.AppConfig.Redis.Enabled {
		return NewRedisStorage(config.AppConfig.Redis)
	}
	return nil
}

// RedisStorage implements fiber.Storage for Redis
type RedisStorage struct {
	client *redis.Client
}

func NewRedisStorage(config config.RedisConfig) *RedisStorage {
	return &RedisStorage{
		client: redis.NewClient(&redis.Options{
			Addr:     config.Address,
			Password: config.Password,
			DB:       config.DB,
		}),
	}
}

func (r *RedisStorage) Get(key string) ([]byte, error) {
	return r.client.Get(context.Background(), key).Bytes()
}

func (r *RedisStorage) Set(key string, val []byte, exp time.Duration) error {
	return r.client.Set(context.Background(), key, val, exp).Err()
}

func (r *RedisStorage) Delete(key string) error {
	return r.client.Del(context.Background(), key).Err()
}

func (r *RedisStorage) Reset() error {
	return r.client.FlushDB(context.Background()).Err()
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}
