package middleware

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/Zacison/natours-backend/config"
	"github.com/Zacison/natours-backend/logger"
	"github.com/Zacison/natours-backend/utils"
)

// fixedWindow counts a hit and starts the window on the first one.
var fixedWindow = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	local ttl = redis.call('PTTL', KEYS[1])
	return { count, ttl }
`)

var errTooManyRequests = utils.NewRateLimited("Too many requests from this IP, please try again later!")

// RateLimit allows cfg.Limit requests per client IP and route within
// cfg.Window. With no Redis client, or when disabled, it lets everything
// through. Redis failures also let the request through.
func RateLimit(cfg config.RateLimitConfig, rdb *redis.Client) gin.HandlerFunc {
	if !cfg.Enabled || rdb == nil || cfg.Limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:%s:%s", cfg.Prefix, c.FullPath(), c.ClientIP())
		res, err := fixedWindow.Run(c.Request.Context(), rdb, []string{key}, cfg.Window.Milliseconds()).Int64Slice()
		if err != nil || len(res) != 2 {
			logger.WarnContext(c.Request.Context(), "rate limiter unavailable", "key", key, "error", err)
			c.Next()
			return
		}
		count, ttlMs := res[0], res[1]

		remaining := int64(cfg.Limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(cfg.Limit) {
			secs := int64(math.Ceil(float64(ttlMs) / float64(time.Second/time.Millisecond)))
			if secs < 0 {
				secs = 0
			}
			c.Header("Retry-After", strconv.FormatInt(secs, 10))
			abort(c, errTooManyRequests)
			return
		}
		c.Next()
	}
}
