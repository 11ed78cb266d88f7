package kv

import "time"

// Config represents the Redis-backed store configuration.
type Config struct {
	RedisURL     string        `env:"KV_REDIS_URL,required"`                 // RedisURL is the redis:// connection URL.
	KeyPrefix    string        `env:"KV_REDIS_KEY_PREFIX" envDefault:"identity:"`
	DialTimeout  time.Duration `env:"KV_REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"KV_REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"KV_REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}
