package docstore

import "time"

// Config represents the MongoDB-backed store configuration.
type Config struct {
	ConnectionURL   string        `env:"DOCSTORE_MONGODB_URL,required"`                // ConnectionURL is the URL of the database.
	Database        string        `env:"DOCSTORE_MONGODB_DATABASE" envDefault:"identity"`
	ConnectTimeout  time.Duration `env:"DOCSTORE_MONGODB_CONNECT_TIMEOUT" envDefault:"10s"`
	MaxPoolSize     uint64        `env:"DOCSTORE_MONGODB_MAX_POOL_SIZE" envDefault:"100"`
	MinPoolSize     uint64        `env:"DOCSTORE_MONGODB_MIN_POOL_SIZE" envDefault:"1"`
	MaxConnIdleTime time.Duration `env:"DOCSTORE_MONGODB_MAX_CONN_IDLE_TIME" envDefault:"300s"`
	RetryWrites     bool          `env:"DOCSTORE_MONGODB_RETRY_WRITES" envDefault:"true"`
	RetryReads      bool          `env:"DOCSTORE_MONGODB_RETRY_READS" envDefault:"true"`
	RetryAttempts   int           `env:"DOCSTORE_MONGODB_RETRY_ATTEMPTS" envDefault:"3"`  // RetryAttempts is the number of attempts to connect to the database.
	RetryInterval   time.Duration `env:"DOCSTORE_MONGODB_RETRY_INTERVAL" envDefault:"5s"` // RetryInterval is the interval between connection attempts.
}
