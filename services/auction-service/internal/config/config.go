package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	pkgconfig "github.com/daniuniperu/p2p-auction-hyperswarm/pkg/config"
	"github.com/daniuniperu/p2p-auction-hyperswarm/pkg/kvstore"
)

// Server holds the auction server settings
type Server struct {
	Addr      string `env:"RPC_ADDR" envDefault:":8080"`
	PublicURL string `env:"RPC_PUBLIC_URL"`

	StoreBackend string `env:"STORE_BACKEND" envDefault:"leveldb"`
	LevelDBPath  string `env:"LEVELDB_PATH" envDefault:"./db/rpc-server"`
	DatabaseURL  string `env:"DATABASE_URL"`
	RedisURL     string `env:"REDIS_URL"`
	RedisPrefix  string `env:"REDIS_PREFIX" envDefault:"p2p-auction:"`

	RabbitMQURL    string        `env:"RABBITMQ_URL"`
	EventBatchSize int           `env:"EVENT_BATCH_SIZE" envDefault:"10"`
	EventInterval  time.Duration `env:"EVENT_INTERVAL" envDefault:"1s"`

	AnnounceTTL time.Duration `env:"ANNOUNCE_TTL" envDefault:"30s"`
}

// LoadServer reads the server settings from the environment
func LoadServer() (*Server, error) {
	var cfg Server
	if err := pkgconfig.Load(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that depend on each other
func (c *Server) Validate() error {
	switch c.StoreBackend {
	case kvstore.BackendLevelDB:
		if c.LevelDBPath == "" {
			return errors.New("LEVELDB_PATH is required for the leveldb store")
		}
	case kvstore.BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	case kvstore.BackendRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.EventBatchSize <= 0 {
		return errors.New("EVENT_BATCH_SIZE must be positive")
	}
	if c.EventInterval <= 0 {
		return errors.New("EVENT_INTERVAL must be positive")
	}
	if c.AnnounceTTL <= 0 {
		return errors.New("ANNOUNCE_TTL must be positive")
	}
	return nil
}

// StoreOptions maps the settings onto kvstore.Options
func (c *Server) StoreOptions() kvstore.Options {
	return kvstore.Options{
		Backend:     c.StoreBackend,
		LevelDBPath: c.LevelDBPath,
		DatabaseURL: c.DatabaseURL,
		RedisURL:    c.RedisURL,
		RedisPrefix: c.RedisPrefix,
	}
}

// AdvertisedURL is the base URL peers dial, defaulting to RPC_ADDR on localhost
func (c *Server) AdvertisedURL() string {
	if c.PublicURL != "" {
		return strings.TrimRight(c.PublicURL, "/")
	}
	host := c.Addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	return "http://" + host
}

// Client holds the demo client settings
type Client struct {
	ServerURL       string        `env:"SERVER_URL"`
	ServerPublicKey string        `env:"SERVER_PUBLIC_KEY"`
	RedisURL        string        `env:"REDIS_URL"`
	Timeout         time.Duration `env:"CLIENT_TIMEOUT" envDefault:"10s"`
}

// LoadClient reads the client settings from the environment
func LoadClient() (*Client, error) {
	var cfg Client
	if err := pkgconfig.Load(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate requires either a direct URL or a public key with a registry to resolve it
func (c *Client) Validate() error {
	if c.ServerPublicKey == "" && c.ServerURL == "" {
		return errors.New("one of SERVER_PUBLIC_KEY or SERVER_URL is required")
	}
	if c.ServerPublicKey != "" && c.RedisURL == "" {
		return errors.New("REDIS_URL is required to resolve SERVER_PUBLIC_KEY")
	}
	return nil
}
