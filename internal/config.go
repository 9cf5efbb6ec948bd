package internal

import (
	"fmt"
	"time"
)

type Config struct {
	JWTSecret            string        `env:"JWT_SECRET,required=true"`
	Host                 string        `env:"HOST,default=0.0.0.0"`
	Port                 int           `env:"PORT,default=5001"`
	NodeEnv              string        `env:"NODE_ENV,default=development"`
	CookieDomain         string        `env:"COOKIE_DOMAIN"`
	AllowedOrigin        string        `env:"ALLOWED_ORIGIN"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	LimitMessages        *int          `env:"LIMIT_MESSAGES"`
	MaxConnections       int           `env:"MAX_CONNECTIONS,default=0"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	PingInterval         time.Duration `env:"PING_INTERVAL,default=25s"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=15s"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=1s"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

// minSecretLength matches the HS256 key size.
const minSecretLength = 32

func (c Config) Validate() error {
	if len(c.JWTSecret) < minSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes, got %d", minSecretLength, len(c.JWTSecret))
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.ConnectionBufferSize <= 0 {
		return fmt.Errorf("CONNECTION_BUFFER_SIZE must be positive, got %d", c.ConnectionBufferSize)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("MAX_CONNECTIONS must not be negative, got %d", c.MaxConnections)
	}
	if c.PingInterval <= 0 || c.WriteTimeout <= 0 || c.MetricInterval <= 0 {
		return fmt.Errorf("PING_INTERVAL, WRITE_TIMEOUT and METRIC_INTERVAL must be positive")
	}
	return nil
}

// SecureCookies is on in production only, where the cookie travels over HTTPS.
func (c Config) SecureCookies() bool {
	return c.NodeEnv == "production"
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
