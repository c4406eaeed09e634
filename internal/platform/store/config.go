package store

import (
	"net"
	"net/url"
	"strconv"
	"time"
)

// Config aggregates per backend configuration
type Config struct {
	AppName string

	PG PGConfig
}

// PGConfig configures connectivity to the Postgres wire protocol warehouse
// (Redshift or a plain Postgres in tests) and SQL tracing
type PGConfig struct {
	Enabled bool

	// URL wins over the discrete fields when set
	URL string

	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int

	// ConnectRetries bounds the startup ping loop; 0 means 6
	ConnectRetries int
	// PingTimeout bounds each startup ping; 0 means 5s
	PingTimeout time.Duration
}

// ConnString returns the DSN for pgxpool.ParseConfig
func (c PGConfig) ConnString(appName string) string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	q := url.Values{}
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	if appName != "" {
		q.Set("application_name", appName)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Redacted returns the DSN with the password masked, safe for logs
func (c PGConfig) Redacted(appName string) string {
	u, err := url.Parse(c.ConnString(appName))
	if err != nil {
		return "<unparseable dsn>"
	}
	return u.Redacted()
}

func (c PGConfig) connectRetries() int {
	if c.ConnectRetries <= 0 {
		return 6
	}
	return c.ConnectRetries
}

func (c PGConfig) pingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return 5 * time.Second
	}
	return c.PingTimeout
}
