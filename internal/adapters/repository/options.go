package repository

// Option tunes how OpenSQLite configures the database handle.
type Option func(*sqliteConfig)

type sqliteConfig struct {
	maxOpenConns  int
	busyTimeoutMS int
}

// WithMaxOpenConns sets the connection pool size.
func WithMaxOpenConns(n int) Option {
	return func(c *sqliteConfig) {
		if n > 0 {
			c.maxOpenConns = n
		}
	}
}

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds.
func WithBusyTimeout(ms int) Option {
	return func(c *sqliteConfig) {
		if ms >= 0 {
			c.busyTimeoutMS = ms
		}
	}
}
