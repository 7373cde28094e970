package bolt

import "time"

// Config locates the database file.
type Config struct {
	Path        string        `env:"BOLT_PATH" envDefault:"campusmind-2fa.db"` // Path of the database file, created if missing.
	OpenTimeout time.Duration `env:"BOLT_OPEN_TIMEOUT" envDefault:"5s"`        // OpenTimeout bounds waiting for the file lock.
}
