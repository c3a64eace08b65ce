package filesystem

import (
	"os"
	"time"
)

// DefaultListingRetries bounds conditional listing writes that lose a race
// against another process sharing the store.
const DefaultListingRetries = 5

// Config is the explicit configuration of a FileSystem, built once at
// startup and passed to New.
type Config struct {
	// CaseInsensitive selects case-insensitive name comparison (and
	// case-folded object keys).
	CaseInsensitive bool

	// ListingRetries bounds read-modify-write retries of a listing when
	// the store reports a conditional write conflict. Zero selects
	// DefaultListingRetries.
	ListingRetries int

	// UID and GID own the root directory.
	UID uint32
	GID uint32

	// Metrics receives per-operation observations. Nil disables them.
	Metrics Metrics

	// Now is the clock used for timestamps. Nil selects time.Now.
	Now func() time.Time
}

// DefaultConfig returns the configuration used when none is given:
// case-insensitive names and a root owned by the current process.
func DefaultConfig() Config {
	return Config{
		CaseInsensitive: true,
		ListingRetries:  DefaultListingRetries,
		UID:             uint32(os.Getuid()),
		GID:             uint32(os.Getgid()),
	}
}

func (c *Config) applyDefaults() {
	if c.ListingRetries <= 0 {
		c.ListingRetries = DefaultListingRetries
	}
	if c.Metrics == nil {
		c.Metrics = noopMetrics{}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}
