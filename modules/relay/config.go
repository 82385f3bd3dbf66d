package relay

// ReleasePolicy decides who may release a room's AI-bot lock.
type ReleasePolicy string

const (
	// ReleaseByAnyMember lets any member of the room release the lock.
	ReleaseByAnyMember ReleasePolicy = "any"
	// ReleaseByHolder restricts release to the connection holding the lock.
	ReleaseByHolder ReleasePolicy = "holder"
)

// Config holds hub configuration.
type Config struct {
	// MaxRoomSize caps the members of a single room (0 disables the cap)
	MaxRoomSize int

	// ReleasePolicy decides who may release the AI-bot lock
	ReleasePolicy ReleasePolicy

	// ReleaseLockOnLeave clears the AI-bot lock when its holder leaves the room
	ReleaseLockOnLeave bool
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxRoomSize:        15,
		ReleasePolicy:      ReleaseByAnyMember,
		ReleaseLockOnLeave: true,
	}
}

// Option is a function that modifies Config.
type Option func(*Config)

// WithMaxRoomSize sets the per-room member cap.
func WithMaxRoomSize(n int) Option {
	return func(c *Config) {
		c.MaxRoomSize = n
	}
}

// WithReleasePolicy sets the AI-bot lock release policy.
// Unknown values fall back to ReleaseByAnyMember.
func WithReleasePolicy(p ReleasePolicy) Option {
	return func(c *Config) {
		switch p {
		case ReleaseByHolder:
			c.ReleasePolicy = ReleaseByHolder
		default:
			c.ReleasePolicy = ReleaseByAnyMember
		}
	}
}

// WithReleaseLockOnLeave toggles releasing the lock when its holder departs.
func WithReleaseLockOnLeave(release bool) Option {
	return func(c *Config) {
		c.ReleaseLockOnLeave = release
	}
}
