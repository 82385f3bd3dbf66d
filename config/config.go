// Package config loads the service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/example/meeting-relay/modules/api"
	"github.com/example/meeting-relay/modules/auth"
	"github.com/example/meeting-relay/modules/cache"
	"github.com/example/meeting-relay/modules/iceservers"
	"github.com/example/meeting-relay/modules/meetings"
	"github.com/example/meeting-relay/modules/relay"
)

// Config is the configuration of every module.
type Config struct {
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	API        api.Config
	Auth       auth.JWTConfig
	Cache      cache.Config
	Meetings   meetings.Config
	Relay      relay.Config
	ICEServers iceservers.Config

	// MeetingCreateLimit caps meeting-create calls per MeetingCreateWindow
	// across the service mesh. Zero disables it.
	MeetingCreateLimit  int
	MeetingCreateWindow time.Duration
}

// Load reads the environment. Unset or unparsable values keep their
// defaults.
func Load() *Config {
	apiConfig := api.DefaultConfig()
	apiConfig.Port = getEnv("PORT", apiConfig.Port)
	apiConfig.AllowOrigins = getEnv("CORS_ALLOW_ORIGINS", apiConfig.AllowOrigins)
	apiConfig.MessageLimit = getEnvInt("WS_MESSAGE_LIMIT", apiConfig.MessageLimit)
	apiConfig.MessageWindow = getEnvDuration("WS_MESSAGE_WINDOW", apiConfig.MessageWindow)
	apiConfig.RESTLimit = getEnvInt("REST_LIMIT", apiConfig.RESTLimit)
	apiConfig.RESTWindow = getEnvDuration("REST_WINDOW", apiConfig.RESTWindow)
	apiConfig.MaxMessageSize = int64(getEnvInt("WS_MAX_MESSAGE_SIZE", int(apiConfig.MaxMessageSize)))

	authConfig := auth.DefaultJWTConfig()
	authConfig.SecretKey = getEnv("JWT_SECRET_KEY", authConfig.SecretKey)
	authConfig.Issuer = getEnv("JWT_ISSUER", authConfig.Issuer)

	cacheConfig := cache.DefaultConfig()
	cacheConfig.RedisAddr = getEnv("REDIS_ADDR", "")
	cacheConfig.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cacheConfig.RedisDB = getEnvInt("REDIS_DB", 0)

	meetingsConfig := meetings.DefaultConfig()
	meetingsConfig.DBPath = getEnv("MEETINGS_DB_PATH", meetingsConfig.DBPath)
	meetingsConfig.AutoCreate = getEnvBool("MEETINGS_AUTO_CREATE", meetingsConfig.AutoCreate)
	meetingsConfig.DefaultCapacity = getEnvInt("MEETINGS_DEFAULT_CAPACITY", meetingsConfig.DefaultCapacity)

	relayConfig := relay.DefaultConfig()
	relayConfig.MaxRoomSize = getEnvInt("RELAY_MAX_ROOM_SIZE", relayConfig.MaxRoomSize)
	relayConfig.ReleasePolicy = relay.ReleasePolicy(getEnv("RELAY_LOCK_RELEASE_POLICY", string(relayConfig.ReleasePolicy)))
	relayConfig.ReleaseLockOnLeave = getEnvBool("RELAY_LOCK_RELEASE_ON_LEAVE", relayConfig.ReleaseLockOnLeave)

	iceConfig := iceservers.DefaultConfig()
	iceConfig.STUNURLs = getEnvList("ICE_STUN_URLS", iceConfig.STUNURLs)
	iceConfig.TURNURLs = getEnvList("ICE_TURN_URLS", nil)
	iceConfig.TURNSecret = getEnv("ICE_TURN_SECRET", "")
	iceConfig.CredentialTTL = getEnvDuration("ICE_CREDENTIAL_TTL", iceConfig.CredentialTTL)
	iceConfig.CacheTTL = getEnvDuration("ICE_CACHE_TTL", iceConfig.CacheTTL)

	return &Config{
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:           strings.ToLower(getEnv("LOG_FORMAT", "text")),
		ShutdownTimeout:     getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		API:                 apiConfig,
		Auth:                authConfig,
		Cache:               cacheConfig,
		Meetings:            meetingsConfig,
		Relay:               relayConfig,
		ICEServers:          iceConfig,
		MeetingCreateLimit:  getEnvInt("MEETING_CREATE_LIMIT", 30),
		MeetingCreateWindow: getEnvDuration("MEETING_CREATE_WINDOW", time.Minute),
	}
}

// RelayOptions turns the relay settings into hub options.
func (c *Config) RelayOptions() []relay.Option {
	return []relay.Option{
		relay.WithMaxRoomSize(c.Relay.MaxRoomSize),
		relay.WithReleasePolicy(c.Relay.ReleasePolicy),
		relay.WithReleaseLockOnLeave(c.Relay.ReleaseLockOnLeave),
	}
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping empty entries.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var list []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	if len(list) == 0 {
		return defaultValue
	}
	return list
}
