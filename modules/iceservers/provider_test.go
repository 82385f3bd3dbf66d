package iceservers

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/example/meeting-relay/modules/cache"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any) {}
func (m *mockLogger) Info(_ string, _ ...any)  {}
func (m *mockLogger) Warn(_ string, _ ...any)  {}
func (m *mockLogger) Error(_ string, _ ...any) {}
func (m *mockLogger) With(_ ...any) types.Logger {
	return m
}
func (m *mockLogger) WithModule(_ string) types.Logger {
	return m
}
func (m *mockLogger) WithError(_ error) types.Logger {
	return m
}

func turnConfig() Config {
	return Config{
		STUNURLs:      []string{"stun:stun.example.com:3478"},
		TURNURLs:      []string{"turn:turn.example.com:3478?transport=udp", "turns:turn.example.com:5349"},
		TURNSecret:    "shared-secret",
		CredentialTTL: 2 * time.Hour,
		CacheTTL:      30 * time.Minute,
	}
}

func TestNewProvider_Defaults(t *testing.T) {
	p, err := NewProvider(Config{STUNURLs: []string{"  ", ""}}, nil, &mockLogger{})
	require.NoError(t, err)

	config := p.Config()
	assert.Equal(t, []string{DefaultSTUNURL}, config.STUNURLs)
	assert.Equal(t, 24*time.Hour, config.CredentialTTL)
	assert.Equal(t, time.Hour, config.CacheTTL)
	assert.False(t, p.TURNEnabled())
}

func TestNewProvider_CacheTTLCapped(t *testing.T) {
	config := turnConfig()
	config.CacheTTL = 3 * time.Hour

	p, err := NewProvider(config, nil, &mockLogger{})
	require.NoError(t, err)
	assert.Equal(t, time.Hour, p.Config().CacheTTL)
}

func TestNewProvider_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   error
	}{
		{
			name:   "unparseable stun url",
			config: Config{STUNURLs: []string{"not a url"}},
			want:   ErrInvalidURL,
		},
		{
			name:   "turn url in stun list",
			config: Config{STUNURLs: []string{"turn:turn.example.com"}},
			want:   ErrInvalidURL,
		},
		{
			name:   "stun url in turn list",
			config: Config{TURNURLs: []string{"stun:stun.example.com"}, TURNSecret: "s"},
			want:   ErrInvalidURL,
		},
		{
			name:   "turn without secret",
			config: Config{TURNURLs: []string{"turn:turn.example.com"}},
			want:   ErrMissingSecret,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(tt.config, nil, &mockLogger{})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestProvider_Servers_STUNOnly(t *testing.T) {
	p, err := NewProvider(DefaultConfig(), nil, &mockLogger{})
	require.NoError(t, err)

	resp, cached, err := p.Servers(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	require.Len(t, resp.ICEServers, 1)
	assert.Equal(t, []string{DefaultSTUNURL}, resp.ICEServers[0].URLs)
	assert.Empty(t, resp.ICEServers[0].Username)
	assert.Nil(t, resp.ExpiresAt)
	assert.Zero(t, resp.TTLSeconds)
}

func TestProvider_Servers_TURNCredentials(t *testing.T) {
	config := turnConfig()
	p, err := NewProvider(config, nil, &mockLogger{})
	require.NoError(t, err)
	fixed := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	before := time.Now()
	resp, _, err := p.Servers(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.ICEServers, 2)

	relay := resp.ICEServers[1]
	assert.Equal(t, config.TURNURLs, relay.URLs)
	assert.Equal(t, webrtc.ICECredentialTypePassword, relay.CredentialType)

	// Username is the expiry as a unix timestamp.
	expiry, err := strconv.ParseInt(relay.Username, 10, 64)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, expiry, before.Add(config.CredentialTTL).Unix())
	assert.LessOrEqual(t, expiry, time.Now().Add(config.CredentialTTL).Unix())

	// Password is base64(HMAC-SHA1(secret, username)).
	mac := hmac.New(sha1.New, []byte(config.TURNSecret))
	mac.Write([]byte(relay.Username))
	assert.Equal(t, base64.StdEncoding.EncodeToString(mac.Sum(nil)), relay.Credential)

	require.NotNil(t, resp.ExpiresAt)
	assert.True(t, resp.ExpiresAt.Equal(fixed.Add(config.CredentialTTL)))
	assert.Equal(t, int((2 * time.Hour).Seconds()), resp.TTLSeconds)
}

func TestProvider_Servers_Cached(t *testing.T) {
	store := cache.NewMemory(time.Hour)
	p, err := NewProvider(turnConfig(), store, &mockLogger{})
	require.NoError(t, err)
	ctx := context.Background()

	first, cached, err := p.Servers(ctx)
	require.NoError(t, err)
	assert.False(t, cached)

	second, cached, err := p.Servers(ctx)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, first.ICEServers[1].Username, second.ICEServers[1].Username)
	assert.Equal(t, first.ICEServers[1].Credential, second.ICEServers[1].Credential)

	stats := store.GetStats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Sets)
}

func TestProvider_Servers_Concurrent(t *testing.T) {
	store := cache.NewMemory(time.Hour)
	p, err := NewProvider(turnConfig(), store, &mockLogger{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, _, err := p.Servers(context.Background())
			assert.NoError(t, err)
			assert.Len(t, resp.ICEServers, 2)
		}()
	}
	wg.Wait()
}
