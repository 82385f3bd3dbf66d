package relay

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/example/meeting-relay/domain/meeting"
	"github.com/go-monolith/mono/pkg/types"
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

func newMockLogger() types.Logger {
	return &mockLogger{}
}

// warnLogger records Warn messages.
type warnLogger struct {
	mockLogger
	mu       sync.Mutex
	messages []string
}

func (w *warnLogger) Warn(msg string, _ ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = append(w.messages, msg)
}
func (w *warnLogger) With(_ ...any) types.Logger {
	return w
}
func (w *warnLogger) WithModule(_ string) types.Logger {
	return w
}
func (w *warnLogger) WithError(_ error) types.Logger {
	return w
}

func (w *warnLogger) warnings() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.messages...)
}

// recorder is an Outbox that keeps every delivered frame.
type recorder struct {
	mu     sync.Mutex
	frames []Envelope
	full   bool
}

func (r *recorder) Deliver(frame []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return false
	}
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		panic(err)
	}
	r.frames = append(r.frames, env)
	return true
}

func (r *recorder) ofType(msgType string) []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []map[string]any
	for _, env := range r.frames {
		if env.Type != msgType {
			continue
		}
		data := map[string]any{}
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &data); err != nil {
				panic(err)
			}
		}
		out = append(out, data)
	}
	return out
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = nil
}

func newTestHub(t *testing.T, opts ...Option) *Hub {
	t.Helper()
	return NewHub(newMockLogger(), opts...)
}

// connect registers a connection whose id doubles as its username suffix.
func connect(h *Hub, id, username string) *recorder {
	rec := &recorder{}
	h.Register(id, meeting.Identity{
		UserID:   "user-" + id,
		Username: username,
		Email:    username + "@example.com",
	}, rec)
	return rec
}

func participant(id, username string) meeting.Participant {
	return meeting.Participant{ConnectionID: id, Username: username}
}
