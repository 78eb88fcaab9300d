package session

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis is an in-memory stand-in for the Redis service, including a
// single-process pub/sub broker.
type fakeRedis struct {
	mu       sync.Mutex
	values   map[string]string
	handlers map[string][]func(string)
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		values:   make(map[string]string),
		handlers: make(map[string][]func(string)),
	}
}

func (f *fakeRedis) GetValue(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[key], nil
}

func (f *fakeRedis) SetValue(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

func (f *fakeRedis) DelValue(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	return nil
}

func (f *fakeRedis) Keys(ctx context.Context, pattern string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for key := range f.values {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}
	f.mu.Lock()
	handlers := append([]func(string){}, f.handlers[channel]...)
	f.mu.Unlock()
	for _, handler := range handlers {
		handler(string(payload))
	}
	return nil
}

func (f *fakeRedis) Subscribe(ctx context.Context, channel string, handler func(string)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[channel] = append(f.handlers[channel], handler)
	return nil
}

func TestMonitorRegisterUnregister(t *testing.T) {
	store := newFakeRedis()
	m := NewMonitor(store, "pod-1")

	require.NoError(t, m.Register(context.Background(), "tenant-a", "CA1"))

	records, err := m.Active(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "tenant-a", records[0].TenantID)
	assert.Equal(t, "CA1", records[0].CallID)
	assert.Equal(t, "pod-1", records[0].InstanceID)
	assert.False(t, records[0].StartedAt.IsZero())

	require.NoError(t, m.Unregister(context.Background(), "tenant-a", "CA1"))

	records, err = m.Active(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMonitorBroadcastsLifecycleEvents(t *testing.T) {
	store := newFakeRedis()
	m := NewMonitor(store, "pod-1")

	var mu sync.Mutex
	var events []Event
	require.NoError(t, m.Watch(context.Background(), func(event Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, event)
	}))

	require.NoError(t, m.Register(context.Background(), "tenant-a", "CA1"))
	require.NoError(t, m.Unregister(context.Background(), "tenant-a", "CA1"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	assert.Equal(t, EventStarted, events[0].Kind)
	assert.Equal(t, EventEnded, events[1].Kind)
	for _, event := range events {
		assert.Equal(t, "tenant-a", event.TenantID)
		assert.Equal(t, "CA1", event.CallID)
		assert.Equal(t, "pod-1", event.InstanceID)
		assert.False(t, event.At.IsZero())
	}
}

func TestMonitorWithoutRedisIsInert(t *testing.T) {
	m := NewMonitor(nil, "pod-1")

	assert.NoError(t, m.Register(context.Background(), "tenant-a", "CA1"))
	assert.NoError(t, m.Unregister(context.Background(), "tenant-a", "CA1"))

	records, err := m.Active(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, records)
}
