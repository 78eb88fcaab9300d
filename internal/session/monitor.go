// Package session publishes live call sessions to Redis so operators and
// sibling instances can see which calls this deployment is carrying.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bookline-ai/voice-scheduler-service/pkg/redis"
)

const (
	sessionKeyPrefix = "voice:session:"

	// EventsChannel carries session lifecycle events to any instance
	// watching the deployment.
	EventsChannel = "voice:session:events"

	// sessionTTL bounds stale entries when an instance dies without
	// unregistering.
	sessionTTL = 4 * time.Hour
)

// Lifecycle event kinds published on EventsChannel.
const (
	EventStarted = "session.started"
	EventEnded   = "session.ended"
)

// Record is the value stored per live session.
type Record struct {
	TenantID   string    `json:"tenant_id"`
	CallID     string    `json:"call_id"`
	InstanceID string    `json:"instance_id"`
	StartedAt  time.Time `json:"started_at"`
}

// Event is broadcast on EventsChannel when a session starts or ends.
type Event struct {
	Kind       string    `json:"kind"`
	TenantID   string    `json:"tenant_id"`
	CallID     string    `json:"call_id"`
	InstanceID string    `json:"instance_id"`
	At         time.Time `json:"at"`
}

// Monitor writes session lifecycle markers to Redis. A Monitor constructed
// without a Redis service is inert: all methods succeed without effect, so
// single-instance deployments can run Redis-free.
type Monitor struct {
	store      redis.RedisServiceInterface
	instanceID string
}

// NewMonitor builds a monitor over the given Redis service. store may be nil.
func NewMonitor(store redis.RedisServiceInterface, instanceID string) *Monitor {
	return &Monitor{store: store, instanceID: instanceID}
}

func sessionKey(tenantID, callID string) string {
	return fmt.Sprintf("%s%s:%s", sessionKeyPrefix, tenantID, callID)
}

// Register marks a call session as live on this instance.
func (m *Monitor) Register(ctx context.Context, tenantID, callID string) error {
	if m.store == nil {
		return nil
	}
	record, err := json.Marshal(Record{
		TenantID:   tenantID,
		CallID:     callID,
		InstanceID: m.instanceID,
		StartedAt:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if err := m.store.SetValue(ctx, sessionKey(tenantID, callID), string(record), sessionTTL); err != nil {
		return err
	}
	m.publish(ctx, EventStarted, tenantID, callID)
	return nil
}

// Unregister removes the live-session marker.
func (m *Monitor) Unregister(ctx context.Context, tenantID, callID string) error {
	if m.store == nil {
		return nil
	}
	if err := m.store.DelValue(ctx, sessionKey(tenantID, callID)); err != nil {
		return err
	}
	m.publish(ctx, EventEnded, tenantID, callID)
	return nil
}

// publish broadcasts a lifecycle event. Delivery is best effort: the session
// key is the source of truth, the event is a notification.
func (m *Monitor) publish(ctx context.Context, kind, tenantID, callID string) {
	_ = m.store.Publish(ctx, EventsChannel, Event{
		Kind:       kind,
		TenantID:   tenantID,
		CallID:     callID,
		InstanceID: m.instanceID,
		At:         time.Now().UTC(),
	})
}

// Watch subscribes to session lifecycle events from every instance and
// invokes handler for each one until ctx is cancelled. Non-event payloads
// are dropped.
func (m *Monitor) Watch(ctx context.Context, handler func(Event)) error {
	if m.store == nil {
		return nil
	}
	return m.store.Subscribe(ctx, EventsChannel, func(payload string) {
		var event Event
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return
		}
		handler(event)
	})
}

// Active lists the live session records visible in Redis across all
// instances.
func (m *Monitor) Active(ctx context.Context) ([]Record, error) {
	if m.store == nil {
		return nil, nil
	}
	keys, err := m.store.Keys(ctx, sessionKeyPrefix+"*")
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(keys))
	for _, key := range keys {
		value, err := m.store.GetValue(ctx, key)
		if err != nil {
			continue
		}
		var record Record
		if err := json.Unmarshal([]byte(value), &record); err != nil {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}
