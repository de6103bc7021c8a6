package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/orplan/core/events"
	"github.com/kilianp07/orplan/core/model"
	coremon "github.com/kilianp07/orplan/core/monitoring"
	"github.com/kilianp07/orplan/core/scheduler"
	"github.com/kilianp07/orplan/internal/eventbus"
)

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// mockClient implements pahoClient for tests.
type mockClient struct {
	mu          sync.Mutex
	opts        *paho.ClientOptions
	subscribed  []string
	published   []published
	publishErrs []error
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Disconnect(uint)   {}

func (m *mockClient) Connect() paho.Token {
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}

func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	var b []byte
	switch p := payload.(type) {
	case []byte:
		b = p
	case string:
		b = []byte(p)
	}
	m.published = append(m.published, published{topic: topic, qos: qos, retained: retained, payload: b})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}

func (m *mockClient) Subscribe(topic string, _ byte, _ paho.MessageHandler) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribed = append(m.subscribed, topic)
	return &dummyToken{}
}

func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return true }

func (m *mockClient) on(topic string) []published {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []published
	for _, p := range m.published {
		if p.topic == topic {
			out = append(out, p)
		}
	}
	return out
}

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type mockMessage struct {
	topic string
	p     []byte
}

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return m.topic }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}

type call struct {
	kind string
	id   string
	n    int
	now  model.Minute
}

type fakePlanner struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (f *fakePlanner) DelayStart(_ context.Context, id string, added int, now model.Minute) (model.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{kind: "delay", id: id, n: added, now: now})
	return model.Schedule{}, f.err
}

func (f *fakePlanner) ChangeDuration(_ context.Context, id string, delta int, now model.Minute) (model.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{kind: "duration", id: id, n: delta, now: now})
	return model.Schedule{}, f.err
}

func (f *fakePlanner) AdmitEmergency(_ context.Context, procedure string, now model.Minute) (string, model.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{kind: "emergency", id: procedure, now: now})
	return "EMERG-1", model.Schedule{}, f.err
}

func newTestBridge(t *testing.T, cfg Config, planner Planner, mon coremon.Monitor) (*Bridge, *mockClient) {
	t.Helper()
	mc := &mockClient{}
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } })
	if cfg.Broker == "" {
		cfg.Broker = "tcp://localhost:1883"
	}
	b, err := NewBridge(cfg, planner, mon)
	require.NoError(t, err)
	t.Cleanup(b.Disconnect)
	return b, mc
}

func TestNewBridge_SubscribesAndAnnounces(t *testing.T) {
	_, mc := newTestBridge(t, Config{}, &fakePlanner{}, nil)
	assert.Equal(t, []string{"or/events/+"}, mc.subscribed)
	status := mc.on("or/status")
	require.Len(t, status, 1)
	assert.Equal(t, "online", string(status[0].payload))
	assert.True(t, status[0].retained)
}

func TestNewBridge_RequiresPlanner(t *testing.T) {
	_, err := NewBridge(Config{Broker: "tcp://localhost:1883"}, nil, nil)
	assert.Error(t, err)
}

func TestBridge_AppliesEvents(t *testing.T) {
	planner := &fakePlanner{}
	b, _ := newTestBridge(t, Config{}, planner, nil)

	b.onEvent(nil, mockMessage{topic: "or/events/delay", p: []byte(`{"case_id":"P-1","minutes":30,"now":"09:00"}`)})
	b.onEvent(nil, mockMessage{topic: "or/events/duration", p: []byte(`{"case_id":"P-2","delta":-15,"now":"09:30"}`)})
	b.onEvent(nil, mockMessage{topic: "or/events/emergency", p: []byte(`{"procedure":"Neurological","now":"10:00"}`)})

	assert.Equal(t, []call{
		{kind: "delay", id: "P-1", n: 30, now: 540},
		{kind: "duration", id: "P-2", n: -15, now: 570},
		{kind: "emergency", id: "Neurological", now: 600},
	}, planner.calls)
}

func TestBridge_ReportsBadEvents(t *testing.T) {
	planner := &fakePlanner{}
	mon := &coremon.Recorder{}
	b, _ := newTestBridge(t, Config{}, planner, mon)

	b.onEvent(nil, mockMessage{topic: "or/events/delay", p: []byte(`{"case_id":"P-1","now":"25:00"}`)})
	b.onEvent(nil, mockMessage{topic: "or/events/cancel", p: []byte(`{}`)})

	assert.Empty(t, planner.calls)
	caps := mon.Captures()
	require.Len(t, caps, 2)
	assert.Equal(t, "delay", caps[0].Tags["event"])
	assert.Equal(t, "cancel", caps[1].Tags["event"])
}

func TestBridge_RequiresEventClock(t *testing.T) {
	cases := map[string]string{
		"missing":  `{"case_id":"P-1","minutes":30}`,
		"negative": `{"case_id":"P-1","minutes":30,"now":"-90"}`,
		"numeric":  `{"case_id":"P-1","minutes":30,"now":"540"}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			planner := &fakePlanner{}
			mon := &coremon.Recorder{}
			b, _ := newTestBridge(t, Config{}, planner, mon)

			b.onEvent(nil, mockMessage{topic: "or/events/delay", p: []byte(payload)})
			b.onEvent(nil, mockMessage{topic: "or/events/emergency", p: []byte(`{"procedure":"General"}`)})

			assert.Empty(t, planner.calls)
			caps := mon.Captures()
			require.Len(t, caps, 2)
			assert.Equal(t, "delay", caps[0].Tags["event"])
			assert.ErrorIs(t, caps[0].Err, model.ErrInvalidClock)
		})
	}
}

func TestBridge_InfeasibleNotCaptured(t *testing.T) {
	planner := &fakePlanner{err: fmt.Errorf("delay rejected: %w", scheduler.ErrInfeasible)}
	mon := &coremon.Recorder{}
	b, _ := newTestBridge(t, Config{}, planner, mon)

	b.onEvent(nil, mockMessage{topic: "or/events/delay", p: []byte(`{"case_id":"P-1","minutes":600,"now":"09:00"}`)})
	assert.Len(t, planner.calls, 1)
	assert.Empty(t, mon.Captures())
}

func TestBridge_ForwardPublishesOutcomes(t *testing.T) {
	b, mc := newTestBridge(t, Config{QoS: map[string]byte{QoSSchedule: 1}}, &fakePlanner{}, nil)
	bus := eventbus.New[events.Event](4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := b.Forward(ctx, bus)

	bus.Publish(events.ScheduleAccepted{
		Trigger: events.TriggerDelay,
		CaseID:  "P-1",
		Now:     540,
		Schedule: model.Schedule{
			Revision: "rev-2",
			Rows:     []model.Assignment{{CaseID: "P-1", Room: "OR-1", Start: 570, End: 690}},
		},
	})
	bus.Publish(events.ReplanRejected{Trigger: events.TriggerEmergency, Now: 600, Err: errors.New("no room")})
	bus.Publish(events.PredictionDegraded{CaseID: "P-9"})

	require.Eventually(t, func() bool {
		return len(mc.on("or/schedule")) == 1 && len(mc.on("or/schedule/rejected")) == 1
	}, time.Second, 10*time.Millisecond)

	sched := mc.on("or/schedule")[0]
	assert.True(t, sched.retained)
	assert.Equal(t, byte(1), sched.qos)
	var msg ScheduleMessage
	require.NoError(t, json.Unmarshal(sched.payload, &msg))
	assert.Equal(t, "rev-2", msg.Revision)
	assert.Equal(t, "delay", msg.Trigger)
	assert.Equal(t, model.Minute(540), msg.Now)
	require.Len(t, msg.Rows, 1)
	assert.Equal(t, model.Minute(570), msg.Rows[0].Start)
	assert.JSONEq(t, `"09:30"`, string(mustJSON(t, msg.Rows[0].Start)))

	rej := mc.on("or/schedule/rejected")[0]
	assert.False(t, rej.retained)
	var rm RejectionMessage
	require.NoError(t, json.Unmarshal(rej.payload, &rm))
	assert.Equal(t, "no room", rm.Error)
	assert.Equal(t, "emergency", rm.Trigger)

	bus.Close()
	<-done
}

func TestBridge_PublishRetries(t *testing.T) {
	mon := &coremon.Recorder{}
	b, mc := newTestBridge(t, Config{MaxRetries: 1, BackoffMS: 1}, &fakePlanner{}, mon)
	mc.publishErrs = []error{errors.New("net fail"), nil}

	require.NoError(t, b.publishJSON("or/schedule", true, ScheduleMessage{Revision: "r"}))
	assert.Len(t, mc.on("or/schedule"), 2)

	mc.mu.Lock()
	mc.publishErrs = []error{errors.New("net fail"), errors.New("net fail")}
	mc.mu.Unlock()
	assert.Error(t, b.publishJSON("or/schedule", true, ScheduleMessage{Revision: "r"}))
	assert.Len(t, mc.on("or/schedule"), 4)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
