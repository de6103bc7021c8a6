package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/cenkalti/backoff/v4"
	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/orplan/core/events"
	"github.com/kilianp07/orplan/core/model"
	coremon "github.com/kilianp07/orplan/core/monitoring"
	"github.com/kilianp07/orplan/core/scheduler"
	"github.com/kilianp07/orplan/infra/logger"
	"github.com/kilianp07/orplan/internal/eventbus"
)

// Planner is the subset of the re-planner driven by MQTT events.
type Planner interface {
	DelayStart(ctx context.Context, id string, added int, now model.Minute) (model.Schedule, error)
	ChangeDuration(ctx context.Context, id string, delta int, now model.Minute) (model.Schedule, error)
	AdmitEmergency(ctx context.Context, procedure string, now model.Minute) (string, model.Schedule, error)
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Bridge applies intra-day events received over MQTT to the planner and
// publishes every planning outcome back to the broker.
type Bridge struct {
	cli     pahoClient
	cfg     Config
	planner Planner
	logger  logger.Logger
	monitor coremon.Monitor
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewBridge connects to the broker and subscribes to the event topics.
func NewBridge(cfg Config, planner Planner, mon coremon.Monitor) (*Bridge, error) {
	if planner == nil {
		return nil, fmt.Errorf("mqtt: planner is required")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		cfg:     cfg,
		planner: planner,
		logger:  logger.New("mqtt_bridge"),
		monitor: coremon.OrNop(mon),
		ctx:     ctx,
		cancel:  cancel,
	}
	opts.OnConnect = func(c paho.Client) {
		b.logger.Infof("MQTT connected")
		if token := c.Subscribe(cfg.EventTopic(), cfg.qos(QoSEvents), b.onEvent); token.Wait() && token.Error() != nil {
			b.logger.Errorf("subscribe error: %v", token.Error())
		}
		c.Publish(cfg.StatusTopic(), 1, true, "online")
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		b.logger.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		b.logger.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		cancel()
		return nil, token.Error()
	}
	b.cli = c
	return b, nil
}

func (b *Bridge) onEvent(_ paho.Client, msg paho.Message) {
	kind := path.Base(msg.Topic())
	tags := map[string]string{"module": "mqtt", "event": kind}
	err := b.apply(kind, msg.Payload())
	switch {
	case err == nil:
	case errors.Is(err, scheduler.ErrInfeasible):
		b.logger.Warnf("event %s kept the previous schedule: %v", kind, err)
	default:
		b.logger.Errorf("event %s on %s: %v", kind, msg.Topic(), err)
		b.monitor.CaptureException(err, tags)
	}
}

// apply decodes one event payload and hands it to the planner. Rejected
// re-plans are reported through the event bus, not here.
func (b *Bridge) apply(kind string, payload []byte) error {
	ctx := b.ctx
	switch kind {
	case "delay":
		var m DelayMessage
		if err := json.Unmarshal(payload, &m); err != nil {
			return fmt.Errorf("decode delay: %w", err)
		}
		now, err := eventClock("delay", m.Now)
		if err != nil {
			return err
		}
		_, err = b.planner.DelayStart(ctx, m.CaseID, m.Minutes, now)
		return err
	case "duration":
		var m DurationMessage
		if err := json.Unmarshal(payload, &m); err != nil {
			return fmt.Errorf("decode duration: %w", err)
		}
		now, err := eventClock("duration", m.Now)
		if err != nil {
			return err
		}
		_, err = b.planner.ChangeDuration(ctx, m.CaseID, m.Delta, now)
		return err
	case "emergency":
		var m EmergencyMessage
		if err := json.Unmarshal(payload, &m); err != nil {
			return fmt.Errorf("decode emergency: %w", err)
		}
		now, err := eventClock("emergency", m.Now)
		if err != nil {
			return err
		}
		id, _, err := b.planner.AdmitEmergency(ctx, m.Procedure, now)
		if err == nil {
			b.logger.Infof("admitted emergency %s (%s)", id, m.Procedure)
		}
		return err
	default:
		return fmt.Errorf("unknown event %q", kind)
	}
}

func eventClock(kind, raw string) (model.Minute, error) {
	now, err := model.ParseClock(raw)
	if err != nil {
		return 0, fmt.Errorf("%s now: %w", kind, err)
	}
	return now, nil
}

// Forward publishes planning outcomes from the bus until ctx is done or the
// bus closes. The returned channel is closed when forwarding stops.
func (b *Bridge) Forward(ctx context.Context, bus *eventbus.Bus[events.Event]) <-chan struct{} {
	return bus.Listen(ctx, func(ev events.Event) {
		var err error
		switch e := ev.(type) {
		case events.ScheduleAccepted:
			err = b.publishJSON(b.cfg.ScheduleTopic(), true, ScheduleMessage{
				Revision: e.Schedule.Revision,
				Trigger:  string(e.Trigger),
				CaseID:   e.CaseID,
				Now:      e.Now,
				Rows:     e.Schedule.Rows,
				KPIs:     e.KPIs,
			})
		case events.ReplanRejected:
			msg := RejectionMessage{Trigger: string(e.Trigger), CaseID: e.CaseID, Now: e.Now}
			if e.Err != nil {
				msg.Error = e.Err.Error()
			}
			err = b.publishJSON(b.cfg.RejectedTopic(), false, msg)
		default:
			return
		}
		if err != nil {
			b.logger.Errorf("publish %s: %v", ev.Kind(), err)
			b.monitor.CaptureException(err, map[string]string{"module": "mqtt", "event": ev.Kind()})
		}
	})
}

// publishJSON publishes v, retrying with exponential backoff.
func (b *Bridge) publishJSON(topic string, retained bool, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Duration(b.cfg.BackoffMS) * time.Millisecond
	policy.MaxElapsedTime = 0
	attempt := 0
	op := func() error {
		attempt++
		token := b.cli.Publish(topic, b.cfg.qos(QoSSchedule), retained, payload)
		token.Wait()
		if err := token.Error(); err != nil {
			b.logger.Errorf("publish attempt %d to %s failed: %v", attempt, topic, err)
			return err
		}
		return nil
	}
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(b.cfg.MaxRetries)), b.ctx)
	if err := backoff.Retry(op, retry); err != nil {
		return err
	}
	b.logger.Debugf("published %d bytes to %s", len(payload), topic)
	return nil
}

// Disconnect marks the planner offline and closes the MQTT connection.
func (b *Bridge) Disconnect() {
	b.cancel()
	if b.cli != nil && b.cli.IsConnected() {
		token := b.cli.Publish(b.cfg.StatusTopic(), 1, true, b.cfg.LWTPayload)
		token.WaitTimeout(time.Second)
		b.cli.Disconnect(250)
	}
}
