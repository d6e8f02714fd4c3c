package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"ghouse/internal/config"
	"ghouse/pkg/types"
)

// Publisher is the fan-out surface the bridge pushes decoded telemetry to.
type Publisher interface {
	SendTelemetry(channel string, payload interface{})
	SendAlert(channel string, payload interface{})
}

// Store persists normalized telemetry. Persistence failures are logged and
// never block fan-out.
type Store interface {
	ApplyGreenhouseStatus(ctx context.Context, p *types.GreenhouseStatusPayload) error
	SaveAirMetric(ctx context.Context, p *types.AirMetricsPayload) error
	ListAirThresholds(ctx context.Context) ([]*types.AirThreshold, error)
	ApplyDroneTelemetry(ctx context.Context, p *types.DroneTelemetryPayload) error
	ApplyConveyorStatus(ctx context.Context, p *types.ConveyorStatusPayload) error
	SaveSoilAnalysis(ctx context.Context, p *types.SoilAnalysisPayload) error
}

// Notifier fans alert notifications out to administrator accounts.
type Notifier interface {
	NotifyAdmins(ctx context.Context, kind, title, message, source string) error
}

// ClientFactory builds the MQTT client from prepared options. Production uses
// mqtt.NewClient; tests substitute fakes.
type ClientFactory func(opts *mqtt.ClientOptions) mqtt.Client

// inboundMessage is one raw frame handed from a transport callback to the
// dispatch goroutine.
type inboundMessage struct {
	topic   string
	payload []byte
}

// Bridge connects device traffic on the MQTT broker to the registry and the
// store. Transport callbacks only enqueue; all decoding, persistence, and
// fan-out happens on a single dispatch goroutine, so broker callbacks never
// take registry or database locks.
type Bridge struct {
	cfg       config.MQTTConfig
	publisher Publisher
	store     Store
	notifier  Notifier
	log       zerolog.Logger

	newClient ClientFactory
	client    mqtt.Client

	events   chan inboundMessage
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// NewBridge creates a device bridge. Connect must be called before any
// traffic flows.
func NewBridge(cfg config.MQTTConfig, publisher Publisher, store Store, notifier Notifier, log zerolog.Logger) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		cfg:       cfg,
		publisher: publisher,
		store:     store,
		notifier:  notifier,
		log:       log.With().Str("component", "bridge").Logger(),
		newClient: mqtt.NewClient,
		events:    make(chan inboundMessage, 256),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go b.dispatchLoop()
	return b
}

// SetClientFactory overrides how the MQTT client is constructed.
func (b *Bridge) SetClientFactory(factory ClientFactory) {
	b.newClient = factory
}

// subscriptions returns the topic filters the bridge listens on.
func (b *Bridge) subscriptions() []string {
	ns := b.cfg.Namespace
	return []string{
		ns + "/greenhouse/+/status",
		ns + "/air/+/metrics",
		ns + "/drones/+/telemetry",
		ns + "/conveyor/status",
		ns + "/soil/+/analysis",
	}
}

// Connect dials the broker and subscribes to all device topics. The bridge
// does not reconnect after a connection loss; the rest of the backend keeps
// serving without live device data.
func (b *Bridge) Connect() error {
	opts := mqtt.NewClientOptions().
		AddBroker(b.cfg.Broker).
		SetClientID(b.cfg.ClientID).
		SetUsername(b.cfg.Username).
		SetPassword(b.cfg.Password).
		SetAutoReconnect(false).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			b.log.Error().Err(err).Msg("broker connection lost")
		})

	client := b.newClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("%w: %v", ErrConnectFailed, token.Error())
	}
	b.client = client

	for _, filter := range b.subscriptions() {
		token := client.Subscribe(filter, b.cfg.QoS, b.enqueue)
		if token.Wait() && token.Error() != nil {
			client.Disconnect(250)
			return fmt.Errorf("failed to subscribe to %s: %w", filter, token.Error())
		}
	}

	b.log.Info().Str("broker", b.cfg.Broker).Str("client_id", b.cfg.ClientID).Msg("bridge connected")
	return nil
}

// enqueue runs on paho's callback goroutine and must return quickly. A full
// queue drops the frame; device telemetry is periodic and the next sample
// supersedes the lost one.
func (b *Bridge) enqueue(_ mqtt.Client, msg mqtt.Message) {
	select {
	case b.events <- inboundMessage{topic: msg.Topic(), payload: msg.Payload()}:
	case <-b.ctx.Done():
	default:
		b.log.Warn().Str("topic", msg.Topic()).Msg("event queue full, dropping frame")
	}
}

func (b *Bridge) dispatchLoop() {
	defer close(b.done)
	for {
		select {
		case msg := <-b.events:
			b.handleMessage(msg.topic, msg.payload)
		case <-b.ctx.Done():
			return
		}
	}
}

// ClassifyTopic maps a device topic to its device category. Both the device
// segment and the message-kind suffix must match, so command echoes and other
// traffic under a device prefix stay unrecognized.
func ClassifyTopic(topic string) types.DeviceCategory {
	switch {
	case strings.Contains(topic, "/greenhouse/") && strings.HasSuffix(topic, "/status"):
		return types.CategoryGreenhouse
	case strings.Contains(topic, "/air/") && strings.HasSuffix(topic, "/metrics"):
		return types.CategoryAir
	case strings.Contains(topic, "/drones/") && strings.HasSuffix(topic, "/telemetry"):
		return types.CategoryDrones
	case strings.Contains(topic, "/conveyor") && strings.HasSuffix(topic, "/status"):
		return types.CategoryConveyor
	case strings.Contains(topic, "/soil/") && strings.HasSuffix(topic, "/analysis"):
		return types.CategorySoil
	default:
		return types.CategoryUnrecognized
	}
}

// handleMessage decodes one raw frame and routes it. Frames that do not parse
// are dropped; one bad device must not disturb the rest.
func (b *Bridge) handleMessage(topic string, payload []byte) {
	category := ClassifyTopic(topic)
	if category == types.CategoryUnrecognized {
		b.log.Warn().Str("topic", topic).Msg("unrecognized device topic")
		return
	}

	event, err := types.DecodeTelemetry(category, topic, payload)
	if err != nil {
		b.log.Warn().Err(err).Str("topic", topic).Msg("dropping undecodable payload")
		return
	}

	b.publisher.SendTelemetry(string(category), event.WirePayload())

	if err := b.persist(event); err != nil {
		b.log.Error().Err(err).Str("topic", topic).Msg("failed to persist telemetry")
	}

	if category == types.CategoryAir {
		b.checkAirThresholds(event.Air)
	}
}

func (b *Bridge) persist(event *types.TelemetryEvent) error {
	switch event.Category {
	case types.CategoryGreenhouse:
		return b.store.ApplyGreenhouseStatus(b.ctx, event.Greenhouse)
	case types.CategoryAir:
		return b.store.SaveAirMetric(b.ctx, event.Air)
	case types.CategoryDrones:
		return b.store.ApplyDroneTelemetry(b.ctx, event.Drone)
	case types.CategoryConveyor:
		return b.store.ApplyConveyorStatus(b.ctx, event.Conveyor)
	case types.CategorySoil:
		return b.store.SaveSoilAnalysis(b.ctx, event.Soil)
	}
	return nil
}

// checkAirThresholds compares a fresh air sample against configured bounds
// and raises alerts for every out-of-range metric.
func (b *Bridge) checkAirThresholds(p *types.AirMetricsPayload) {
	thresholds, err := b.store.ListAirThresholds(b.ctx)
	if err != nil {
		b.log.Error().Err(err).Msg("failed to load air thresholds")
		return
	}

	sample := &types.AirMetric{
		Temperature: p.Temperature,
		Humidity:    p.Humidity,
		CO2:         p.CO2,
		Pressure:    p.Pressure,
	}
	alerts := types.CheckAirThresholds(sample, thresholds)
	if len(alerts) == 0 {
		return
	}

	b.publisher.SendAlert(types.ChannelAir, map[string]interface{}{"alerts": alerts})

	for _, alert := range alerts {
		title := fmt.Sprintf("Air quality alert: %s", alert.Metric)
		message := fmt.Sprintf("%s reading %.2f is outside the allowed range %.2f to %.2f",
			alert.Metric, alert.Value, alert.Min, alert.Max)
		if err := b.notifier.NotifyAdmins(b.ctx, types.NotificationWarning, title, message, "air_monitor"); err != nil {
			b.log.Error().Err(err).Str("metric", alert.Metric).Msg("failed to notify admins")
		}
	}
}

// Connected reports whether the broker link is up.
func (b *Bridge) Connected() bool {
	return b.client != nil && b.client.IsConnected()
}

// Publish sends an arbitrary JSON payload to one topic.
func (b *Bridge) Publish(topic string, payload interface{}) error {
	if b.client == nil || !b.client.IsConnected() {
		return ErrNotConnected
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	token := b.client.Publish(topic, b.cfg.QoS, false, data)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, token.Error())
	}

	b.log.Info().Str("topic", topic).Msg("message published")
	return nil
}

// SendCommand publishes a command to one device. The conveyor line is a
// singleton and takes no device id.
func (b *Bridge) SendCommand(category types.DeviceCategory, deviceID string, command interface{}) error {
	var topic string
	if category == types.CategoryConveyor {
		topic = fmt.Sprintf("%s/conveyor/command", b.cfg.Namespace)
	} else {
		topic = fmt.Sprintf("%s/%s/%s/command", b.cfg.Namespace, category, deviceID)
	}
	return b.Publish(topic, command)
}

// Stop unsubscribes, disconnects from the broker, and waits for the dispatch
// goroutine to drain. Safe to call even if Connect failed.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		if b.client != nil && b.client.IsConnected() {
			b.client.Unsubscribe(b.subscriptions()...)
			b.client.Disconnect(250)
		}
		b.cancel()
		<-b.done
		b.log.Info().Msg("bridge stopped")
	})
}
