// FilePath: internal/mqtt/ingest.go
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	nuts "github.com/vaudience/go-nuts"

	"github.com/prajukk/backed-traffic/internal/config"
	"github.com/prajukk/backed-traffic/internal/coordinator"
	"github.com/prajukk/backed-traffic/internal/models"
)

// Ingest subscribes to device telemetry topics and feeds the payloads into
// the update coordinator, so MQTT-pushed telemetry follows the exact same
// path as live-channel deviceData events. Delivery is best-effort: a bad
// topic or payload is logged and dropped.
//
// Topic layout: traffic/{camera|signal}/{deviceID}/telemetry.
type Ingest struct {
	client mqtt.Client
	topic  string
	coord  *coordinator.Coordinator
}

// NewIngest connects to the broker and returns a ready ingest. Call
// Subscribe to start consuming.
func NewIngest(cfg config.MQTTConfig, coord *coordinator.Coordinator) (*Ingest, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		nuts.L.Warnf("[MQTT] Connection lost: %v", err)
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		nuts.L.Infof("[MQTT] Connected to %s", cfg.Broker)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &Ingest{client: client, topic: cfg.Topic, coord: coord}, nil
}

// Subscribe starts consuming the telemetry topic.
func (i *Ingest) Subscribe() error {
	token := i.client.Subscribe(i.topic, 0, i.handleMessage)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", i.topic, token.Error())
	}
	nuts.L.Infof("[MQTT] Subscribed to %s", i.topic)
	return nil
}

// Close disconnects from the broker.
func (i *Ingest) Close() {
	i.client.Disconnect(250)
}

func (i *Ingest) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	kind, id, err := parseTopic(msg.Topic())
	if err != nil {
		nuts.L.Warnf("[MQTT] Ignoring message on %s: %v", msg.Topic(), err)
		return
	}

	var payload models.TelemetryPayload
	if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
		nuts.L.Warnf("[MQTT] Bad telemetry payload on %s: %v", msg.Topic(), err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := i.coord.HandleTelemetry(ctx, kind, id, payload); err != nil {
		nuts.L.Warnf("[MQTT] Telemetry from %s %s rejected: %v", kind, id, err)
	}
}

func parseTopic(topic string) (models.DeviceKind, string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != "traffic" || parts[3] != "telemetry" {
		return "", "", fmt.Errorf("unexpected topic shape %q", topic)
	}
	kind, err := models.ParseDeviceKind(parts[1])
	if err != nil {
		return "", "", err
	}
	if parts[2] == "" {
		return "", "", fmt.Errorf("empty device id in topic %q", topic)
	}
	return kind, parts[2], nil
}
