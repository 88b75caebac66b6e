package notify

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const publishTimeout = 5 * time.Second

// MQTT publishes events as JSON to rehearsal/events/<kind>. Connection loss
// is tolerated; the paho client reconnects and events raised in between are
// dropped, which is acceptable for a best-effort notification feed.
type MQTT struct {
	cli paho.Client
	log zerolog.Logger
}

func NewMQTT(broker, clientID string, log zerolog.Logger) (*MQTT, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)
	opts.OnConnect = func(paho.Client) {
		log.Info().Str("broker", broker).Msg("mqtt connected")
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Warn().Err(err).Msg("mqtt connection lost")
	}

	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.WaitTimeout(publishTimeout) && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return &MQTT{cli: cli, log: log}, nil
}

func (m *MQTT) Publish(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		m.log.Error().Err(err).Msg("mqtt marshal")
		return
	}
	topic := "rehearsal/events/" + string(ev.Kind)
	token := m.cli.Publish(topic, 0, false, payload)
	go func() {
		if token.WaitTimeout(publishTimeout) && token.Error() != nil {
			m.log.Warn().Err(token.Error()).Str("topic", topic).Msg("mqtt publish failed")
		}
	}()
}

func (m *MQTT) Close() {
	m.cli.Disconnect(250)
}
