// Package announce publishes cycle results over MQTT so home-automation
// systems can follow the battery's planned behaviour.
package announce

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	coremetrics "github.com/kilianp07/storageopt/core/metrics"
	"github.com/kilianp07/storageopt/infra/logger"
)

// Config defines the MQTT connection and topic.
type Config struct {
	Enabled  bool   `json:"enabled"`
	Broker   string `json:"broker"`
	ClientID string `json:"client_id"`
	Username string `json:"username"`
	Password string `json:"password"`
	Topic    string `json:"topic"`
	QoS      byte   `json:"qos"`
	Retain   bool   `json:"retain"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "storageopt"
	}
	if c.Topic == "" {
		c.Topic = "storageopt/cycle"
	}
}

// Validate checks mandatory fields when the publisher is enabled.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Broker == "" {
		return fmt.Errorf("mqtt broker is required when announcing is enabled")
	}
	return nil
}

type pahoClient interface {
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Publisher announces applied cycles on a retained MQTT topic. It implements
// coremetrics.MetricsSink so it can be fanned out next to the other sinks.
type Publisher struct {
	cli    pahoClient
	topic  string
	qos    byte
	retain bool
	log    logger.Logger
}

// New connects to the broker and returns a Publisher.
func New(cfg Config) (*Publisher, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	cli := newMQTTClient(opts)
	token := cli.Connect()
	if !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %v", token.Error())
	}
	return &Publisher{
		cli:    cli,
		topic:  cfg.Topic,
		qos:    cfg.QoS,
		retain: cfg.Retain,
		log:    logger.New("announce"),
	}, nil
}

type cyclePayload struct {
	Time       time.Time `json:"time"`
	Outcome    string    `json:"outcome"`
	Action     string    `json:"action"`
	Mode       string    `json:"mode"`
	SoCKWh     float64   `json:"soc_kwh"`
	LivePowerW float64   `json:"live_power_w"`
}

// RecordCycle publishes the cycle result. Aborted cycles are not announced;
// the retained message keeps describing the last applied state.
func (p *Publisher) RecordCycle(ev coremetrics.CycleEvent) error {
	if ev.Outcome != "applied" && ev.Outcome != "unchanged" {
		return nil
	}
	raw, err := json.Marshal(cyclePayload{
		Time:       ev.Time,
		Outcome:    ev.Outcome,
		Action:     ev.Action,
		Mode:       ev.Mode,
		SoCKWh:     ev.SoCKWh,
		LivePowerW: ev.LivePowerW,
	})
	if err != nil {
		return err
	}
	token := p.cli.Publish(p.topic, p.qos, p.retain, raw)
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		return fmt.Errorf("mqtt publish: %v", token.Error())
	}
	p.log.Debugw("cycle announced", map[string]any{"topic": p.topic, "outcome": ev.Outcome})
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.cli.Disconnect(250)
}
