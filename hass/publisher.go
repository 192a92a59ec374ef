package hass

import (
  "context"
  "encoding/json"
  "fmt"
  "time"

  mqtt "github.com/eclipse/paho.mqtt.golang"
  "github.com/robertof/go-dinuso-exporter/collector/model"
  "github.com/robertof/go-dinuso-exporter/device"
  "github.com/rs/zerolog/log"
)

const (
  DefaultPrefix = "dinuso"
  DefaultDiscoveryPrefix = "homeassistant"
  DefaultPublishInterval = 5 * time.Second

  publishTimeout = 10 * time.Second
  qos = 1
)

type Config struct {
  // e.g. tcp://127.0.0.1:1883. Publishing is disabled when empty.
  URL string `yaml:"url"`
  ClientID string `yaml:"client-id"`
  Username string `yaml:"username"`
  Password string `yaml:"password"`
  Prefix string `yaml:"prefix"`
  DiscoveryPrefix string `yaml:"discovery-prefix"`
  PublishInterval time.Duration `yaml:"publish-interval"`
}

func (c Config) Enabled() bool {
  return c.URL != ""
}

// Source is implemented by *collector.Tracker.
type Source interface {
  Devices() []device.Device
  State(dev device.Device) model.State
  Updates() <-chan device.Device
}

type client interface {
  Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
  Disconnect(quiesce uint)
}

type Publisher struct {
  topics Topics
  interval time.Duration
  source Source
  client client
}

func newPublisher(cfg Config, source Source, c client) *Publisher {
  if cfg.Prefix == "" {
    cfg.Prefix = DefaultPrefix
  }

  if cfg.DiscoveryPrefix == "" {
    cfg.DiscoveryPrefix = DefaultDiscoveryPrefix
  }

  if cfg.PublishInterval <= 0 {
    cfg.PublishInterval = DefaultPublishInterval
  }

  return &Publisher{
    topics: Topics{Prefix: cfg.Prefix, DiscoveryPrefix: cfg.DiscoveryPrefix},
    interval: cfg.PublishInterval,
    source: source,
    client: c,
  }
}

// Dial connects to the broker. Discovery configs are (re)announced on every connection.
func Dial(cfg Config, source Source) (*Publisher, error) {
  p := newPublisher(cfg, source, nil)

  clientID := cfg.ClientID
  if clientID == "" {
    clientID = "dinuso_ble-" + p.topics.Prefix
  }

  opts := mqtt.NewClientOptions().
    AddBroker(cfg.URL).
    SetClientID(clientID).
    SetUsername(cfg.Username).
    SetPassword(cfg.Password).
    SetKeepAlive(30 * time.Second).
    SetPingTimeout(10 * time.Second).
    SetAutoReconnect(true).
    SetConnectRetry(true).
    SetConnectRetryInterval(5 * time.Second).
    SetMaxReconnectInterval(time.Minute).
    SetOrderMatters(false).
    SetWill(p.topics.Status(), payloadOffline, qos, true)

  opts.SetOnConnectHandler(func(_ mqtt.Client) {
    log.Info().Str("Broker", cfg.URL).Msg("MQTT connected")

    if err := p.Announce(); err != nil {
      log.Error().Err(err).Msg("Failed to announce devices to Home Assistant")
    }
  })

  opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
    log.Warn().Err(err).Msg("MQTT connection lost")
  })

  c := mqtt.NewClient(opts)
  p.client = c

  // with ConnectRetry the token only completes once connected; don't block startup on it.
  token := c.Connect()

  if token.WaitTimeout(publishTimeout) && token.Error() != nil {
    return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
  }

  return p, nil
}

func (p *Publisher) publish(topic string, retained bool, payload []byte) error {
  token := p.client.Publish(topic, qos, retained, payload)

  if !token.WaitTimeout(publishTimeout) {
    return fmt.Errorf("timed out publishing to %q", topic)
  }

  if err := token.Error(); err != nil {
    return fmt.Errorf("failed to publish to %q: %w", topic, err)
  }

  return nil
}

// Announce publishes the discovery config of every device and marks the bridge online.
func (p *Publisher) Announce() error {
  for _, dev := range p.source.Devices() {
    for _, e := range p.topics.Entities(dev) {
      payload, err := json.Marshal(e.Config)
      if err != nil {
        return fmt.Errorf("failed to marshal discovery config: %w", err)
      }

      if err := p.publish(p.topics.Discovery(dev, e), true, payload); err != nil {
        return err
      }
    }

    log.Debug().Stringer("Device", dev).Msg("Announced device to Home Assistant")
  }

  if err := p.publish(p.topics.Status(), true, []byte(payloadOnline)); err != nil {
    return err
  }

  // entities need a state right away, don't wait for the next tick.
  p.PublishAll()

  return nil
}

func (p *Publisher) PublishState(dev device.Device) error {
  payload, err := json.Marshal(NewStatePayload(p.source.State(dev)))
  if err != nil {
    return fmt.Errorf("failed to marshal state: %w", err)
  }

  return p.publish(p.topics.State(dev), true, payload)
}

func (p *Publisher) PublishAll() {
  for _, dev := range p.source.Devices() {
    if err := p.PublishState(dev); err != nil {
      log.Debug().Err(err).Stringer("Device", dev).Msg("Failed to publish device state")
    }
  }
}

// Run publishes device states on every update and every interval, until ctx is done.
func (p *Publisher) Run(ctx context.Context) error {
  log.Info().
    Str("StatusTopic", p.topics.Status()).
    Dur("IntervalSec", p.interval).
    Msg("Starting Home Assistant publisher")

  ticker := time.NewTicker(p.interval)
  defer ticker.Stop()

  for {
    select {
    case <-ctx.Done():
      return nil
    case dev := <-p.source.Updates():
      if err := p.PublishState(dev); err != nil {
        log.Debug().Err(err).Stringer("Device", dev).Msg("Failed to publish device state")
      }
    case <-ticker.C:
      p.PublishAll()
    }
  }
}

// Close marks the bridge offline and disconnects.
func (p *Publisher) Close() {
  if err := p.publish(p.topics.Status(), true, []byte(payloadOffline)); err != nil {
    log.Warn().Err(err).Msg("Failed to publish offline status")
  }

  p.client.Disconnect(250)
}
