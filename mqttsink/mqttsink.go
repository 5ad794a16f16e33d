package mqttsink

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/icodeforyou/energiprice-go/hours"
	"github.com/icodeforyou/energiprice-go/types"
	"github.com/icodeforyou/energiprice-go/types/maybe"
)

const (
	qos            = 1
	publishTimeout = 5 * time.Second
)

type Options struct {
	Host        string
	Port        int16
	Username    string
	Password    string
	TopicPrefix string
}

// publisher is the part of mqtt.Client the sink needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MqttSink publishes prices as retained messages:
//
//	<prefix>/<series>/current     value of the current hour, null when absent
//	<prefix>/<series>/timeseries  every cached value from the current hour
//	<prefix>/hourly               combined hourly prices
//	<prefix>/status               "online" or "offline"
type MqttSink struct {
	client mqtt.Client
	pub    publisher
	logger *slog.Logger
	prefix string
}

type currentValue struct {
	HourStart hours.DateHour       `json:"hourStart"`
	Value     maybe.Maybe[float64] `json:"value"`
}

func New(o Options) *MqttSink {
	logger := slog.Default().With("module", "mqtt")
	statusTopic := o.TopicPrefix + "/status"

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", o.Host, o.Port))
	opts.SetClientID("energiprice-" + uuid.NewString())
	opts.SetUsername(o.Username)
	opts.SetPassword(o.Password)
	opts.SetAutoReconnect(true)
	opts.SetWill(statusTopic, "offline", qos, true)
	opts.OnConnect = func(client mqtt.Client) {
		logger.Info("mqtt connected")
		client.Publish(statusTopic, qos, true, "online")
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", slog.Any("error", err))
	}

	pahoLogger := slog.Default().With("module", "paho")
	mqtt.CRITICAL = newMqttLogger(pahoLogger, slog.LevelError)
	mqtt.ERROR = newMqttLogger(pahoLogger, slog.LevelError)
	mqtt.WARN = newMqttLogger(pahoLogger, slog.LevelWarn)

	client := mqtt.NewClient(opts)
	return &MqttSink{client: client, pub: client, logger: logger, prefix: o.TopicPrefix}
}

func (m *MqttSink) Connect() error {
	m.logger.Debug("connecting mqtt client")
	token := m.client.Connect()
	if !token.WaitTimeout(30 * time.Second) {
		return fmt.Errorf("timeout when connecting to mqtt broker")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connecting to mqtt broker: %w", err)
	}
	return nil
}

func (m *MqttSink) Disconnect() {
	m.logger.Info("disconnecting mqtt client")
	token := m.client.Publish(m.prefix+"/status", qos, true, "offline")
	token.WaitTimeout(time.Second)
	m.client.Disconnect(250)
}

func (m *MqttSink) PublishValue(s types.Series, hour hours.DateHour, value maybe.Maybe[float64]) {
	m.publish(fmt.Sprintf("%s/%s/current", m.prefix, s), currentValue{HourStart: hour, Value: value})
}

func (m *MqttSink) PublishTimeSeries(s types.Series, records []types.Record) {
	if records == nil {
		records = []types.Record{}
	}
	m.publish(fmt.Sprintf("%s/%s/timeseries", m.prefix, s), records)
}

func (m *MqttSink) PublishHourlyPrices(prices []types.HourlyPrice) {
	if prices == nil {
		prices = []types.HourlyPrice{}
	}
	m.publish(m.prefix+"/hourly", prices)
}

func (m *MqttSink) publish(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		m.logger.Error("error when encoding mqtt payload", slog.String("topic", topic), slog.Any("error", err))
		return
	}

	token := m.pub.Publish(topic, qos, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		m.logger.Warn("timeout when publishing to mqtt", slog.String("topic", topic))
		return
	}
	if err := token.Error(); err != nil {
		m.logger.Error("error when publishing to mqtt", slog.String("topic", topic), slog.Any("error", err))
	}
}
