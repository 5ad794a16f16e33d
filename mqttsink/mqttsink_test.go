package mqttsink

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/icodeforyou/energiprice-go/hours"
	"github.com/icodeforyou/energiprice-go/types"
	"github.com/icodeforyou/energiprice-go/types/maybe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doneToken struct {
	err error
}

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type message struct {
	topic    string
	retained bool
	payload  string
}

type fakePublisher struct {
	messages []message
	err      error
}

func (f *fakePublisher) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	f.messages = append(f.messages, message{topic: topic, retained: retained, payload: string(payload.([]byte))})
	return doneToken{err: f.err}
}

func newTestSink(pub publisher, logger *slog.Logger) *MqttSink {
	return &MqttSink{pub: pub, logger: logger, prefix: "energiprice"}
}

func TestPublishedTopicsAndPayloads(t *testing.T) {
	pub := &fakePublisher{}
	sink := newTestSink(pub, slog.Default())
	h := hours.DateHour{Date: "2025-02-03", Hour: 12}

	sink.PublishValue(types.SpotPrice, h, maybe.Some(0.5))
	sink.PublishValue(types.GridTariff, h, maybe.None[float64]())
	sink.PublishTimeSeries(types.SystemTariff, nil)
	sink.PublishHourlyPrices([]types.HourlyPrice{{Hour: h, SpotPrice: 0.5, SpotPriceCurrency: "DKK"}})

	require.Len(t, pub.messages, 4)
	for _, m := range pub.messages {
		assert.True(t, m.retained, m.topic)
	}

	assert.Equal(t, "energiprice/spot-price/current", pub.messages[0].topic)
	assert.JSONEq(t, `{"hourStart":"2025-02-03T12:00:00Z","value":0.5}`, pub.messages[0].payload)
	assert.Equal(t, "energiprice/grid-tariff/current", pub.messages[1].topic)
	assert.JSONEq(t, `{"hourStart":"2025-02-03T12:00:00Z","value":null}`, pub.messages[1].payload)
	assert.Equal(t, "energiprice/system-tariff/timeseries", pub.messages[2].topic)
	assert.Equal(t, "[]", pub.messages[2].payload)
	assert.Equal(t, "energiprice/hourly", pub.messages[3].topic)
	assert.Contains(t, pub.messages[3].payload, `"spotPriceCurrency":"DKK"`)
}

func TestPublishErrorIsLogged(t *testing.T) {
	var buf bytes.Buffer
	pub := &fakePublisher{err: errors.New("not connected")}
	sink := newTestSink(pub, slog.New(slog.NewTextHandler(&buf, nil)))

	sink.PublishTimeSeries(types.SpotPrice, []types.Record{{Hour: hours.DateHour{Date: "2025-02-03", Hour: 0}, Value: 1}})

	assert.Contains(t, buf.String(), "not connected")
	assert.Contains(t, buf.String(), "energiprice/spot-price/timeseries")
}

func TestMqttLoggerBridge(t *testing.T) {
	var buf bytes.Buffer
	l := newMqttLogger(slog.New(slog.NewTextHandler(&buf, nil)), slog.LevelWarn)

	l.Println("[client]", "connection lost")
	l.Printf("[net] %d retries", 3)

	out := buf.String()
	assert.Contains(t, out, `level=WARN msg="[client] connection lost"`)
	assert.Contains(t, out, `msg="[net] 3 retries"`)
}
