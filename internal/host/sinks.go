package host

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-tracker/internal/device"
	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-tracker/internal/tracker"
)

// Availability payloads published on the availability topic.
const (
	AvailabilityOnline  = "online"
	AvailabilityOffline = "offline"
)

// Publisher is the MQTT capability the MQTTSink needs.
// Satisfied by *mqtt.Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MQTTSink publishes retained tracker state and availability.
type MQTTSink struct {
	pub    Publisher
	qos    byte
	topics mqtt.Topics
}

// NewMQTTSink creates a sink publishing with the given QoS.
func NewMQTTSink(pub Publisher, qos byte) *MQTTSink {
	return &MQTTSink{pub: pub, qos: qos}
}

// Name implements Sink.
func (s *MQTTSink) Name() string { return "mqtt" }

// statePayload is the retained JSON document on the tracker state topic.
type statePayload struct {
	tracker.State
	Timestamp string `json:"timestamp"`
}

// PublishState implements Sink.
func (s *MQTTSink) PublishState(_ context.Context, st tracker.State) error {
	payload, err := json.Marshal(statePayload{State: st, Timestamp: time.Now().UTC().Format(time.RFC3339)})
	if err != nil {
		return fmt.Errorf("marshalling tracker state: %w", err)
	}
	if err := s.pub.Publish(s.topics.TrackerState(st.UniqueID), payload, s.qos, true); err != nil {
		return err
	}
	return s.publishAvailability(st.UniqueID, st.Available)
}

// PublishUnavailable implements Sink.
func (s *MQTTSink) PublishUnavailable(_ context.Context, id string, _ error) error {
	return s.publishAvailability(id, false)
}

func (s *MQTTSink) publishAvailability(id string, available bool) error {
	payload := AvailabilityOffline
	if available {
		payload = AvailabilityOnline
	}
	return s.pub.Publish(s.topics.TrackerAvailability(id), []byte(payload), s.qos, true)
}

// MetricWriter is the InfluxDB capability the TelemetrySink needs.
// Satisfied by *influxdb.Client.
type MetricWriter interface {
	WritePoint(measurement string, tags map[string]string, fields map[string]interface{})
}

// TelemetrySink writes tracker health metrics to a time-series database.
// Unavailable trackers are skipped so stale values are not re-recorded.
type TelemetrySink struct {
	writer MetricWriter
}

// NewTelemetrySink creates a telemetry sink.
func NewTelemetrySink(writer MetricWriter) *TelemetrySink {
	return &TelemetrySink{writer: writer}
}

// Name implements Sink.
func (s *TelemetrySink) Name() string { return "telemetry" }

// PublishState implements Sink.
func (s *TelemetrySink) PublishState(_ context.Context, st tracker.State) error {
	if !st.Available {
		return nil
	}
	tags := map[string]string{
		"device_id":     st.UniqueID,
		"location_type": string(st.Attributes.LocationType),
	}
	fields := map[string]interface{}{
		"battery_percentage": st.BatteryLevel,
		"signal_strength":    st.Attributes.SignalStrength,
		"satellite_count":    st.Attributes.SatelliteCount,
		"balance_cents":      st.Attributes.BalanceCents,
	}
	s.writer.WritePoint("tracker_health", tags, fields)
	return nil
}

// PublishUnavailable implements Sink.
func (s *TelemetrySink) PublishUnavailable(context.Context, string, error) error {
	return nil
}

// Broadcaster is the WebSocket capability the BroadcastSink needs.
// Satisfied by *api.Hub.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Channels broadcast to WebSocket subscribers.
const (
	ChannelStateChanged = "tracker.state_changed"
	ChannelUnavailable  = "tracker.unavailable"
)

// BroadcastSink pushes tracker state to WebSocket subscribers.
type BroadcastSink struct {
	b Broadcaster
}

// NewBroadcastSink creates a broadcast sink.
func NewBroadcastSink(b Broadcaster) *BroadcastSink {
	return &BroadcastSink{b: b}
}

// Name implements Sink.
func (s *BroadcastSink) Name() string { return "websocket" }

// PublishState implements Sink.
func (s *BroadcastSink) PublishState(_ context.Context, st tracker.State) error {
	s.b.Broadcast(ChannelStateChanged, st)
	return nil
}

// PublishUnavailable implements Sink.
func (s *BroadcastSink) PublishUnavailable(_ context.Context, id string, cause error) error {
	s.b.Broadcast(ChannelUnavailable, map[string]string{
		"unique_id": id,
		"error":     cause.Error(),
	})
	return nil
}

// Catalogue is the catalogue capability the CatalogueSink needs.
// Satisfied by *device.Registry.
type Catalogue interface {
	Observe(ctx context.Context, d device.Device) error
}

// CatalogueSink records every published tracker in the catalogue.
type CatalogueSink struct {
	catalogue Catalogue
}

// NewCatalogueSink creates a catalogue sink.
func NewCatalogueSink(c Catalogue) *CatalogueSink {
	return &CatalogueSink{catalogue: c}
}

// Name implements Sink.
func (s *CatalogueSink) Name() string { return "catalogue" }

// PublishState implements Sink.
func (s *CatalogueSink) PublishState(ctx context.Context, st tracker.State) error {
	return s.catalogue.Observe(ctx, device.Device{
		ID:                st.UniqueID,
		Name:              st.Name,
		SerialNumber:      st.Attributes.SerialNumber,
		PhoneNumber:       st.Attributes.PhoneNumber,
		Status:            st.Attributes.Status,
		BatteryPercentage: st.BatteryLevel,
		Available:         st.Available,
	})
}

// PublishUnavailable implements Sink. The catalogue keeps the last good entry.
func (s *CatalogueSink) PublishUnavailable(context.Context, string, error) error {
	return nil
}
