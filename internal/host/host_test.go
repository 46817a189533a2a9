package host

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-tracker/internal/device"
	"github.com/nerrad567/gray-logic-tracker/internal/tracker"
)

// mockEntity is a test implementation of tracker.Entity.
type mockEntity struct {
	mu       sync.Mutex
	id       string
	state    tracker.State
	stateErr error
	attached int
	detached int
}

func (m *mockEntity) UniqueID() string { return m.id }

func (m *mockEntity) State() (tracker.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.stateErr
}

func (m *mockEntity) OnHostAttach(context.Context) {
	m.mu.Lock()
	m.attached++
	m.mu.Unlock()
}

func (m *mockEntity) OnHostDetach() {
	m.mu.Lock()
	m.detached++
	m.mu.Unlock()
}

// recordingSink captures published states.
type recordingSink struct {
	mu          sync.Mutex
	states      []tracker.State
	unavailable []string
	err         error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) PublishState(_ context.Context, st tracker.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, st)
	return s.err
}

func (s *recordingSink) PublishUnavailable(_ context.Context, id string, _ error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = append(s.unavailable, id)
	return s.err
}

func newEntity(id string) *mockEntity {
	return &mockEntity{id: id, state: tracker.State{UniqueID: id, Name: "Watch " + id, Available: true}}
}

func TestHost_AddEntityAttaches(t *testing.T) {
	h := New(Options{})
	e := newEntity("a1")

	h.AddEntity(e)

	if e.attached != 1 {
		t.Errorf("attached = %d, want 1", e.attached)
	}
	if h.EntityCount() != 1 {
		t.Errorf("EntityCount() = %d, want 1", h.EntityCount())
	}
}

func TestHost_AddEntityReplaces(t *testing.T) {
	h := New(Options{})
	first := newEntity("a1")
	second := newEntity("a1")

	h.AddEntity(first)
	h.AddEntity(second)

	if first.detached != 1 {
		t.Errorf("replaced entity detached = %d, want 1", first.detached)
	}
	if got, _ := h.Entity("a1"); got != second {
		t.Error("Entity() did not return the replacement")
	}
}

func TestHost_DeviceChangedFansOut(t *testing.T) {
	a, b := &recordingSink{err: errors.New("broker down")}, &recordingSink{}
	h := New(Options{Sinks: []Sink{a, b}})
	h.AddEntity(newEntity("a1"))

	h.DeviceChanged("a1")

	if len(a.states) != 1 || len(b.states) != 1 {
		t.Errorf("published = %d/%d, want 1/1 (errors must not stop fan-out)", len(a.states), len(b.states))
	}
}

func TestHost_DeviceChangedReadError(t *testing.T) {
	sink := &recordingSink{}
	h := New(Options{Sinks: []Sink{sink}})
	e := newEntity("a1")
	e.stateErr = tracker.ErrCoordinateParse
	h.AddEntity(e)

	h.DeviceChanged("a1")

	if len(sink.states) != 0 {
		t.Errorf("states = %d, want 0", len(sink.states))
	}
	if len(sink.unavailable) != 1 || sink.unavailable[0] != "a1" {
		t.Errorf("unavailable = %v", sink.unavailable)
	}
}

func TestHost_DeviceChangedUnknownIgnored(t *testing.T) {
	sink := &recordingSink{}
	h := New(Options{Sinks: []Sink{sink}})

	h.DeviceChanged("ghost")

	if len(sink.states)+len(sink.unavailable) != 0 {
		t.Error("unknown entity should not publish")
	}
}

func TestHost_RemoveAndClose(t *testing.T) {
	h := New(Options{})
	a, b := newEntity("a"), newEntity("b")
	h.AddEntity(a)
	h.AddEntity(b)

	if err := h.RemoveEntity("a"); err != nil {
		t.Fatalf("RemoveEntity() error = %v", err)
	}
	if a.detached != 1 {
		t.Error("RemoveEntity() did not detach")
	}
	if err := h.RemoveEntity("a"); !errors.Is(err, ErrEntityNotFound) {
		t.Errorf("second RemoveEntity() error = %v", err)
	}

	h.Close()
	if b.detached != 1 || h.EntityCount() != 0 {
		t.Error("Close() did not detach remaining entities")
	}
}

func TestHost_StatesSkipsUnreadable(t *testing.T) {
	h := New(Options{})
	bad := newEntity("a")
	bad.stateErr = errors.New("boom")
	h.AddEntity(newEntity("c"))
	h.AddEntity(bad)
	h.AddEntity(newEntity("b"))

	states := h.States()
	if len(states) != 2 || states[0].UniqueID != "b" || states[1].UniqueID != "c" {
		t.Errorf("States() = %+v", states)
	}
	if _, err := h.State("missing"); !errors.Is(err, ErrEntityNotFound) {
		t.Errorf("State(missing) error = %v", err)
	}
}

// Host adopting real TrackedDevices end to end.
func TestHost_WithTrackedDevice(t *testing.T) {
	sink := &recordingSink{}
	h := New(Options{Sinks: []Sink{sink}})

	rec := tracker.DeviceRecord{
		UUID: "a1",
		Name: "Watch",
		LastLocation: tracker.LastLocation{
			Latitude:     "52.1",
			Longitude:    "5.1",
			LocationType: tracker.LocationTypeWiFi,
			Address:      "123 Main",
		},
	}
	d := tracker.NewTrackedDevice(rec, tracker.TrackedDeviceOptions{Notifier: h})
	h.AddEntity(d)

	d.HandleUpdateFailed(&tracker.UpdateFailedError{Cycle: 1, Err: tracker.ErrFetchTimeout})

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.states) != 2 {
		t.Fatalf("states = %d, want 2 (attach + failure)", len(sink.states))
	}
	if sink.states[0].LocationName != tracker.HomeLabel || !sink.states[0].Available {
		t.Errorf("attach state = %+v", sink.states[0])
	}
	if sink.states[1].Available {
		t.Error("state after failure should be unavailable")
	}
}

// mockPublisher captures MQTT publishes.
type mockPublisher struct {
	mu       sync.Mutex
	messages map[string][]byte
	retained map[string]bool
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{messages: make(map[string][]byte), retained: make(map[string]bool)}
}

func (p *mockPublisher) Publish(topic string, payload []byte, _ byte, retained bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages[topic] = payload
	p.retained[topic] = retained
	return nil
}

func TestMQTTSink(t *testing.T) {
	pub := newMockPublisher()
	s := NewMQTTSink(pub, 1)

	st := tracker.State{UniqueID: "a1", Name: "Watch", Latitude: 52.1, Available: true}
	if err := s.PublishState(context.Background(), st); err != nil {
		t.Fatalf("PublishState() error = %v", err)
	}

	stateTopic := "graytrack/core/tracker/a1/state"
	availTopic := "graytrack/core/tracker/a1/availability"

	var decoded map[string]any
	if err := json.Unmarshal(pub.messages[stateTopic], &decoded); err != nil {
		t.Fatalf("state payload not JSON: %v", err)
	}
	if decoded["unique_id"] != "a1" || decoded["latitude"] != 52.1 || decoded["timestamp"] == "" {
		t.Errorf("state payload = %v", decoded)
	}
	if !pub.retained[stateTopic] {
		t.Error("state should be retained")
	}
	if string(pub.messages[availTopic]) != AvailabilityOnline {
		t.Errorf("availability = %q", pub.messages[availTopic])
	}

	if err := s.PublishUnavailable(context.Background(), "a1", errors.New("x")); err != nil {
		t.Fatal(err)
	}
	if string(pub.messages[availTopic]) != AvailabilityOffline {
		t.Errorf("availability after unavailable = %q", pub.messages[availTopic])
	}
}

// mockWriter captures InfluxDB points.
type mockWriter struct {
	points []map[string]interface{}
	tags   []map[string]string
}

func (w *mockWriter) WritePoint(_ string, tags map[string]string, fields map[string]interface{}) {
	w.tags = append(w.tags, tags)
	w.points = append(w.points, fields)
}

func TestTelemetrySink(t *testing.T) {
	w := &mockWriter{}
	s := NewTelemetrySink(w)

	st := tracker.State{UniqueID: "a1", BatteryLevel: 55, Available: true}
	st.Attributes.SignalStrength = 70
	st.Attributes.LocationType = tracker.LocationTypeGPS

	if err := s.PublishState(context.Background(), st); err != nil {
		t.Fatal(err)
	}
	st.Available = false
	if err := s.PublishState(context.Background(), st); err != nil {
		t.Fatal(err)
	}

	if len(w.points) != 1 {
		t.Fatalf("points = %d, want 1 (unavailable skipped)", len(w.points))
	}
	if w.points[0]["battery_percentage"] != 55 || w.tags[0]["location_type"] != "GPS" {
		t.Errorf("point = %v tags = %v", w.points[0], w.tags[0])
	}
}

type mockBroadcaster struct {
	channels []string
}

func (b *mockBroadcaster) Broadcast(channel string, _ any) {
	b.channels = append(b.channels, channel)
}

func TestBroadcastSink(t *testing.T) {
	b := &mockBroadcaster{}
	s := NewBroadcastSink(b)

	_ = s.PublishState(context.Background(), tracker.State{UniqueID: "a1"})
	_ = s.PublishUnavailable(context.Background(), "a1", errors.New("bad coordinate"))

	if len(b.channels) != 2 || b.channels[0] != ChannelStateChanged || b.channels[1] != ChannelUnavailable {
		t.Errorf("channels = %v", b.channels)
	}
}

type mockCatalogue struct {
	observed []device.Device
}

func (c *mockCatalogue) Observe(_ context.Context, d device.Device) error {
	c.observed = append(c.observed, d)
	return nil
}

func TestCatalogueSink(t *testing.T) {
	c := &mockCatalogue{}
	s := NewCatalogueSink(c)

	st := tracker.State{UniqueID: "a1", Name: "Watch", BatteryLevel: 30, Available: true}
	st.Attributes.SerialNumber = "SN1"
	st.Attributes.PhoneNumber = "+316"

	if err := s.PublishState(context.Background(), st); err != nil {
		t.Fatal(err)
	}
	if len(c.observed) != 1 {
		t.Fatalf("observed = %d", len(c.observed))
	}
	got := c.observed[0]
	if got.ID != "a1" || got.SerialNumber != "SN1" || got.BatteryPercentage != 30 || !got.Available {
		t.Errorf("observed = %+v", got)
	}
}
