// Package host adopts tracked devices and publishes their state.
//
// The Host is the consumer side of the tracker core. It keeps the set of
// attached entities, and on every DeviceChanged notification it reads the
// entity's current State and hands it to each configured Sink:
//
//	TrackedDevice ──DeviceChanged(id)──▶ Host ──State()──▶ Sinks
//	                                                     ├─ MQTTSink       (retained state + availability)
//	                                                     ├─ TelemetrySink  (InfluxDB battery/signal/sim)
//	                                                     ├─ BroadcastSink  (WebSocket tracker.state_changed)
//	                                                     └─ CatalogueSink  (SQLite tracker catalogue)
//
// Notification is synchronous: the refresh goroutine publishes every device
// before moving on. A sink error is logged and does not stop the other sinks.
// When State fails (for example a non-numeric coordinate) the entity is
// published as unavailable instead.
package host
