package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const (
	// MeasurementTrackerHealth has one point per tracker per accepted
	// snapshot: battery, GSM signal, satellites and SIM balance.
	MeasurementTrackerHealth = "tracker_health"

	// MeasurementRefresh has one point per coordinator refresh.
	MeasurementRefresh = "tracker_refresh"
)

// WriteRefresh records a refresh cycle. result is "success" or "failure";
// devices is the snapshot size, zero on failure.
//
//	client.WriteRefresh("success", 3, 420*time.Millisecond)
func (c *Client) WriteRefresh(result string, devices int, duration time.Duration) {
	c.WritePoint(MeasurementRefresh,
		map[string]string{"result": result},
		map[string]interface{}{"devices": devices, "duration_ms": duration.Milliseconds()})
}

// WritePoint queues a point stamped now. Keep tags low cardinality.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime queues a point with an explicit timestamp, such as a
// tracker's last communication time.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}
