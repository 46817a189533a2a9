// Package influxdb keeps tracker history in InfluxDB v2.
//
// Two measurements are written:
//   - tracker_health: battery, GSM signal, satellite count and SIM balance per tracker
//   - tracker_refresh: outcome and duration of each poll cycle
//
// History is optional. Connect returns ErrDisabled when it is switched off,
// and write failures surface through SetOnError rather than at the call site.
package influxdb
