// Package mqtt connects the tracker service to its MQTT broker.
//
// Every tracker gets a retained state document and a retained availability
// flag; the one2track bridge publishes a periodic health message and
// listens for refresh commands:
//
//	graytrack/core/tracker/{id}/state         retained JSON
//	graytrack/core/tracker/{id}/availability  retained "online" / "offline"
//	graytrack/health/one2track                bridge heartbeat
//	graytrack/command/one2track/refresh       on-demand poll
//	graytrack/system/status                   service status and will
//
// Topics builds these strings. Client wraps paho with reconnect handling,
// subscription restore and a will that marks the service offline when it
// dies without calling Close.
//
// Production brokers should run with TLS (mqtt.broker.tls) and ACLs;
// anonymous access is for local development.
package mqtt
