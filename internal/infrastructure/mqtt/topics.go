package mqtt

import "fmt"

// Topic prefixes for the tracker service.
//
// Bridge topics use the flat scheme graytrack/{category}/{protocol}/{id}.
// Tracker entity topics live under graytrack/core/tracker/{id}/...
const (
	// TopicPrefixBridge is the base for all bridge topics.
	TopicPrefixBridge = "graytrack"

	// TopicPrefixCore is the base for all core topics.
	TopicPrefixCore = "graytrack/core"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "graytrack/system"
)

// Topics provides builders for tracker MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.TrackerState("a1b2c3")
//	// Returns: "graytrack/core/tracker/a1b2c3/state"
type Topics struct{}

// =============================================================================
// Bridge Topics
// =============================================================================

// BridgeState returns the topic for bridge-level state such as the last poll.
//
// Example: graytrack/state/one2track/poll
func (Topics) BridgeState(protocol, name string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefixBridge, protocol, name)
}

// BridgeCommand returns the topic for commands to a bridge.
//
// Example: graytrack/command/one2track/refresh
func (Topics) BridgeCommand(protocol, command string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefixBridge, protocol, command)
}

// BridgeHealth returns the topic for bridge health status.
//
// Example: graytrack/health/one2track
func (Topics) BridgeHealth(protocol string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefixBridge, protocol)
}

// =============================================================================
// Tracker Topics
// =============================================================================

// TrackerState returns the retained state topic for one tracker.
//
// Example: graytrack/core/tracker/a1b2c3/state
func (Topics) TrackerState(id string) string {
	return fmt.Sprintf("%s/tracker/%s/state", TopicPrefixCore, id)
}

// TrackerAvailability returns the retained online/offline topic for one tracker.
//
// Example: graytrack/core/tracker/a1b2c3/availability
func (Topics) TrackerAvailability(id string) string {
	return fmt.Sprintf("%s/tracker/%s/availability", TopicPrefixCore, id)
}

// =============================================================================
// Core Topics
// =============================================================================

// CoreEvent returns the topic for service events.
//
// Example: graytrack/core/event/update_failed
func (Topics) CoreEvent(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixCore, eventType)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the topic for service online/offline status.
// Used for Last Will and Testament (LWT).
//
// Example: graytrack/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// =============================================================================
// Wildcard Subscriptions
// =============================================================================

// AllTrackerStates returns a wildcard matching every tracker state topic.
//
// Pattern: graytrack/core/tracker/+/state
func (Topics) AllTrackerStates() string {
	return TopicPrefixCore + "/tracker/+/state"
}

// AllBridgeCommands returns a wildcard matching every command to a bridge.
//
// Pattern: graytrack/command/{protocol}/+
func (Topics) AllBridgeCommands(protocol string) string {
	return fmt.Sprintf("%s/command/%s/+", TopicPrefixBridge, protocol)
}

// AllTopics returns a wildcard matching every service topic.
//
// Pattern: graytrack/#
func (Topics) AllTopics() string {
	return TopicPrefixBridge + "/#"
}
