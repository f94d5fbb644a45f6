package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every topic SchoolHub publishes.
const TopicPrefix = "schoolhub"

// Topics builds the topic names used by SchoolHub.
//
//	schoolhub/events/{role}/{type}   domain events, not retained
//	schoolhub/system/status          node status, retained
type Topics struct{}

// Event returns the topic for a single event type emitted by a role's service.
// Events that do not belong to a role use "system".
func (Topics) Event(role, eventType string) string {
	if role == "" {
		role = "system"
	}
	return fmt.Sprintf("%s/events/%s/%s", TopicPrefix, role, eventType)
}

// RoleEvents matches every event for one role.
func (Topics) RoleEvents(role string) string {
	return fmt.Sprintf("%s/events/%s/+", TopicPrefix, role)
}

// AllEvents matches every event topic.
func (Topics) AllEvents() string {
	return TopicPrefix + "/events/#"
}

// SystemStatus is the retained online/offline status topic.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// ParseEventTopic splits an event topic into its role and type.
func ParseEventTopic(topic string) (role, eventType string, err error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[1] != "events" || parts[2] == "" || parts[3] == "" {
		return "", "", fmt.Errorf("%w: %q is not an event topic", ErrInvalidTopic, topic)
	}
	return parts[2], parts[3], nil
}

// validPublishTopic rejects empty topics and wildcards, which brokers refuse on publish.
func validPublishTopic(topic string) bool {
	return topic != "" && !strings.ContainsAny(topic, "+#")
}
