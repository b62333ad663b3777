package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every bleflow topic.
const TopicPrefix = "bleflow"

// Topics provides builders for bleflow MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.Advertisement("kitchen-pi")  // bleflow/ble/kitchen-pi/advertisement
type Topics struct{}

// Advertisement returns the topic a gateway publishes advertisements on.
//
// Example: bleflow/ble/kitchen-pi/advertisement
func (Topics) Advertisement(gateway string) string {
	return fmt.Sprintf("%s/ble/%s/advertisement", TopicPrefix, gateway)
}

// AllAdvertisements matches advertisements from every gateway.
//
// Pattern: bleflow/ble/+/advertisement
func (Topics) AllAdvertisements() string {
	return TopicPrefix + "/ble/+/advertisement"
}

// FlowResult returns the topic a finished flow's result is published on.
//
// Example: bleflow/flow/thermopro/0b6c...
func (Topics) FlowResult(domain, flowID string) string {
	return fmt.Sprintf("%s/flow/%s/%s", TopicPrefix, domain, flowID)
}

// AllFlowResults matches every flow result.
//
// Pattern: bleflow/flow/+/+
func (Topics) AllFlowResults() string {
	return TopicPrefix + "/flow/+/+"
}

// SystemStatus returns the retained online/offline status topic.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// ParseAdvertisementTopic extracts the gateway name from an advertisement
// topic. ok is false for any other topic.
func ParseAdvertisementTopic(topic string) (gateway string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[1] != "ble" || parts[3] != "advertisement" || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}
