package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/caarlos0/georitm-bridge/internal/entity"
	"github.com/caarlos0/georitm-bridge/internal/state"
)

const (
	manufacturer = "Ritm"
	model        = "GeoRITM"

	payloadOn      = "ON"
	payloadOff     = "OFF"
	payloadOnline  = "online"
	payloadOffline = "offline"
)

// message is a topic and its payload. A nil payload on a retained
// discovery topic removes the entity.
type message struct {
	Topic    string
	Payload  []byte
	Retained bool
}

type haDevice struct {
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name"`
}

type haAvailability struct {
	Topic string `json:"topic"`
}

type haDiscovery struct {
	Name                string           `json:"name"`
	UniqueID            string           `json:"unique_id"`
	ObjectID            string           `json:"object_id"`
	StateTopic          string           `json:"state_topic"`
	JSONAttributesTopic string           `json:"json_attributes_topic"`
	Availability        []haAvailability `json:"availability"`
	AvailabilityMode    string           `json:"availability_mode"`
	DeviceClass         string           `json:"device_class,omitempty"`
	Icon                string           `json:"icon,omitempty"`
	PayloadOn           string           `json:"payload_on"`
	PayloadOff          string           `json:"payload_off"`
	Device              haDevice         `json:"device"`
}

type topics struct {
	prefix    string
	discovery string
}

func (t topics) bridgeState() string { return t.prefix + "/bridge/state" }
func (t topics) sendCommand() string { return t.prefix + "/send_command" }

func (t topics) state(entityID string) string {
	return t.prefix + "/" + objectID(entityID) + "/state"
}

func (t topics) attributes(entityID string) string {
	return t.prefix + "/" + objectID(entityID) + "/attributes"
}

func (t topics) availability(entityID string) string {
	return t.prefix + "/" + objectID(entityID) + "/availability"
}

func (t topics) config(s entity.Sensor) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", t.discovery, entity.Platform, nodeID(s), objectID(s.UniqueID()))
}

// objectID is the entity id without its platform, safe for topics.
func objectID(entityID string) string {
	return sanitize(strings.TrimPrefix(entityID, entity.Platform+"."))
}

func nodeID(s entity.Sensor) string {
	return sanitize(entity.Domain + "_" + s.DeviceID().String())
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, s)
}

func buildDiscovery(sensors []entity.Sensor, t topics) []message {
	msgs := make([]message, 0, len(sensors))
	for _, s := range sensors {
		id := s.UniqueID()
		msgs = append(msgs, message{
			Topic: t.config(s),
			Payload: mustJSON(haDiscovery{
				Name:                s.Name(),
				UniqueID:            id,
				ObjectID:            objectID(id),
				StateTopic:          t.state(id),
				JSONAttributesTopic: t.attributes(id),
				Availability: []haAvailability{
					{Topic: t.bridgeState()},
					{Topic: t.availability(id)},
				},
				AvailabilityMode: "all",
				DeviceClass:      s.DeviceClass(),
				Icon:             s.Icon(),
				PayloadOn:        payloadOn,
				PayloadOff:       payloadOff,
				Device: haDevice{
					Identifiers:  []string{nodeID(s)},
					Manufacturer: manufacturer,
					Model:        model,
					Name:         s.DeviceName(),
				},
			}),
			Retained: true,
		})
	}
	return msgs
}

// stateMessages are published whenever the state of an entity is set.
// The state topic keeps its last value while the entity is unavailable.
func stateMessages(st state.State, t topics) []message {
	if !st.Available() {
		return []message{
			{Topic: t.availability(st.EntityID), Payload: []byte(payloadOffline), Retained: true},
		}
	}
	value := payloadOff
	if st.IsOn() {
		value = payloadOn
	}
	return []message{
		{Topic: t.availability(st.EntityID), Payload: []byte(payloadOnline), Retained: true},
		{Topic: t.state(st.EntityID), Payload: []byte(value), Retained: true},
		{Topic: t.attributes(st.EntityID), Payload: mustJSON(st.Attributes), Retained: true},
	}
}

func mustJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
