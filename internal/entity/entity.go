// Package entity maps vendor devices, areas and zones into binary sensors.
package entity

import (
	"fmt"
	"sync"

	georitm "github.com/caarlos0/georitm-bridge"
	"golang.org/x/exp/maps"
)

const (
	Platform = "binary_sensor"
	Domain   = "georitm"
)

type Kind string

const (
	KindGuard Kind = "guard"
	KindArea  Kind = "area"
	KindZone  Kind = "zone"
)

// Sensor is a binary sensor backed by one vendor device.
//
// Update is called with a freshly fetched record of the device on every
// poll, or nil when the device could not be found.
type Sensor interface {
	UniqueID() string
	DeviceID() georitm.ID
	DeviceName() string
	Kind() Kind
	Name() string
	DeviceClass() string
	Icon() string
	Available() bool
	IsOn() bool
	Attributes() map[string]interface{}
	Update(dev *georitm.Device)
}

// Labels used to name sensors.
type Labels struct {
	Guard string
	Area  string
	Zone  string
}

var (
	English = Labels{
		Guard: "Guard",
		Area:  "Zone %d",
		Zone:  "Section %d",
	}
	Russian = Labels{
		Guard: "Охрана",
		Area:  "Зона %d",
		Zone:  "Раздел %d",
	}
)

// LabelsFor returns the labels of the given language.
func LabelsFor(lang string) (Labels, error) {
	switch lang {
	case "", "en":
		return English, nil
	case "ru":
		return Russian, nil
	default:
		return Labels{}, fmt.Errorf("unsupported language: %q", lang)
	}
}

func (l Labels) area(area georitm.Area) string {
	if area.Name != "" {
		return area.Name
	}
	return fmt.Sprintf(l.Area, area.Num)
}

func (l Labels) zone(zone georitm.Zone) string {
	if zone.Name != "" {
		return zone.Name
	}
	return fmt.Sprintf(l.Zone, zone.Num)
}

func uniqueID(deviceID georitm.ID, suffix string) string {
	return fmt.Sprintf("%s.%s_%s_%s", Platform, Domain, deviceID, suffix)
}

type base struct {
	deviceID   georitm.ID
	deviceName string
	name       string

	mu     sync.RWMutex
	device *georitm.Device
	on     bool
	attrs  map[string]interface{}
}

func newBase(dev georitm.Device, name string, on bool) base {
	return base{
		deviceID:   dev.ID,
		deviceName: dev.Name,
		name:       name,
		on:         on,
		attrs:      map[string]interface{}{"deviceId": dev.ID.String()},
	}
}

func (b *base) DeviceID() georitm.ID { return b.deviceID }
func (b *base) DeviceName() string   { return b.deviceName }
func (b *base) Name() string         { return b.name }

// Available reports whether the device was found and is online.
func (b *base) Available() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.device != nil && b.device.Online()
}

func (b *base) IsOn() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.on
}

func (b *base) Attributes() map[string]interface{} {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return maps.Clone(b.attrs)
}

func (b *base) set(dev *georitm.Device, on bool, attrs map[string]interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.device = dev
	b.on = on
	b.attrs = attrs
}

func (b *base) deviceAttrs() map[string]interface{} {
	return map[string]interface{}{"deviceId": b.deviceID.String()}
}

// Build creates the sensors of the given devices: a guard for every device,
// plus an alarm sensor per area and per zone of devices that have areas.
func Build(devices []georitm.Device, labels Labels) []Sensor {
	var sensors []Sensor
	for _, dev := range devices {
		sensors = append(sensors, NewGuard(dev, labels))
		if dev.Areas == nil {
			continue
		}
		for _, area := range dev.Areas {
			sensors = append(sensors, NewAreaAlarm(dev, area, labels))
			for _, zone := range area.Zones {
				sensors = append(sensors, NewZoneAlarm(dev, area, zone, labels))
			}
		}
	}
	return sensors
}
