package entity

import (
	"fmt"

	georitm "github.com/caarlos0/georitm-bridge"
)

// AreaAlarm is on while the area reports an alarm, or when the area can't
// be found in the device record.
type AreaAlarm struct {
	base
	areaID georitm.ID
}

var _ Sensor = &AreaAlarm{}

func NewAreaAlarm(dev georitm.Device, area georitm.Area, labels Labels) *AreaAlarm {
	return &AreaAlarm{
		base:   newBase(dev, fmt.Sprintf("%s: %s", dev.Name, labels.area(area)), true),
		areaID: area.ID,
	}
}

func (a *AreaAlarm) UniqueID() string    { return uniqueID(a.deviceID, a.areaID.String()) }
func (a *AreaAlarm) Kind() Kind          { return KindArea }
func (a *AreaAlarm) DeviceClass() string { return "problem" }
func (a *AreaAlarm) Icon() string        { return bellIcon(a.IsOn()) }

func (a *AreaAlarm) Update(dev *georitm.Device) {
	attrs := a.deviceAttrs()
	if dev == nil {
		a.set(nil, true, attrs)
		return
	}
	area, ok := dev.Area(a.areaID)
	if !ok {
		a.set(dev, true, attrs)
		return
	}
	attrs["areaId"] = area.ID.String()
	attrs["areaName"] = area.Name
	a.set(dev, area.Alarm(), attrs)
}

// ZoneAlarm is on while the zone reports an alarm, or when the zone can't
// be found in the device record.
type ZoneAlarm struct {
	base
	areaID georitm.ID
	zoneID georitm.ID
}

var _ Sensor = &ZoneAlarm{}

func NewZoneAlarm(dev georitm.Device, area georitm.Area, zone georitm.Zone, labels Labels) *ZoneAlarm {
	name := fmt.Sprintf("%s: %s - %s", dev.Name, labels.area(area), labels.zone(zone))
	return &ZoneAlarm{
		base:   newBase(dev, name, true),
		areaID: area.ID,
		zoneID: zone.ID,
	}
}

func (z *ZoneAlarm) UniqueID() string    { return uniqueID(z.deviceID, z.zoneID.String()) }
func (z *ZoneAlarm) Kind() Kind          { return KindZone }
func (z *ZoneAlarm) DeviceClass() string { return "problem" }
func (z *ZoneAlarm) Icon() string        { return bellIcon(z.IsOn()) }

func (z *ZoneAlarm) Update(dev *georitm.Device) {
	attrs := z.deviceAttrs()
	if dev == nil {
		z.set(nil, true, attrs)
		return
	}
	area, ok := dev.Area(z.areaID)
	if !ok {
		z.set(dev, true, attrs)
		return
	}
	zone, ok := area.Zone(z.zoneID)
	if !ok {
		z.set(dev, true, attrs)
		return
	}
	attrs["areaId"] = area.ID.String()
	attrs["areaName"] = area.Name
	attrs["zoneId"] = zone.ID.String()
	attrs["zoneName"] = zone.Name
	z.set(dev, zone.Alarm(), attrs)
}

func bellIcon(on bool) string {
	if on {
		return "mdi:bell-ring"
	}
	return "mdi:bell"
}
