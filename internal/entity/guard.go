package entity

import (
	"fmt"

	georitm "github.com/caarlos0/georitm-bridge"
)

// Guard is on while the alarm of the device is disabled.
type Guard struct {
	base
}

var _ Sensor = &Guard{}

func NewGuard(dev georitm.Device, labels Labels) *Guard {
	return &Guard{
		base: newBase(dev, fmt.Sprintf("%s: %s", dev.Name, labels.Guard), false),
	}
}

func (g *Guard) UniqueID() string    { return uniqueID(g.deviceID, "guard") }
func (g *Guard) Kind() Kind          { return KindGuard }
func (g *Guard) DeviceClass() string { return "safety" }

func (g *Guard) Icon() string {
	if g.IsOn() {
		return "mdi:lock-open-outline"
	}
	return "mdi:lock"
}

func (g *Guard) Update(dev *georitm.Device) {
	attrs := g.deviceAttrs()
	if dev == nil {
		g.set(nil, false, attrs)
		return
	}
	attrs["objType"] = int(dev.ObjType)
	attrs["region"] = string(dev.Region)
	attrs["city"] = string(dev.City)
	attrs["addressShort"] = string(dev.AddressShort)
	attrs["lat"] = float64(dev.Lat)
	attrs["lon"] = float64(dev.Lon)
	g.set(dev, !dev.Guarded(), attrs)
}
