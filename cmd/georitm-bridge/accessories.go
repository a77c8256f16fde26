package main

import (
	"hash/fnv"

	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	"github.com/brutella/hap/service"
	georitm "github.com/caarlos0/georitm-bridge"
	"github.com/caarlos0/georitm-bridge/internal/entity"
	"github.com/caarlos0/georitm-bridge/internal/state"
)

const manufacturer = "Ritm"

// ContactSensor is open while an area or zone alarm is on.
type ContactSensor struct {
	*accessory.A
	Contact *service.ContactSensor
	Fault   *characteristic.StatusFault
}

func newContactSensor(info accessory.Info) *ContactSensor {
	a := ContactSensor{}
	a.A = accessory.New(info, accessory.TypeSensor)

	a.Contact = service.NewContactSensor()
	a.Fault = characteristic.NewStatusFault()
	a.Contact.AddC(a.Fault.C)
	a.AddS(a.Contact.S)

	return &a
}

func (s *ContactSensor) Update(st state.State) {
	if v := boolAs[int](!st.Available()); s.Fault.Value() != v {
		_ = s.Fault.SetValue(v)
		log.Info("fault", "entity", st.EntityID, "status", v)
	}
	if !st.Available() {
		return
	}
	current := boolAs[int](st.IsOn())
	if s.Contact.ContactSensorState.Value() == current {
		return
	}
	_ = s.Contact.ContactSensorState.SetValue(current)
	log.Info("contact", "entity", st.EntityID, "alarm", st.IsOn())
}

// HomeKit keeps one accessory per sensor in sync with the store.
type HomeKit struct {
	store    state.Store
	alarms   map[georitm.ID]*SecuritySystem
	contacts map[string]*ContactSensor
	sensors  []entity.Sensor
	devices  map[string]georitm.ID
	alarmsOf map[georitm.ID][]string
}

func newHomeKit(sensors []entity.Sensor, store state.Store, commander Commander) *HomeKit {
	h := &HomeKit{
		store:    store,
		alarms:   map[georitm.ID]*SecuritySystem{},
		contacts: map[string]*ContactSensor{},
		sensors:  sensors,
		devices:  map[string]georitm.ID{},
		alarmsOf: map[georitm.ID][]string{},
	}
	for _, sensor := range sensors {
		id := sensor.UniqueID()
		h.devices[id] = sensor.DeviceID()
		info := accessory.Info{
			Name:         sensor.Name(),
			SerialNumber: id,
			Manufacturer: manufacturer,
			Model:        string(sensor.Kind()),
		}
		switch sensor.Kind() {
		case entity.KindGuard:
			a := NewSecuritySystem(info, sensor, commander)
			a.Id = accessoryID(id)
			h.alarms[sensor.DeviceID()] = a
		default:
			a := newContactSensor(info)
			a.Id = accessoryID(id)
			h.contacts[id] = a
			h.alarmsOf[sensor.DeviceID()] = append(h.alarmsOf[sensor.DeviceID()], id)
		}
	}
	return h
}

// accessoryID is stable across restarts. 1 is the bridge.
func accessoryID(uniqueID string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(uniqueID))
	if id := h.Sum64(); id > 1 {
		return id
	}
	return 2
}

func (h *HomeKit) Accessories() []*accessory.A {
	var result []*accessory.A
	for _, sensor := range h.sensors {
		id := sensor.UniqueID()
		if c, ok := h.contacts[id]; ok {
			result = append(result, c.A)
			continue
		}
		if a, ok := h.alarms[sensor.DeviceID()]; ok && a.guard.UniqueID() == id {
			result = append(result, a.A)
		}
	}
	return result
}

// Update syncs the accessories affected by the given state.
func (h *HomeKit) Update(st state.State) {
	if c, ok := h.contacts[st.EntityID]; ok {
		c.Update(st)
	}
	deviceID, ok := h.devices[st.EntityID]
	if !ok {
		return
	}
	alarm, ok := h.alarms[deviceID]
	if !ok {
		return
	}
	guard, err := h.store.Get(alarm.guard.UniqueID())
	if err != nil {
		return
	}
	alarm.Update(guard, h.triggered(deviceID))
}

func (h *HomeKit) triggered(deviceID georitm.ID) bool {
	for _, id := range h.alarmsOf[deviceID] {
		st, err := h.store.Get(id)
		if err != nil {
			continue
		}
		if st.Available() && st.IsOn() {
			return true
		}
	}
	return false
}

type PageItem struct {
	Name      string
	EntityID  string
	Kind      string
	State     string
	Icon      string
	Available bool
	On        bool
}

func (h *HomeKit) page() []PageItem {
	var items []PageItem
	for _, sensor := range h.sensors {
		item := PageItem{
			Name:     sensor.Name(),
			EntityID: sensor.UniqueID(),
			Kind:     string(sensor.Kind()),
			State:    state.Unavailable,
			Icon:     sensor.Icon(),
		}
		if st, err := h.store.Get(sensor.UniqueID()); err == nil {
			item.State = st.State
			item.Available = st.Available()
			item.On = st.IsOn()
		}
		items = append(items, item)
	}
	return items
}
