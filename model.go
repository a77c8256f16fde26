package georitm

// ObjectType tells mobile units from stationary installations.
type ObjectType int

const (
	ObjectMobile     ObjectType = 0
	ObjectStationary ObjectType = 1
)

func (t ObjectType) String() string {
	switch t {
	case ObjectMobile:
		return "mobile"
	case ObjectStationary:
		return "stationary"
	default:
		return "unknown"
	}
}

// Device is a monitored object.
//
// Areas is non-nil only for stationary devices.
type Device struct {
	ID           ID          `json:"id"           yaml:"id"`
	Name         string      `json:"name"         yaml:"name"`
	ObjType      Int         `json:"objType"      yaml:"objType"`
	Region       Text        `json:"region"       yaml:"region"`
	City         Text        `json:"city"         yaml:"city"`
	AddressShort Text        `json:"addressShort" yaml:"addressShort"`
	Lat          Float       `json:"lat"          yaml:"lat"`
	Lon          Float       `json:"lon"          yaml:"lon"`
	State        ObjectState `json:"objectState"  yaml:"objectState"`
	Devices      []SubDevice `json:"devices"      yaml:"devices"`
	Areas        []Area      `json:"areas"        yaml:"areas,omitempty"`
}

func (d Device) Type() ObjectType {
	return ObjectType(d.ObjType)
}

func (d Device) Stationary() bool {
	return d.Type() == ObjectStationary
}

func (d Device) Online() bool {
	return d.State.IsOnline == 1
}

// Guarded reports whether the alarm of the device is enabled.
func (d Device) Guarded() bool {
	return d.State.IsGuarded != 0
}

// Area returns the area with the given id, if any.
func (d Device) Area(id ID) (Area, bool) {
	for _, area := range d.Areas {
		if area.ID == id {
			return area, true
		}
	}
	return Area{}, false
}

type ObjectState struct {
	IsOnline  Int `json:"isOnline"  yaml:"isOnline"`
	IsGuarded Int `json:"isGuarded" yaml:"isGuarded"`
}

// SubDevice is a physical unit of an installation. Its imei addresses
// arm and disarm commands.
type SubDevice struct {
	IMEI ID `json:"imei" yaml:"imei"`
}

// Area is an individually armable partition of a stationary device.
type Area struct {
	ID       ID     `json:"id"       yaml:"id"`
	Num      Int    `json:"num"      yaml:"num"`
	Name     string `json:"name"     yaml:"name"`
	HasAlarm Int    `json:"hasAlarm" yaml:"hasAlarm"`
	Zones    []Zone `json:"zones"    yaml:"zones"`
}

func (a Area) Alarm() bool {
	return a.HasAlarm == 1
}

// Zone returns the zone with the given id, if any.
func (a Area) Zone(id ID) (Zone, bool) {
	for _, zone := range a.Zones {
		if zone.ID == id {
			return zone, true
		}
	}
	return Zone{}, false
}

type Zone struct {
	ID       ID     `json:"id"       yaml:"id"`
	Num      Int    `json:"num"      yaml:"num"`
	Name     string `json:"name"     yaml:"name"`
	HasAlarm Int    `json:"hasAlarm" yaml:"hasAlarm"`
}

func (z Zone) Alarm() bool {
	return z.HasAlarm == 1
}
