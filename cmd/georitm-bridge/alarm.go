package main

import (
	"context"
	"net/http"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	"github.com/brutella/hap/service"
	"github.com/caarlos0/georitm-bridge/internal/dispatch"
	"github.com/caarlos0/georitm-bridge/internal/entity"
	"github.com/caarlos0/georitm-bridge/internal/state"
)

// Commander sends commands to entities.
type Commander interface {
	Send(ctx context.Context, entityID string, cmd dispatch.Command) error
}

// SecuritySystem arms and disarms one device through its guard sensor.
type SecuritySystem struct {
	*accessory.A
	SecuritySystem *service.SecuritySystem
	Fault          *characteristic.StatusFault

	guard     entity.Sensor
	commander Commander
}

func NewSecuritySystem(info accessory.Info, guard entity.Sensor, commander Commander) *SecuritySystem {
	a := &SecuritySystem{
		guard:     guard,
		commander: commander,
	}
	a.A = accessory.New(info, accessory.TypeSecuritySystem)

	a.SecuritySystem = service.NewSecuritySystem()
	a.AddS(a.SecuritySystem.S)

	a.Fault = characteristic.NewStatusFault()
	a.SecuritySystem.AddC(a.Fault.C)

	a.SecuritySystem.SecuritySystemTargetState.SetValueRequestFunc = a.updateHandler

	return a
}

// currentState of the alarm given the guard state, or -1 if unknown.
// The guard is on while the device is not guarded.
func currentState(guard state.State, triggered bool) int {
	if triggered {
		return characteristic.SecuritySystemCurrentStateAlarmTriggered
	}
	switch guard.State {
	case state.On:
		return characteristic.SecuritySystemCurrentStateDisarmed
	case state.Off:
		return characteristic.SecuritySystemCurrentStateAwayArm
	default:
		return -1
	}
}

func targetState(current int) int {
	switch current {
	case characteristic.SecuritySystemCurrentStateDisarmed:
		return characteristic.SecuritySystemTargetStateDisarm
	case characteristic.SecuritySystemCurrentStateAwayArm:
		return characteristic.SecuritySystemTargetStateAwayArm
	default:
		return -1
	}
}

func (a *SecuritySystem) Update(guard state.State, triggered bool) {
	if v := boolAs[int](!guard.Available()); a.Fault.Value() != v {
		_ = a.Fault.SetValue(v)
		log.Info("alarm status", "device", a.guard.DeviceID(), "fault", v)
	}

	v := currentState(guard, triggered)
	if v < 0 {
		return
	}
	if a.SecuritySystem.SecuritySystemCurrentState.Value() != v {
		err := a.SecuritySystem.SecuritySystemCurrentState.SetValue(v)
		log.Info("set current state", "device", a.guard.DeviceID(), "state", v, "err", err)
	}
	if t := targetState(v); t >= 0 && a.SecuritySystem.SecuritySystemTargetState.Value() != t {
		_ = a.SecuritySystem.SecuritySystemTargetState.SetValue(t)
	}
}

func (a *SecuritySystem) updateHandler(
	v interface{},
	r *http.Request,
) (response interface{}, code int) {
	value, ok := v.(int)
	if !ok {
		return nil, hap.JsonStatusInvalidValueInRequest
	}

	var cmd dispatch.Command
	switch value {
	case characteristic.SecuritySystemTargetStateStayArm,
		characteristic.SecuritySystemTargetStateAwayArm,
		characteristic.SecuritySystemTargetStateNightArm:
		cmd = dispatch.Armed
	case characteristic.SecuritySystemTargetStateDisarm:
		cmd = dispatch.Disarmed
	default:
		return nil, hap.JsonStatusResourceDoesNotExist
	}

	ctx := context.Background()
	if r != nil {
		ctx = r.Context()
	}
	log.Info("sending command", "entity", a.guard.UniqueID(), "command", cmd)
	if err := a.commander.Send(ctx, a.guard.UniqueID(), cmd); err != nil {
		log.Error("could not send command", "entity", a.guard.UniqueID(), "command", cmd, "err", err)
		return nil, hap.JsonStatusResourceBusy
	}
	return nil, hap.JsonStatusSuccess
}
