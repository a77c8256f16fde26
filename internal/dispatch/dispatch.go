// Package dispatch executes arm and disarm commands sent to entities.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	georitm "github.com/caarlos0/georitm-bridge"
	"github.com/caarlos0/georitm-bridge/internal/state"
	"github.com/charmbracelet/log"
)

type Command string

const (
	Armed    Command = "armed"
	Disarmed Command = "disarmed"
)

var (
	ErrUnknownEntity  = errors.New("unknown entity")
	ErrNoDevice       = errors.New("entity has no device")
	ErrDeviceNotFound = errors.New("device not found")
	ErrUnknownCommand = errors.New("unknown command")
)

// ParseCommand parses armed or disarmed.
func ParseCommand(s string) (Command, error) {
	switch cmd := Command(s); cmd {
	case Armed, Disarmed:
		return cmd, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
	}
}

// Client is the part of the vendor client the dispatcher needs.
type Client interface {
	Device(ctx context.Context, id georitm.ID) (*georitm.Device, error)
	Arm(ctx context.Context, dev georitm.Device) error
	Disarm(ctx context.Context, dev georitm.Device) error
}

type Dispatcher struct {
	client Client
	store  state.Store
	log    *log.Logger
}

func New(client Client, store state.Store, logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		client: client,
		store:  store,
		log:    logger.With("component", "dispatch"),
	}
}

// Send arms or disarms the device behind the entity.
//
// The device is fetched again before sending. Once every command is
// accepted the entity state becomes off when armed and on when disarmed.
func (d *Dispatcher) Send(ctx context.Context, entityID string, cmd Command) error {
	var fn func(context.Context, georitm.Device) error
	var next string
	switch cmd {
	case Armed:
		fn, next = d.client.Arm, state.Off
	case Disarmed:
		fn, next = d.client.Disarm, state.On
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
	}

	current, err := d.store.Get(entityID)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
		}
		return fmt.Errorf("could not get state of %s: %w", entityID, err)
	}

	deviceID := deviceIDOf(current)
	if deviceID == "" {
		return fmt.Errorf("%w: %s", ErrNoDevice, entityID)
	}

	dev, err := d.client.Device(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("could not get device %s: %w", deviceID, err)
	}
	if dev == nil {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}

	d.log.Info("sending command", "entity", entityID, "device", deviceID, "command", cmd)
	if err := fn(ctx, *dev); err != nil {
		return fmt.Errorf("could not send %s to %s: %w", cmd, deviceID, err)
	}

	if _, err := d.store.Set(entityID, next, current.Attributes); err != nil {
		return fmt.Errorf("could not update state of %s: %w", entityID, err)
	}
	return nil
}

func deviceIDOf(st state.State) georitm.ID {
	switch v := st.Attributes["deviceId"].(type) {
	case string:
		return georitm.ID(v)
	case georitm.ID:
		return v
	case fmt.Stringer:
		return georitm.ID(v.String())
	case float64:
		return georitm.ID(fmt.Sprintf("%.0f", v))
	default:
		return ""
	}
}
