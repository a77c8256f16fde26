// Package poll refreshes sensors from the vendor API.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	georitm "github.com/caarlos0/georitm-bridge"
	"github.com/caarlos0/georitm-bridge/internal/entity"
	"github.com/caarlos0/georitm-bridge/internal/state"
	"github.com/charmbracelet/log"
)

// Client fetches a single device.
type Client interface {
	Device(ctx context.Context, id georitm.ID) (*georitm.Device, error)
}

type Poller struct {
	client  Client
	store   state.Store
	sensors []entity.Sensor
	log     *log.Logger
}

func New(client Client, store state.Store, sensors []entity.Sensor, logger *log.Logger) *Poller {
	return &Poller{
		client:  client,
		store:   store,
		sensors: sensors,
		log:     logger.With("component", "poll"),
	}
}

func (p *Poller) Sensors() []entity.Sensor {
	return p.sensors
}

// Refresh fetches every device once and updates all of its sensors.
// Sensors of devices that could not be fetched keep their last state.
func (p *Poller) Refresh(ctx context.Context) error {
	var errs []error
	for _, group := range byDevice(p.sensors) {
		id := group[0].DeviceID()
		dev, err := p.client.Device(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("could not refresh device %s: %w", id, err))
			continue
		}
		if dev == nil {
			p.log.Warn("device not found", "device", id)
		}
		for _, sensor := range group {
			sensor.Update(dev)
			if err := p.write(sensor); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Prune deletes the stored states of entities that are not among the
// poller's sensors, such as devices left out of the configuration since
// the last run.
func (p *Poller) Prune() error {
	known := map[string]bool{}
	for _, sensor := range p.sensors {
		known[sensor.UniqueID()] = true
	}
	removed, err := p.store.Retain(func(id string) bool { return known[id] })
	if err != nil {
		return err
	}
	if len(removed) > 0 {
		p.log.Info("pruned stale entities", "entities", removed)
	}
	return nil
}

// Run refreshes on every tick until ctx is done.
func (p *Poller) Run(ctx context.Context, interval time.Duration, onRefresh func(time.Duration, error)) {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			t := time.Now()
			err := p.Refresh(ctx)
			if err != nil {
				p.log.Error("could not refresh", "err", err)
			}
			if onRefresh != nil {
				onRefresh(time.Since(t), err)
			}
		}
	}
}

func (p *Poller) write(sensor entity.Sensor) error {
	value := state.Unavailable
	if sensor.Available() {
		value = state.FromBool(sensor.IsOn())
	}
	if _, err := p.store.Set(sensor.UniqueID(), value, sensor.Attributes()); err != nil {
		return fmt.Errorf("could not write state of %s: %w", sensor.UniqueID(), err)
	}
	return nil
}

// byDevice groups sensors by device, in order of first appearance.
func byDevice(sensors []entity.Sensor) [][]entity.Sensor {
	index := map[georitm.ID]int{}
	var groups [][]entity.Sensor
	for _, s := range sensors {
		i, ok := index[s.DeviceID()]
		if !ok {
			i = len(groups)
			index[s.DeviceID()] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], s)
	}
	return groups
}
