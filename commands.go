package georitm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Targets lists the (imei, area) pairs a command to the device addresses:
// every sub-device with an imei, for every area that has a name.
func Targets(dev Device) []Target {
	var targets []Target
	for _, sub := range dev.Devices {
		if sub.IMEI == "" {
			continue
		}
		for _, area := range dev.Areas {
			if area.Name == "" {
				continue
			}
			targets = append(targets, Target{
				IMEI: sub.IMEI.String(),
				Area: int(area.Num),
			})
		}
	}
	return targets
}

// Arm enables the alarm of every named area of the device.
func (c *Client) Arm(ctx context.Context, dev Device) error {
	return c.command(ctx, pathArm, dev)
}

// Disarm disables the alarm of every named area of the device.
func (c *Client) Disarm(ctx context.Context, dev Device) error {
	return c.command(ctx, pathDisarm, dev)
}

func (c *Client) command(ctx context.Context, path string, dev Device) error {
	var errs []error
	for _, target := range Targets(dev) {
		log.Info("command", "path", path, "device", dev.ID, "imei", target.IMEI, "area", target.Area)
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(target).
			Post(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("could not send %s to %s area %d: %w", path, target.IMEI, target.Area, err))
			continue
		}
		switch code := resp.StatusCode(); {
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			errs = append(errs, fmt.Errorf("could not send %s to %s area %d: %w", path, target.IMEI, target.Area, ErrUnauthorized))
		case resp.IsError():
			errs = append(errs, fmt.Errorf("could not send %s to %s area %d: status %d", path, target.IMEI, target.Area, code))
		}
	}
	return errors.Join(errs...)
}
