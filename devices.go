package georitm

import (
	"context"
	"fmt"
)

var groupTypes = []ObjectType{ObjectMobile, ObjectStationary}

// Devices fetches the object tree of both group types and flattens it into
// a device list, loading the areas of stationary devices.
//
// An empty list usually means the session expired: the client logs in again
// once and returns the empty list, leaving the refresh to the next call.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	var devices []Device
	for _, groupType := range groupTypes {
		body, err := c.post(ctx, pathTree, treeRequest{
			Sort:      "name",
			GroupType: int(groupType),
		})
		if err != nil {
			return nil, fmt.Errorf("could not get %s devices: %w", groupType, err)
		}
		for _, group := range decodeObjects[treeGroup](body) {
			devices = append(devices, decodeItems[Device](group.Objs)...)
		}
	}

	log.Info("got devices", "count", len(devices))

	if len(devices) == 0 {
		log.Info("no devices, logging in again")
		if _, err := c.Login(ctx); err != nil {
			return nil, fmt.Errorf("could not login again: %w", err)
		}
		return devices, nil
	}

	for i := range devices {
		if err := c.loadAreas(ctx, &devices[i]); err != nil {
			return nil, err
		}
	}
	return devices, nil
}

// Device fetches a single device by id, with its areas when stationary.
// It returns nil if the API does not know the device.
func (c *Client) Device(ctx context.Context, id ID) (*Device, error) {
	body, err := c.post(ctx, pathObject, objectRequest{
		ObjectID: []ID{id},
	})
	if err != nil {
		return nil, fmt.Errorf("could not get device %s: %w", id, err)
	}

	var device *Device
	for _, dev := range decodeObjects[Device](body) {
		if dev.ID == id {
			device = &dev
		}
	}
	if device == nil {
		log.Debug("device not found", "id", id)
		return nil, nil
	}
	if err := c.loadAreas(ctx, device); err != nil {
		return nil, err
	}
	return device, nil
}

// Areas fetches the areas of a stationary device. Zones come nested in
// each area.
func (c *Client) Areas(ctx context.Context, deviceID ID) ([]Area, error) {
	body, err := c.post(ctx, pathAreas, areasRequest{
		ObjectID: deviceID,
	})
	if err != nil {
		return nil, fmt.Errorf("could not get areas of device %s: %w", deviceID, err)
	}
	return decodeObjects[Area](body), nil
}

func (c *Client) loadAreas(ctx context.Context, dev *Device) error {
	if !dev.Stationary() {
		dev.Areas = nil
		return nil
	}
	areas, err := c.Areas(ctx, dev.ID)
	if err != nil {
		return err
	}
	dev.Areas = areas
	return nil
}
