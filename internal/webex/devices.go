package webex

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/keepmind9/botsocket/internal/logger"
	"github.com/sirupsen/logrus"
)

// Fixed descriptive metadata sent when creating a registration
const (
	deviceType    = "DESKTOP"
	deviceModel   = "go"
	systemVersion = "0.1"
)

// EnsureDevice finds, reconciles, or creates the device registration for the
// given logical name and returns a registration with a live websocket URL.
//
// Reconciliation rules:
//   - a 404 from the listing call means "no devices", not an error
//   - more than one matching registration is anomalous but non-fatal; with
//     forceRecreate, or when duplicates exist, all matches are deleted
//     best-effort and a fresh device is created
//   - exactly one match is re-registered so its websocket URL stays valid
//   - no match creates a new registration
func (c *Client) EnsureDevice(ctx context.Context, name string, forceRecreate bool) (*Device, error) {
	logger.WithFields(logrus.Fields{
		"device_name":    name,
		"force_recreate": forceRecreate,
		"token":          maskToken(c.token),
	}).Debug("reconciling-device-registration")

	devices, err := c.listDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	var matches []Device
	for _, d := range devices {
		if d.Name == name {
			matches = append(matches, d)
		}
	}

	if len(matches) > 1 {
		names := make([]string, len(matches))
		for i, d := range matches {
			names[i] = d.DeviceName
		}
		logger.WithFields(logrus.Fields{
			"device_name": name,
			"count":       len(matches),
			"devices":     strings.Join(names, ", "),
		}).Warn("found-multiple-matching-device-registrations")
	}

	if forceRecreate || len(matches) > 1 {
		c.deleteDevices(ctx, matches)
		matches = nil
	}

	if len(matches) == 1 {
		device, err := c.refreshDevice(ctx, &matches[0])
		if err != nil {
			return nil, fmt.Errorf("failed to refresh device: %w", err)
		}
		logger.WithField("device_name", name).Debug("using-existing-device-registration")
		return device, nil
	}

	device, err := c.createDevice(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create device: %w", err)
	}
	logger.WithField("device_name", name).Info("created-new-device-registration")
	return device, nil
}

// listDevices returns all device registrations owned by the account.
// A 404 from the registry is mapped to an empty list.
func (c *Client) listDevices(ctx context.Context) ([]Device, error) {
	var list deviceList
	if err := c.do(ctx, http.MethodGet, c.RegistryURL, nil, &list); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return list.Devices, nil
}

// createDevice registers a new device with fixed descriptive metadata
func (c *Client) createDevice(ctx context.Context, name string) (*Device, error) {
	request := Device{
		Name:           name,
		DeviceName:     name + "-client",
		DeviceType:     deviceType,
		Model:          deviceModel,
		LocalizedModel: deviceModel,
		SystemName:     name,
		SystemVersion:  systemVersion,
	}
	var device Device
	if err := c.do(ctx, http.MethodPost, c.RegistryURL, request, &device); err != nil {
		return nil, err
	}
	return &device, nil
}

// refreshDevice re-registers an existing device so the websocket URL assigned
// by the registry stays valid
func (c *Client) refreshDevice(ctx context.Context, device *Device) (*Device, error) {
	var refreshed Device
	if err := c.do(ctx, http.MethodPut, device.URL, device, &refreshed); err != nil {
		return nil, err
	}
	return &refreshed, nil
}

// deleteDevices removes the given registrations best-effort. Individual
// failures are logged and do not abort the pass.
func (c *Client) deleteDevices(ctx context.Context, devices []Device) {
	for _, d := range devices {
		if err := c.do(ctx, http.MethodDelete, d.URL, nil, nil); err != nil {
			logger.WithFields(logrus.Fields{
				"device_name": d.DeviceName,
				"url":         d.URL,
				"error":       err,
			}).Warn("failed-to-delete-device-registration")
		}
	}
}
