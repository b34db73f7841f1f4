package rointe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tggm/rointe-go/device"
)

// Preset is a named target operating state bundling power, mode and
// temperature.
type Preset string

const (
	PresetComfort   Preset = "comfort"
	PresetEco       Preset = "eco"
	PresetAntiFrost Preset = "anti-frost"
	PresetOff       Preset = "off"
)

// HVACMode is the top-level operating mode requested for a device.
type HVACMode string

const (
	HVACOff  HVACMode = "off"
	HVACHeat HVACMode = "heat"
	HVACAuto HVACMode = "auto"
)

// SetTemperature sets a manual target temperature, switching the device to
// manual mode and powering it on.
func (c *Client) SetTemperature(ctx context.Context, dev *device.Device, temp float64) error {
	return c.sendPatch(ctx, "set_temperature", dev.ID, map[string]any{
		"temp":  temp,
		"mode":  "manual",
		"power": true,
	})
}

// SetPreset applies one of the named presets. The patch body is fully
// determined by the preset and the device's configured preset temperatures;
// an unknown preset is a caller error and makes no network call.
func (c *Client) SetPreset(ctx context.Context, dev *device.Device, preset Preset) error {
	var body map[string]any

	switch preset {
	case PresetComfort:
		body = map[string]any{
			"power":  true,
			"mode":   "manual",
			"temp":   dev.ComfortTemp,
			"status": "comfort",
		}
	case PresetEco:
		body = map[string]any{
			"power":  true,
			"mode":   "manual",
			"temp":   dev.EcoTemp,
			"status": "eco",
		}
	case PresetAntiFrost:
		body = map[string]any{
			"power":  true,
			"mode":   "manual",
			"temp":   dev.IceTemp,
			"status": "ice",
		}
	case PresetOff:
		body = map[string]any{
			"power":  false,
			"mode":   "manual",
			"temp":   safeDefaultTemp,
			"status": "none",
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPreset, preset)
	}

	return c.sendPatch(ctx, "set_preset", dev.ID, body)
}

// SetHVACMode switches a device between off, heat and auto. The remote model
// requires temperature and mode/power to be written in a fixed order to
// avoid transient invalid states on the physical device, so some modes issue
// two sequential patches. The sequence aborts at the first failed step and
// returns that step's error unchanged.
func (c *Client) SetHVACMode(ctx context.Context, dev *device.Device, mode HVACMode) error {
	switch mode {
	case HVACOff:
		return c.setModeOff(ctx, dev)
	case HVACHeat:
		return c.setModeHeat(ctx, dev)
	case HVACAuto:
		return c.setModeAuto(ctx, dev)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownHVACMode, mode)
	}
}

// setModeOff powers a device down. A device running its schedule turns off
// in place; a device in manual mode is first forced to a safe temperature.
func (c *Client) setModeOff(ctx context.Context, dev *device.Device) error {
	if dev.Mode == device.ModeAuto {
		return c.sendPatch(ctx, "set_hvac_mode", dev.ID, map[string]any{
			"power":  false,
			"mode":   "auto",
			"status": "off",
		})
	}

	if err := c.sendPatch(ctx, "set_hvac_mode", dev.ID, map[string]any{
		"temp": safeDefaultTemp,
	}); err != nil {
		return err
	}

	return c.sendPatch(ctx, "set_hvac_mode", dev.ID, map[string]any{
		"power":  false,
		"mode":   "manual",
		"status": "off",
	})
}

// setModeHeat switches to manual heating at the comfort temperature.
func (c *Client) setModeHeat(ctx context.Context, dev *device.Device) error {
	if err := c.sendPatch(ctx, "set_hvac_mode", dev.ID, map[string]any{
		"temp": dev.ComfortTemp,
	}); err != nil {
		return err
	}

	return c.sendPatch(ctx, "set_hvac_mode", dev.ID, map[string]any{
		"mode":   "manual",
		"power":  true,
		"status": "none",
	})
}

// setModeAuto hands control back to the weekly schedule. The device expects
// the temperature matching the active schedule slot to be written before the
// mode switch.
func (c *Client) setModeAuto(ctx context.Context, dev *device.Device) error {
	var temp float64

	switch dev.Schedule.SlotAt(c.now().UTC()) {
	case device.ScheduleComfort:
		temp = dev.ComfortTemp
	case device.ScheduleEco:
		temp = dev.EcoTemp
	default:
		if dev.IceMode {
			temp = dev.IceTemp
		} else {
			temp = safeDefaultTemp
		}
	}

	if err := c.sendPatch(ctx, "set_hvac_mode", dev.ID, map[string]any{
		"temp": temp,
	}); err != nil {
		return err
	}

	return c.sendPatch(ctx, "set_hvac_mode", dev.ID, map[string]any{
		"mode":  "auto",
		"power": true,
	})
}

// sendPatch writes one partial update to a device's data path. The body is
// stamped with the app-sync timestamp immediately before transmission, and
// the session is validated first exactly like a read operation.
func (c *Client) sendPatch(ctx context.Context, op, deviceID string, body map[string]any) error {
	if err := c.ensureValid(ctx); err != nil {
		return err
	}

	body["last_sync_datetime_app"] = c.now().UnixMilli()

	payload, err := json.Marshal(body)
	if err != nil {
		return &APIError{Op: op, Message: err.Error()}
	}

	rawURL := c.dataBaseURL + fmt.Sprintf(deviceDataPathFmt, deviceID)
	query := url.Values{"auth": {c.accessToken()}}

	status, _, err := c.do(ctx, c.dataClient, op, http.MethodPatch, rawURL, query, "application/json", payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return &APIError{Op: op, StatusCode: status, Message: "device update rejected"}
	}

	return nil
}
