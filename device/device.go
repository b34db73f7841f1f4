// Package device models Rointe devices: the state snapshot served by the
// cloud, the weekly heating schedule, and the product reference data.
package device

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Mode is the top-level operating mode reported by a device.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeManual Mode = "manual"
)

// Device is a read-only snapshot of a device as served by the cloud.
type Device struct {
	ID           string
	Name         string
	SerialNumber string

	// Type and ProductVersion identify the product, e.g. ("radiator", "v2").
	// ProductVersion is the hardware generation, not the firmware version.
	Type           string
	ProductVersion string

	FirmwareVersion string

	NominalPower int
	Power        bool

	// Preset is the active preset status: comfort, eco, ice or none.
	Preset string
	Mode   Mode

	Temp      float64
	TempCalc  float64
	TempProbe float64

	ComfortTemp float64
	EcoTemp     float64
	IceTemp     float64

	// User mode fields are only populated on V2 radiators.
	UserModeMaxTemp float64
	UserModeMinTemp float64
	UserMode        bool

	IceMode bool

	Schedule     Schedule
	ScheduleDay  int
	ScheduleHour int

	LastSyncApp    time.Time
	LastSyncDevice time.Time
}

type devicePayload struct {
	SerialNumber string `json:"serialnumber"`
	Data         *struct {
		Type           string   `json:"type"`
		ProductVersion string   `json:"product_version"`
		Name           string   `json:"name"`
		NominalPower   float64  `json:"nominal_power"`
		Power          bool     `json:"power"`
		Status         string   `json:"status"`
		Mode           string   `json:"mode"`
		Temp           float64  `json:"temp"`
		TempCalc       float64  `json:"temp_calc"`
		TempProbe      float64  `json:"temp_probe"`
		Comfort        float64  `json:"comfort"`
		Eco            float64  `json:"eco"`
		Ice            float64  `json:"ice"`
		UserModeMax    float64  `json:"um_max_temp"`
		UserModeMin    float64  `json:"um_min_temp"`
		UserMode       bool     `json:"user_mode"`
		IceMode        bool     `json:"ice_mode"`
		Schedule       []string `json:"schedule"`
		ScheduleDay    int      `json:"schedule_day"`
		ScheduleHour   int      `json:"schedule_hour"`
		LastSyncApp    int64    `json:"last_sync_datetime_app"`
		LastSyncDevice int64    `json:"last_sync_datetime_device"`
	} `json:"data"`
	Firmware *struct {
		Version string `json:"firmware_version_device"`
	} `json:"firmware"`
}

// Parse builds a Device from the cloud's JSON blob for the given device id.
func Parse(deviceID string, raw []byte) (*Device, error) {
	var payload devicePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("device %s: %w", deviceID, err)
	}
	if payload.Data == nil {
		return nil, fmt.Errorf("device %s: missing data block", deviceID)
	}

	data := payload.Data
	if data.Type == "" || data.ProductVersion == "" {
		return nil, fmt.Errorf("device %s: missing product identification", deviceID)
	}

	schedule, err := ParseSchedule(data.Schedule)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", deviceID, err)
	}

	dev := &Device{
		ID:             deviceID,
		Name:           data.Name,
		SerialNumber:   payload.SerialNumber,
		Type:           data.Type,
		ProductVersion: strings.ToLower(data.ProductVersion),
		NominalPower:   int(data.NominalPower),
		Power:          data.Power,
		Preset:         data.Status,
		Mode:           Mode(data.Mode),
		Temp:           data.Temp,
		TempCalc:       data.TempCalc,
		TempProbe:      data.TempProbe,
		ComfortTemp:    data.Comfort,
		EcoTemp:        data.Eco,
		IceTemp:        data.Ice,
		IceMode:        data.IceMode,
		Schedule:       schedule,
		ScheduleDay:    data.ScheduleDay,
		ScheduleHour:   data.ScheduleHour,
		LastSyncApp:    time.UnixMilli(data.LastSyncApp),
		LastSyncDevice: time.UnixMilli(data.LastSyncDevice),
	}

	// User mode settings only exist on V2 radiators.
	if dev.UserModeSupported() {
		dev.UserModeMaxTemp = data.UserModeMax
		dev.UserModeMinTemp = data.UserModeMin
		dev.UserMode = data.UserMode
	}

	if payload.Firmware != nil {
		dev.FirmwareVersion = payload.Firmware.Version
	}

	return dev, nil
}

// UserModeSupported reports whether this device supports user mode.
func (d *Device) UserModeSupported() bool {
	return d.ProductVersion == "v2"
}

// Product returns the reference data for this device's product, if known.
func (d *Device) Product() (Product, bool) {
	return ByTypeVersion(d.Type, d.ProductVersion)
}

// ValidMode reports whether the device snapshot carries a recognized
// operating mode.
func (d *Device) ValidMode() bool {
	return d.Mode == ModeAuto || d.Mode == ModeManual
}
