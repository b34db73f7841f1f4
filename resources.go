package rointe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"

	"github.com/tggm/rointe-go/device"
)

// Installation is one Rointe installation (a home or site) owned by a user.
type Installation struct {
	ID       string
	Name     string
	Location string
}

type installationRecord struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	UserID   string `json:"userid"`
}

// FirmwareMap holds the latest published firmware version per device type
// and product version, e.g. FirmwareMap["radiator"]["v2"].
type FirmwareMap map[string]map[string]string

// LatestFor returns the newest firmware version for a product, or "" when
// none is published.
func (m FirmwareMap) LatestFor(deviceType, productVersion string) string {
	versions, ok := m[deviceType]
	if !ok {
		return ""
	}
	return versions[productVersion]
}

// LocalID retrieves the user's local id, the key that scopes installation
// queries.
func (c *Client) LocalID(ctx context.Context) (string, error) {
	if err := c.ensureValid(ctx); err != nil {
		return "", err
	}

	form := url.Values{"idToken": {c.accessToken()}}

	status, body, err := c.postForm(ctx, "get_local_id", c.authBaseURL+authAccountInfoPath, form)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", &APIError{Op: "get_local_id", StatusCode: status, Message: "unexpected status"}
	}

	var resp struct {
		Users []struct {
			LocalID string `json:"localId"`
		} `json:"users"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Users) == 0 || resp.Users[0].LocalID == "" {
		return "", &APIError{Op: "get_local_id", Message: "missing localId in response"}
	}

	return resp.Users[0].LocalID, nil
}

// Installations retrieves all installations owned by the given local id,
// sorted by installation id.
func (c *Client) Installations(ctx context.Context, localID string) ([]Installation, error) {
	records, err := c.fetchInstallations(ctx, "get_installations", localID)
	if err != nil {
		return nil, err
	}

	installations := make([]Installation, 0, len(records))
	for id, record := range records {
		installations = append(installations, Installation{
			ID:       id,
			Name:     record.Name,
			Location: record.Location,
		})
	}

	sort.Slice(installations, func(i, j int) bool {
		return installations[i].ID < installations[j].ID
	})

	return installations, nil
}

// InstallationByID retrieves a single installation owned by the given
// local id.
func (c *Client) InstallationByID(ctx context.Context, installationID, localID string) (Installation, error) {
	records, err := c.fetchInstallations(ctx, "get_installation_by_id", localID)
	if err != nil {
		return Installation{}, err
	}

	record, ok := records[installationID]
	if !ok {
		return Installation{}, fmt.Errorf("%w: %s", ErrNoInstallations, installationID)
	}

	return Installation{
		ID:       installationID,
		Name:     record.Name,
		Location: record.Location,
	}, nil
}

// fetchInstallations queries the installations tree filtered by owner.
func (c *Client) fetchInstallations(ctx context.Context, op, localID string) (map[string]installationRecord, error) {
	if err := c.ensureValid(ctx); err != nil {
		return nil, err
	}

	// The data store expects JSON-quoted filter values.
	extra := url.Values{
		"orderBy": {`"userid"`},
		"equalTo": {fmt.Sprintf("%q", localID)},
	}

	status, body, err := c.getData(ctx, op, installationsPath, extra)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &APIError{Op: op, StatusCode: status, Message: "unexpected status"}
	}
	if isNullPayload(body) {
		return nil, ErrNoInstallations
	}

	var records map[string]installationRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, &APIError{Op: op, Message: "malformed installations payload"}
	}
	if len(records) == 0 {
		return nil, ErrNoInstallations
	}

	return records, nil
}

// Device retrieves the current snapshot of a single device.
func (c *Client) Device(ctx context.Context, deviceID string) (*device.Device, error) {
	if err := c.ensureValid(ctx); err != nil {
		return nil, err
	}

	path := fmt.Sprintf(devicePathFmt, deviceID)

	status, body, err := c.getData(ctx, "get_device", path, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &APIError{Op: "get_device", StatusCode: status, Message: "unexpected status"}
	}
	if isNullPayload(body) {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}

	dev, err := device.Parse(deviceID, body)
	if err != nil {
		return nil, &APIError{Op: "get_device", Message: err.Error()}
	}

	return dev, nil
}

// LatestFirmware retrieves the platform-wide map of newest firmware
// versions.
func (c *Client) LatestFirmware(ctx context.Context) (FirmwareMap, error) {
	if err := c.ensureValid(ctx); err != nil {
		return nil, err
	}

	status, body, err := c.getData(ctx, "get_latest_firmware", globalSettingsPath, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &APIError{Op: "get_latest_firmware", StatusCode: status, Message: "unexpected status"}
	}
	if isNullPayload(body) {
		return nil, ErrFirmwareNotFound
	}

	var resp struct {
		Firmware FirmwareMap `json:"firmware"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &APIError{Op: "get_latest_firmware", Message: "malformed firmware payload"}
	}
	if len(resp.Firmware) == 0 {
		return nil, ErrFirmwareNotFound
	}

	return resp.Firmware, nil
}
