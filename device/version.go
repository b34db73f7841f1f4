package device

import (
	goversion "github.com/hashicorp/go-version"
)

// FirmwareUpdateAvailable reports whether latest orders strictly after
// current under semantic-version comparison. Firmware strings are dotted
// version numbers, occasionally with fewer than three segments.
func FirmwareUpdateAvailable(current, latest string) (bool, error) {
	cur, err := goversion.NewVersion(current)
	if err != nil {
		return false, err
	}
	lat, err := goversion.NewVersion(latest)
	if err != nil {
		return false, err
	}
	return lat.GreaterThan(cur), nil
}

// UpdateAvailable reports whether a newer firmware than the device's is
// published. It returns false when either version string is absent or
// unparseable.
func (d *Device) UpdateAvailable(latest string) bool {
	if d.FirmwareVersion == "" || latest == "" {
		return false
	}
	newer, err := FirmwareUpdateAvailable(d.FirmwareVersion, latest)
	if err != nil {
		return false
	}
	return newer
}
