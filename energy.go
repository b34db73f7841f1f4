package rointe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// EnergyStats is one hourly energy consumption sample for a device.
type EnergyStats struct {
	Start          time.Time // start of the sampled hour
	End            time.Time // end of the sampled hour
	KilowattHours  float64
	EffectivePower float64
	FetchedAt      time.Time // when this sample was retrieved
}

type energySample struct {
	KWh            *float64 `json:"kwh"`
	EffectivePower float64  `json:"effective_power"`
}

// LatestEnergyStats retrieves the most recent hourly energy sample for a
// device. The platform publishes samples with some delay, so the search
// starts at the current hour and walks backwards one hour at a time, up to
// five attempts. Only an absent sample consumes retry budget; any transport,
// authentication or protocol failure aborts immediately. An exhausted search
// returns ErrEnergyMaxTries.
func (c *Client) LatestEnergyStats(ctx context.Context, deviceID string) (*EnergyStats, error) {
	target := c.now().UTC().Truncate(time.Hour)

	for try := 0; try < energyStatsMaxTries; try++ {
		stats, err := c.energyStatsAt(ctx, deviceID, target)
		if err == nil {
			return stats, nil
		}
		if !errors.Is(err, ErrEnergyNotFound) {
			return nil, err
		}
		target = target.Add(-time.Hour)
	}

	return nil, fmt.Errorf("%w: %s", ErrEnergyMaxTries, deviceID)
}

// energyStatsAt retrieves the sample covering [hour, hour+1h). An absent
// sample is reported as ErrEnergyNotFound.
func (c *Client) energyStatsAt(ctx context.Context, deviceID string, hour time.Time) (*EnergyStats, error) {
	if err := c.ensureValid(ctx); err != nil {
		return nil, err
	}

	path := fmt.Sprintf(energyPathFmt, deviceID, hour.Format("2006-01-02"), hour.Hour())

	status, body, err := c.getData(ctx, "get_energy_stats", path, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &APIError{Op: "get_energy_stats", StatusCode: status, Message: "unexpected status"}
	}
	if isNullPayload(body) {
		return nil, fmt.Errorf("%w: %s", ErrEnergyNotFound, hour.Format("2006-01-02 15:00"))
	}

	var sample energySample
	if err := json.Unmarshal(body, &sample); err != nil || sample.KWh == nil {
		return nil, &APIError{Op: "get_energy_stats", Message: "malformed energy payload"}
	}

	return &EnergyStats{
		Start:          hour,
		End:            hour.Add(time.Hour),
		KilowattHours:  *sample.KWh,
		EffectivePower: sample.EffectivePower,
		FetchedAt:      c.now(),
	}, nil
}
