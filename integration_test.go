package rointe_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rointe "github.com/tggm/rointe-go"
	"github.com/tggm/rointe-go/device"
	"github.com/tggm/rointe-go/mock"
)

func newMockClient(server *mock.Server) *rointe.Client {
	return rointe.NewClient(rointe.Config{
		AuthBaseURL:    server.BaseURL(),
		RefreshBaseURL: server.BaseURL(),
		DataBaseURL:    server.BaseURL(),
		APIKey:         mock.APIKey,
	})
}

func TestClient_AgainstMockCloud(t *testing.T) {
	server := mock.Start()
	defer server.Stop(context.Background())

	server.AddInstallation("inst1", mock.Installation{Name: "Home", Location: "Lisbon"})
	server.AddDevice("rad1", mock.RadiatorV2("rad1", "Living Room"))
	server.SetFirmware(map[string]map[string]string{
		"radiator": {"v1": "1.2.0", "v2": "1.5.1"},
	})
	// Seed two hours so the test cannot race an hour rollover.
	currentHour := time.Now().UTC().Truncate(time.Hour)
	server.SetEnergySample("rad1", currentHour, mock.EnergySample{KWh: 0.75, EffectivePower: 650})
	server.SetEnergySample("rad1", currentHour.Add(-time.Hour), mock.EnergySample{KWh: 0.75, EffectivePower: 650})

	ctx := context.Background()
	client := newMockClient(server)

	require.NoError(t, client.Login(ctx, mock.Username, mock.Password))
	assert.True(t, client.LoggedIn())

	localID, err := client.LocalID(ctx)
	require.NoError(t, err)
	assert.Equal(t, mock.LocalID, localID)

	installations, err := client.Installations(ctx, localID)
	require.NoError(t, err)
	require.Len(t, installations, 1)
	assert.Equal(t, "Home", installations[0].Name)

	inst, err := client.InstallationByID(ctx, "inst1", localID)
	require.NoError(t, err)
	assert.Equal(t, "Lisbon", inst.Location)

	dev, err := client.Device(ctx, "rad1")
	require.NoError(t, err)
	assert.Equal(t, "Living Room", dev.Name)
	assert.Equal(t, device.ModeAuto, dev.Mode)

	firmware, err := client.LatestFirmware(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.5.1", firmware.LatestFor(dev.Type, dev.ProductVersion))
	assert.True(t, dev.UpdateAvailable(firmware.LatestFor(dev.Type, dev.ProductVersion)))

	stats, err := client.LatestEnergyStats(ctx, "rad1")
	require.NoError(t, err)
	assert.Equal(t, 0.75, stats.KilowattHours)

	// Turning off a device that runs its schedule takes a single patch.
	require.NoError(t, client.SetHVACMode(ctx, dev, rointe.HVACOff))
	patches := server.Patches("rad1")
	require.Len(t, patches, 1)
	assert.Equal(t, false, patches[0]["power"])
	assert.Equal(t, "auto", patches[0]["mode"])
	assert.Equal(t, "off", patches[0]["status"])
	assert.Contains(t, patches[0], "last_sync_datetime_app")

	// The whole session ran on one login and zero refreshes.
	logins, refreshes, _ := server.Counts()
	assert.Equal(t, 1, logins)
	assert.Equal(t, 0, refreshes)
}

func TestClient_SilentRefresh(t *testing.T) {
	server := mock.Start()
	defer server.Stop(context.Background())

	// A non-positive TTL makes the issued token expire immediately, so the
	// next operation has to refresh before touching the data store.
	server.SetTokenTTL(-1)

	ctx := context.Background()
	client := newMockClient(server)

	require.NoError(t, client.Login(ctx, mock.Username, mock.Password))

	server.SetTokenTTL(3600)

	localID, err := client.LocalID(ctx)
	require.NoError(t, err)
	assert.Equal(t, mock.LocalID, localID)

	_, refreshes, _ := server.Counts()
	assert.Equal(t, 1, refreshes)

	// The refreshed session is fresh again: no further refreshes.
	_, err = client.LocalID(ctx)
	require.NoError(t, err)

	_, refreshes, _ = server.Counts()
	assert.Equal(t, 1, refreshes)
}

func TestClient_InvalidCredentials(t *testing.T) {
	server := mock.Start()
	defer server.Stop(context.Background())

	client := newMockClient(server)

	err := client.Login(context.Background(), mock.Username, "wrong-password")
	assert.ErrorIs(t, err, rointe.ErrInvalidAuth)
	assert.True(t, rointe.IsAuthError(err))
	assert.False(t, client.LoggedIn())
}

func TestClient_EnergySearchExhaustion(t *testing.T) {
	server := mock.Start()
	defer server.Stop(context.Background())

	ctx := context.Background()
	client := newMockClient(server)
	require.NoError(t, client.Login(ctx, mock.Username, mock.Password))

	// No samples seeded at all: the search walks five hours and gives up.
	_, err := client.LatestEnergyStats(ctx, "rad1")
	assert.ErrorIs(t, err, rointe.ErrEnergyMaxTries)

	_, _, energyFetches := server.Counts()
	assert.Equal(t, 5, energyFetches)
}
