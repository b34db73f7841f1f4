// Command rointe-test exercises the Rointe cloud client manually. It can
// run against the production cloud using real credentials, or against an
// in-process mock cloud with -mock.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	rointe "github.com/tggm/rointe-go"
	"github.com/tggm/rointe-go/config"
	"github.com/tggm/rointe-go/device"
	"github.com/tggm/rointe-go/internal/logging"
	"github.com/tggm/rointe-go/mock"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to configuration file")
	action := flag.String("action", "installations", "Action to perform: installations, device, energy, firmware, temp, preset, mode")
	deviceID := flag.String("device", "", "Device ID (required for device actions)")
	installationID := flag.String("installation", "", "Installation ID (optional, resolves a single installation)")
	value := flag.String("value", "", "Action argument: temperature, preset name or hvac mode")
	useMock := flag.Bool("mock", false, "Run against an in-process mock cloud instead of the production cloud")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var cfg *config.Config
	var mockServer *mock.Server

	if *useMock {
		mockServer = startMock()
		defer mockServer.Stop(context.Background())

		cfg = &config.Config{
			Credentials: config.CredentialsConfig{
				Username: mock.Username,
				Password: mock.Password,
			},
			Endpoints: config.EndpointsConfig{
				AuthBaseURL:    mockServer.BaseURL(),
				RefreshBaseURL: mockServer.BaseURL(),
				DataBaseURL:    mockServer.BaseURL(),
				APIKey:         mock.APIKey,
			},
			Log: config.LogConfig{Level: "debug"},
		}
		if *deviceID == "" {
			*deviceID = "rad1"
		}
	} else {
		var err error
		cfg, err = loadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	logger := logging.NewLogger(logging.LoggerConfig{
		Format: cfg.Log.Format,
		Level:  logging.ParseLevel(cfg.Log.Level),
	})

	client := rointe.NewClient(rointe.Config{
		AuthBaseURL:    cfg.Endpoints.AuthBaseURL,
		RefreshBaseURL: cfg.Endpoints.RefreshBaseURL,
		DataBaseURL:    cfg.Endpoints.DataBaseURL,
		APIKey:         cfg.Endpoints.APIKey,
		Logger:         logger,
	})

	if err := client.Login(ctx, cfg.Credentials.Username, cfg.Credentials.Password); err != nil {
		log.Fatalf("Login failed: %v", err)
	}
	fmt.Println("Logged in.")

	if err := run(ctx, client, *action, *deviceID, *installationID, *value); err != nil {
		log.Fatalf("Action %q failed: %v", *action, err)
	}
}

// loadConfig reads the config file, falling back to ROINTE_* environment
// variables when the file does not exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if !errors.Is(err, config.ErrConfigFileNotFound) {
		return nil, err
	}

	fmt.Fprintf(os.Stderr, "Config file not found at %s, trying environment variables...\n", path)
	return config.LoadFromEnv()
}

func run(ctx context.Context, client *rointe.Client, action, deviceID, installationID, value string) error {
	switch action {
	case "installations":
		localID, err := client.LocalID(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Local ID: %s\n", localID)

		if installationID != "" {
			inst, err := client.InstallationByID(ctx, installationID, localID)
			if err != nil {
				return err
			}
			fmt.Printf("  %s: %s (%s)\n", inst.ID, inst.Name, inst.Location)
			return nil
		}

		installations, err := client.Installations(ctx, localID)
		if err != nil {
			return err
		}
		for _, inst := range installations {
			fmt.Printf("  %s: %s (%s)\n", inst.ID, inst.Name, inst.Location)
		}
		return nil

	case "device":
		dev, err := client.Device(ctx, deviceID)
		if err != nil {
			return err
		}
		printDevice(dev)

		firmware, err := client.LatestFirmware(ctx)
		if err != nil {
			return err
		}
		latest := firmware.LatestFor(dev.Type, dev.ProductVersion)
		fmt.Printf("  Firmware: %s (latest %s, update available: %t)\n",
			dev.FirmwareVersion, latest, dev.UpdateAvailable(latest))
		return nil

	case "energy":
		stats, err := client.LatestEnergyStats(ctx, deviceID)
		if err != nil {
			return err
		}
		fmt.Printf("Energy %s - %s: %.3f kWh, effective power %.1f W\n",
			stats.Start.Format(time.RFC3339), stats.End.Format(time.RFC3339),
			stats.KilowattHours, stats.EffectivePower)
		return nil

	case "firmware":
		firmware, err := client.LatestFirmware(ctx)
		if err != nil {
			return err
		}
		for deviceType, versions := range firmware {
			for productVersion, fw := range versions {
				fmt.Printf("  %s %s: %s\n", deviceType, productVersion, fw)
			}
		}
		return nil

	case "temp":
		temp, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("-value must be a temperature: %w", err)
		}
		dev, err := client.Device(ctx, deviceID)
		if err != nil {
			return err
		}
		if err := client.SetTemperature(ctx, dev, temp); err != nil {
			return err
		}
		fmt.Printf("Temperature set to %.1f\n", temp)
		return nil

	case "preset":
		dev, err := client.Device(ctx, deviceID)
		if err != nil {
			return err
		}
		if err := client.SetPreset(ctx, dev, rointe.Preset(value)); err != nil {
			return err
		}
		fmt.Printf("Preset set to %s\n", value)
		return nil

	case "mode":
		dev, err := client.Device(ctx, deviceID)
		if err != nil {
			return err
		}
		if err := client.SetHVACMode(ctx, dev, rointe.HVACMode(value)); err != nil {
			return err
		}
		fmt.Printf("HVAC mode set to %s\n", value)
		return nil

	default:
		return fmt.Errorf("unknown action %q", action)
	}
}

func printDevice(dev *device.Device) {
	name := dev.Type + " " + dev.ProductVersion
	if product, ok := dev.Product(); ok {
		name = product.Name
	}

	fmt.Printf("Device %s (%s, serial %s)\n", dev.Name, name, dev.SerialNumber)
	fmt.Printf("  Power: %t, mode: %s, preset: %s\n", dev.Power, dev.Mode, dev.Preset)
	fmt.Printf("  Temp: %.1f (probe %.1f), comfort %.1f, eco %.1f, ice %.1f\n",
		dev.Temp, dev.TempProbe, dev.ComfortTemp, dev.EcoTemp, dev.IceTemp)
	fmt.Printf("  Schedule slot now: %s\n", dev.CurrentScheduleMode())
}

// startMock launches a mock cloud seeded with one installation, one
// radiator and an energy sample two hours back.
func startMock() *mock.Server {
	server := mock.Start()

	server.AddInstallation("inst1", mock.Installation{
		Name:     "Home",
		Location: "Lisbon",
	})
	server.AddDevice("rad1", mock.RadiatorV2("rad1", "Living Room"))
	server.SetEnergySample("rad1", time.Now().UTC().Truncate(time.Hour).Add(-2*time.Hour), mock.EnergySample{
		KWh:            0.75,
		EffectivePower: 650,
	})
	server.SetFirmware(map[string]map[string]string{
		"radiator": {"v1": "1.2.0", "v2": "1.5.1"},
	})

	fmt.Fprintf(os.Stderr, "Mock cloud listening at %s\n", server.BaseURL())
	return server
}
