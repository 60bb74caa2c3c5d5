// Gray Logic ToF Bridge
//
// This is the main entry point for the Gray Logic ToF bridge: a managed
// node that owns one 3D time-of-flight camera and publishes its frame
// streams over MQTT. The bridge is driven through an explicit lifecycle
// (unconfigured -> inactive -> active) so orchestration can bring the
// camera up, reconfigure it and tear it down deterministically.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-tof/internal/camera/pcic"
	"github.com/nerrad567/gray-logic-tof/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-tof/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-tof/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-tof/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-tof/internal/infrastructure/telemetry"
	"github.com/nerrad567/gray-logic-tof/internal/lifecycle"
	"github.com/nerrad567/gray-logic-tof/internal/node"
	"github.com/nerrad567/gray-logic-tof/internal/paramstore"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// configureRetryDelay is how long the driver waits before retrying a
// failed configure (camera unreachable, mid-reboot, etc.).
const configureRetryDelay = 5 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic ToF bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	cameraID := cfg.Bridge.CameraID

	// Open the parameter store (optional)
	var store *paramstore.Store
	if cfg.Store.Enabled {
		store, err = paramstore.Open(database.Config{
			Path:        cfg.Store.Path,
			WALMode:     cfg.Store.WALMode,
			BusyTimeout: cfg.Store.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening parameter store: %w", err)
		}
		defer func() {
			log.Info("closing parameter store")
			if closeErr := store.Close(); closeErr != nil {
				log.Error("error closing parameter store", "error", closeErr)
			}
		}()
		log.Info("parameter store opened", "path", cfg.Store.Path)
	} else {
		log.Info("parameter store disabled")
	}

	// Build the initial parameter set: config file values overlaid with
	// whatever the store persisted from previous runs.
	params := node.FromConfig(cfg.Camera, cfg.Logging.Level)
	if store != nil {
		persisted, loadErr := store.LoadParams()
		if loadErr != nil {
			log.Warn("loading persisted parameters failed", "error", loadErr)
		} else if len(persisted) > 0 {
			if result := params.ApplyBatch(persisted); !result.Accepted {
				log.Warn("persisted parameters rejected, using config values",
					"reason", result.Reason)
			} else {
				log.Info("persisted parameters restored", "count", len(persisted))
			}
		}
	}

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT, cameraID)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"camera_id", cameraID,
	)
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect frame telemetry (optional)
	var metrics *telemetry.Client
	if cfg.Telemetry.Enabled {
		metrics, err = telemetry.Connect(cfg.Telemetry, cameraID)
		if err != nil {
			return fmt.Errorf("connecting telemetry: %w", err)
		}
		defer func() {
			log.Info("closing telemetry connection")
			if closeErr := metrics.Close(); closeErr != nil {
				log.Error("error closing telemetry", "error", closeErr)
			}
		}()
		metrics.SetOnError(func(err error) {
			log.Error("telemetry write error", "error", err)
		})
		log.Info("telemetry connected", "url", cfg.Telemetry.URL, "bucket", cfg.Telemetry.Bucket)
	} else {
		log.Info("telemetry disabled")
	}

	// Build the node and its lifecycle machine
	opts := node.Options{
		CameraID: cameraID,
		Dialer:   pcic.NewDialer(),
		Bus:      mqttClient,
		Logger:   log.With("component", "node"),
		Levels:   log,
		Params:   params,
		QoS:      byte(cfg.MQTT.QoS),
	}
	if metrics != nil {
		opts.Telemetry = metrics
	}
	if store != nil {
		opts.Store = store
	}
	camNode, err := node.New(opts)
	if err != nil {
		return fmt.Errorf("building node: %w", err)
	}

	machine := lifecycle.New(camNode, log.With("component", "lifecycle"), camNode.NotifyTransition)

	// Serve control requests
	services := node.NewServices(camNode, mqttClient, cameraID, log.With("component", "services"))
	if err := services.Start(); err != nil {
		return fmt.Errorf("starting control services: %w", err)
	}

	log.Info("initialisation complete, bringing camera up")

	return drive(ctx, machine, camNode, log)
}

// drive owns the lifecycle machine for the life of the process: it brings
// the node up, cycles it on reconfigure requests, recovers from
// acquisition errors and shuts down on signal.
func drive(ctx context.Context, machine *lifecycle.Machine, camNode *node.Node, log *logging.Logger) error {
	if err := bringUp(ctx, machine, log); err != nil {
		machine.Shutdown() //nolint:errcheck // Always finalizes
		return err
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received")
			machine.Shutdown() //nolint:errcheck // Always finalizes
			log.Info("Gray Logic ToF bridge stopped")
			return nil

		case err := <-camNode.Errors():
			log.Error("acquisition failure, recycling node", "error", err)
			machine.RaiseError()
			if machine.State() == lifecycle.StateFinalized {
				return fmt.Errorf("node finalized after unrecoverable error: %w", err)
			}
			if err := bringUp(ctx, machine, log); err != nil {
				machine.Shutdown() //nolint:errcheck // Always finalizes
				return err
			}

		case <-camNode.ReconfigureRequests():
			log.Info("session-affecting parameters accepted, recycling node")
			if err := recycle(ctx, machine, log); err != nil {
				machine.Shutdown() //nolint:errcheck // Always finalizes
				return err
			}
		}
	}
}

// bringUp walks the machine from unconfigured to active, retrying
// configure until the camera is reachable or the context ends.
func bringUp(ctx context.Context, machine *lifecycle.Machine, log *logging.Logger) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil // Shutdown path handles the rest
		}

		err := machine.Configure()
		if err == nil {
			err = machine.Activate()
			if err == nil {
				log.Info("camera active")
				return nil
			}
		}

		if machine.State() == lifecycle.StateFinalized {
			return fmt.Errorf("node finalized during bring-up: %w", err)
		}
		if errors.Is(err, lifecycle.ErrInvalidTransition) {
			return fmt.Errorf("lifecycle out of step: %w", err)
		}

		log.Warn("bring-up failed, retrying", "error", err, "delay", configureRetryDelay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(configureRetryDelay):
		}
	}
}

// recycle takes an active node down to unconfigured and back up, applying
// session-affecting parameter changes on the way.
func recycle(ctx context.Context, machine *lifecycle.Machine, log *logging.Logger) error {
	if machine.State() == lifecycle.StateActive {
		if err := machine.Deactivate(); err != nil {
			log.Error("deactivate during recycle failed", "error", err)
			if machine.State() == lifecycle.StateFinalized {
				return fmt.Errorf("node finalized during recycle: %w", err)
			}
			// Error processing already returned us to unconfigured.
			return bringUp(ctx, machine, log)
		}
	}
	if machine.State() == lifecycle.StateInactive {
		if err := machine.Cleanup(); err != nil {
			log.Error("cleanup during recycle failed", "error", err)
			if machine.State() == lifecycle.StateFinalized {
				return fmt.Errorf("node finalized during recycle: %w", err)
			}
		}
	}
	return bringUp(ctx, machine, log)
}

// getConfigPath returns the configuration file path.
// Uses TOFBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("TOFBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
