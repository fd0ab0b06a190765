package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ecg-monitor/backend/internal/acquire"
	"github.com/ecg-monitor/backend/internal/config"
	"github.com/ecg-monitor/backend/internal/ecg"
	"github.com/ecg-monitor/backend/internal/frontend"
	"github.com/ecg-monitor/backend/internal/metrics"
	"github.com/ecg-monitor/backend/internal/telemetry"
	"github.com/ecg-monitor/backend/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	simulate := flag.Bool("simulate", false, "Force the simulator source")
	devicePath := flag.String("device", "", "Override the device path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *simulate {
		cfg.Acquire.Mode = "simulator"
	}
	if *devicePath != "" {
		cfg.Acquire.Mode = "device"
		cfg.Acquire.DevicePath = *devicePath
	}

	source := openSource(cfg.Acquire)
	defer source.Close()

	session := ecg.NewSession(cfg.ECG)
	broadcaster := ws.NewBroadcaster(session, cfg.Monitor.SnapshotInterval.Std(), cfg.Monitor.AlertThrottle.Std())

	observers := []acquire.Observer{broadcaster}
	if pub := openTelemetry(cfg.Telemetry); pub != nil {
		defer pub.Close()
		observers = append(observers, telemetry.NewNotifier(pub))
	}

	runner := acquire.NewRunner(session, source, cfg.ECG.SampleRate, observers...)

	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.Collectors()...)

	server := ws.NewServer(cfg, session, broadcaster, source.Name())
	server.SetMetricsHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server.SetFrontend(frontend.Handler())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	server.SetShutdown(cancel)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		cancel()
	}()

	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runner.Run(ctx) })
	g.Go(func() error { return server.Run(ctx, mux) })

	if err := g.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// openSource picks the sample source. Mode auto prefers the device but keeps
// the monitor useful on machines without one.
func openSource(cfg config.AcquireConfig) acquire.Source {
	switch cfg.Mode {
	case "device":
		dev, err := acquire.OpenDevice(cfg.DevicePath)
		if err != nil {
			log.Fatalf("Failed to open device %s: %v", cfg.DevicePath, err)
		}
		return dev
	case "auto":
		dev, err := acquire.OpenDevice(cfg.DevicePath)
		if err == nil {
			return dev
		}
		log.Printf("Device %s unavailable (%v), using simulator", cfg.DevicePath, err)
	}
	return acquire.NewSimulator()
}

func openTelemetry(cfg config.TelemetryConfig) telemetry.Publisher {
	switch cfg.Backend {
	case "nats":
		pub, err := telemetry.NewNATS(cfg.NATSURL, cfg.ParamsSubject, cfg.EventsSubject)
		if err != nil {
			log.Fatalf("Failed to connect to NATS at %s: %v", cfg.NATSURL, err)
		}
		log.Printf("Telemetry: publishing to NATS at %s", cfg.NATSURL)
		return pub
	case "mqtt":
		pub, err := telemetry.NewMQTT(telemetry.MQTTOptions{
			Broker:   cfg.MQTTBroker,
			Port:     cfg.MQTTPort,
			Topic:    cfg.MQTTTopic,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
		})
		if err != nil {
			log.Fatalf("Failed to connect to MQTT broker %s:%d: %v", cfg.MQTTBroker, cfg.MQTTPort, err)
		}
		log.Printf("Telemetry: publishing to MQTT at %s:%d", cfg.MQTTBroker, cfg.MQTTPort)
		return pub
	}
	return nil
}
