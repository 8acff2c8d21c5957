package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"awning-service/internal/clock"
	"awning-service/internal/config"
	"awning-service/internal/core"
	"awning-service/internal/hardware"
	"awning-service/internal/logger"
	"awning-service/internal/messaging"
	"awning-service/internal/mqtt"
)

func main() {
	var configPath string
	var serviceLogLevel int
	flag.StringVar(&configPath, "config", "", "Path to YAML config file (empty uses defaults)")
	flag.IntVar(&serviceLogLevel, "log", 3, "Service log level (0=NONE, 1=ERROR, 2=WARN, 3=INFO, 4=DEBUG)")

	flag.Parse()

	// Create standard logger with appropriate format
	var stdLogger *log.Logger
	if os.Getenv("INVOCATION_ID") != "" {
		// Running under systemd, use minimal format
		stdLogger = log.New(os.Stdout, "", 0)
	} else {
		// Running interactively, use timestamps
		stdLogger = log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds|log.Lmsgprefix)
	}

	l := logger.NewLogger(stdLogger, logger.LogLevel(serviceLogLevel))

	l.Infof("Starting awning service...")

	cfg, err := config.Load(configPath)
	if err != nil {
		l.Fatalf("Failed to load config: %v", err)
	}

	io := hardware.NewLinuxHardwareIO(cfg.Hardware, l)
	redis := messaging.NewRedisClient(cfg.Redis.Host, cfg.Redis.Port, l)

	var statusFeed core.StatusPublisher
	if cfg.MQTT.Broker != "" {
		topic := cfg.MQTT.Topic
		if topic == "" {
			topic = mqtt.DefaultTopic
		}
		pub, err := mqtt.NewRealPublisher(cfg.MQTT.Broker, topic)
		if err != nil {
			l.Fatalf("Failed to connect to MQTT broker: %v", err)
		}
		statusFeed = pub
		l.Infof("MQTT status feed enabled on %s", topic)
	}

	system := core.NewAwningSystem(cfg, io, redis, statusFeed, &clock.Monotonic{}, l)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := system.Start(ctx); err != nil {
		l.Fatalf("Failed to start system: %v", err)
	}

	l.Infof("System started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	l.Infof("Received signal %v, shutting down...", sig)
	system.Shutdown()
	l.Infof("Shutdown complete")
}
