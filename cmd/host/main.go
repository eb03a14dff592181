package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Novapool/ParallelTracks/internal/config"
	"github.com/Novapool/ParallelTracks/internal/server"
)

func main() {
	c, err := loadConfig()
	if err != nil {
		log.Fatalf("Load config failed: %v", err)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGTERM, os.Interrupt)

	s, err := server.Init(c)
	if err != nil {
		log.Fatalf("Init server failed: %v", err)
	}

	go s.Start()

	<-shutdown
	s.Shutdown()
}

func loadConfig() (server.Config, error) {
	// Defaults suit a local setup; CONFIG_PATH and env vars override.
	c := server.Config{}
	c.HTTP.Port = 8080
	c.Redis.Cache.Addrs = []string{"localhost:6379"}
	c.Redis.Cache.Prefix = "paralleltracks"
	c.Speech.AudioDir = "static/audio"
	c.Submit.PerMinute = 10
	c.Submit.Burst = 10

	p := os.Getenv("CONFIG_PATH")
	if p == "" {
		return c, fmt.Errorf("CONFIG_PATH not set")
	}

	if err := config.Load(p, &c); err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}

	return c, nil
}
