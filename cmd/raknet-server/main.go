// Command raknet-server runs a standalone protocol server: it binds a UDP
// socket, demultiplexes peers, and echoes game payloads back to whoever
// sent them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"raknet-go/engine"
	"raknet-go/internal/config"
	"raknet-go/internal/demo"
	"raknet-go/internal/logging"
	"raknet-go/server"
)

const version = "1.0.0"

var opt struct {
	ConfigPath string
	ListenAddr string
	Help       bool
}

func init() {
	pflag.StringVarP(&opt.ConfigPath, "config", "c", "", "Path to a YAML config file")
	pflag.StringVarP(&opt.ListenAddr, "listen", "l", "", "Override server.listen_addr from config")
	pflag.BoolVarP(&opt.Help, "help", "h", false, "Show this help text")
}

func main() {
	pflag.Parse()
	if opt.Help {
		fmt.Printf("usage: %s [options]\n\noptions:\n%s", os.Args[0], pflag.CommandLine.FlagUsages())
		os.Exit(0)
	}

	logging.Banner("RakNet Server", version)

	cfg := config.GenerateDefaultConfig()
	if opt.ConfigPath != "" {
		loaded, err := config.LoadConfig(opt.ConfigPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if opt.ListenAddr != "" {
		cfg.Server.ListenAddr = opt.ListenAddr
	}

	closeLog, err := logging.Configure(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: configure logging: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	logging.Section("Startup")
	log.Info().Str("addr", cfg.Server.ListenAddr).Msg("binding listener")

	bus := demo.NewEventManager()
	bus.Register(demo.EventPeerConnected, func(ev demo.Event) {
		log.Info().Str("peer", ev.Peer).Msg("peer connected")
	})
	bus.Register(demo.EventPeerDisconnected, func(ev demo.Event) {
		log.Info().Str("peer", ev.Peer).Msg("peer disconnected")
	})

	statusFn := func(*engine.Engine) ([]byte, error) {
		return []byte(cfg.Server.Status), nil
	}
	loginFn := func(e *engine.Engine) {
		go demo.Echo(context.Background(), bus, e.RemoteAddress.String(), e)
	}

	ln, err := server.Listen(cfg.Server.ListenAddr, statusFn, loginFn)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start listener")
	}
	log.Info().Str("addr", ln.Addr().String()).Msg("listening")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Warn().Msg("shutting down")
	if err := ln.Close(); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
}
