// Command raknet-client connects to a raknet-go server and either probes
// its status (--status) or logs in and echoes one payload off the server.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"raknet-go/client"
	"raknet-go/internal/config"
	"raknet-go/internal/logging"
	"raknet-go/wire"
)

const version = "1.0.0"

var opt struct {
	ConfigPath string
	Host       string
	Port       int
	StatusOnly bool
	Message    string
	Help       bool
}

func init() {
	pflag.StringVarP(&opt.ConfigPath, "config", "c", "", "Path to a YAML config file")
	pflag.StringVarP(&opt.Host, "host", "H", "", "Override client.server_host from config")
	pflag.IntVarP(&opt.Port, "port", "p", 0, "Override client.server_port from config")
	pflag.BoolVarP(&opt.StatusOnly, "status", "s", false, "Run a status probe only, then exit")
	pflag.StringVarP(&opt.Message, "message", "m", "hello from raknet-client", "Payload to echo after login")
	pflag.BoolVarP(&opt.Help, "help", "h", false, "Show this help text")
}

func main() {
	pflag.Parse()
	if opt.Help {
		fmt.Printf("usage: %s [options]\n\noptions:\n%s", os.Args[0], pflag.CommandLine.FlagUsages())
		os.Exit(0)
	}

	logging.Banner("RakNet Client", version)

	cfg := config.GenerateDefaultConfig()
	if opt.ConfigPath != "" {
		loaded, err := config.LoadConfig(opt.ConfigPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if opt.Host != "" {
		cfg.Client.ServerHost = opt.Host
	}
	if opt.Port != 0 {
		cfg.Client.ServerPort = opt.Port
	}

	closeLog, err := logging.Configure(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: configure logging: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Client.DialTimeout)
	defer cancel()

	if opt.StatusOnly {
		status, err := client.Status(ctx, cfg.Client.ServerHost, cfg.Client.ServerPort)
		if err != nil {
			log.Fatal().Err(err).Msg("status probe failed")
		}
		fmt.Printf("server status: %s\n", status)
		return
	}

	logging.Section("Login")
	conn, err := client.Login(ctx, cfg.Client.ServerHost, cfg.Client.ServerPort)
	if err != nil {
		log.Fatal().Err(err).Msg("login failed")
	}
	defer conn.Close()
	log.Info().Msg("online")

	if err := conn.Write(&wire.Game{Payload: []byte(opt.Message)}); err != nil {
		log.Fatal().Err(err).Msg("write failed")
	}

	readCtx, readCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer readCancel()
	pkt, err := conn.Read(readCtx)
	if err != nil {
		log.Fatal().Err(err).Msg("read failed")
	}
	if game, ok := pkt.(*wire.Game); ok {
		fmt.Printf("echoed: %s\n", game.Payload)
	}
}
