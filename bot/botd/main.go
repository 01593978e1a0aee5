// Command botd runs the build-status IRC bot: it loads the
// configuration, connects to the configured network, and relays build
// events to operators until interrupted.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/presbrey/ircstatus/bot"
	"github.com/presbrey/ircstatus/bot/admind"
	"github.com/presbrey/ircstatus/bot/config"
)

func main() {
	configSource := flag.String("config", "ircstatus.yaml", "Configuration file path or URL")
	adminAddr := flag.String("admin", "", "Admin HTTP server bind address (empty disables it)")
	stopTimeout := flag.Duration("stop-timeout", 10*time.Second, "How long to wait for a clean disconnect on shutdown")
	flag.Parse()

	cfg, err := config.Load(*configSource)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	svc, err := bot.NewService(cfg)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}

	log.Printf("Starting IRC status bot:")
	log.Printf("Server: %s:%d (ssl=%v)", cfg.Host, cfg.Port, cfg.UseSSL)
	log.Printf("Nickname: %s", cfg.Nickname)
	log.Printf("Channels: %d, PM nicks: %d", len(cfg.Channels), len(cfg.PMToNicks))
	if *adminAddr != "" {
		log.Printf("Admin bind address: %s", *adminAddr)
	}

	var admin *admind.Server
	if *adminAddr != "" {
		admin = admind.New(svc)
		go func() {
			if err := admin.Start(*adminAddr); err != nil {
				log.Printf("Admin server stopped: %v", err)
			}
		}()
	}

	if err := svc.Start(); err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	log.Printf("Received %s, shutting down...", s)

	ctx, cancel := context.WithTimeout(context.Background(), *stopTimeout)
	defer cancel()
	if admin != nil {
		if err := admin.Shutdown(ctx); err != nil {
			log.Printf("Admin server shutdown: %v", err)
		}
	}
	if err := svc.Stop(ctx); err != nil {
		log.Printf("Disconnect did not complete cleanly: %v", err)
		os.Exit(1)
	}
	log.Println("Disconnected.")
}
