package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"chatsync/infrastructure/rest"
	"chatsync/infrastructure/ws"
	"chatsync/internal"
	"chatsync/repositories"
	"chatsync/runtime"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run handles configuration loading, storage, the sync controller and the
// interactive prompt. This pattern ensures clean resource management and
// error propagation.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	channelURL, err := config.ResolveChannelURL()
	if err != nil {
		return exitConfig, err
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Local durable storage for the session record.
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("local storage opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing local storage...")
		_ = db.Close()
	}()

	sessions := repositories.NewSessionRepository(db, log)
	deviceID, err := sessions.DeviceID()
	if err != nil {
		return exitRuntime, err
	}

	// 4. Wire the sync controller to its collaborators.
	authClient := rest.NewAuthClient(config.ServerURL, deviceID, log)
	historyClient := rest.NewHistoryClient(config.ServerURL, deviceID, log)
	channel := ws.NewChannel(channelURL, log)
	controller := runtime.NewController(log, sessions, authClient, historyClient, channel)

	go controller.Run(ctx)

	renderer := newRenderer(controller)
	go renderer.follow(ctx)

	renderer.banner(config.ServerURL)

	// 5. Interactive prompt until EOF or shutdown signal.
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			break
		}
		renderer.handle(line)
	}

	log.Info("Stopping client...")
	return exitOK, nil
}
