package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
)

var baseDir string

func main() {
	server := flag.String("server", "", "websocket URL of the world server")
	name := flag.String("name", "", "username to join with")
	assets := flag.String("assets", "", "directory holding sprite and world files")
	worldImage := flag.String("world", "", "world background image (file, http or data URL)")
	debugFlag := flag.Bool("debug", false, "verbose/debug logging")
	save := flag.Bool("save", false, "write the effective settings to settings.json")
	flag.Parse()

	baseDir = os.Getenv("PWD")
	if baseDir == "" {
		var err error
		if baseDir, err = os.Getwd(); err != nil {
			log.Fatalf("get working directory: %v", err)
		}
	}

	s, _, err := loadSettings(baseDir)
	if err != nil {
		log.Printf("%v; using defaults", err)
	}
	if *server != "" {
		s.Server = *server
	}
	if *name != "" {
		s.Username = *name
	}
	if *assets != "" {
		s.AssetDir = *assets
	}
	if *worldImage != "" {
		s.WorldImage = *worldImage
	}
	if *debugFlag {
		s.Debug = true
	}
	gs = s

	setupLogging(gs.Debug, gs.LogFile)
	defer syncLogging()
	defer func() {
		if r := recover(); r != nil {
			logError("panic: %v\n%s", r, debug.Stack())
		}
	}()
	if *save {
		if err := saveSettings(baseDir, gs); err != nil {
			logError("%v", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := runGame(ctx, gs); err != nil {
		logError("game exited: %v", err)
	}
}
