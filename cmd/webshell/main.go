// Command webshell runs the download and navigation bridge for the MealHub
// web view. It is configured entirely from WEBSHELL_* environment variables;
// run with -h to list them.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/adamwoolhether/webshell/config"
	"github.com/adamwoolhether/webshell/shell"
)

func main() {
	help := flag.Bool("h", false, "print the configuration variables and exit")
	flag.Parse()

	if *help {
		if err := config.Usage(os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := cfg.Log.Logger(os.Stderr)

	s, err := shell.New(cfg, log)
	if err != nil {
		log.Error("startup", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting webshell", "addr", cfg.Server.Addr, "downloads", cfg.Downloads.Dir)

	if err := s.Run(ctx); err != nil {
		log.Error("webshell", "error", err)
		os.Exit(1)
	}
}
