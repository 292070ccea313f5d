// Command containerhost is the per-container supervisor process that
// internal/containerhost.Launcher spawns: a single containerhost.Agent,
// listening on the address it was given, until a shutdown signal arrives.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"keep/internal/containerhost"
	"keep/internal/procrun"
)

func main() {
	id := flag.String("id", "", "container id this host agent serves")
	address := flag.String("address", "", "listen address (Unix socket path or Windows named pipe)")
	flag.Parse()

	if *id == "" || *address == "" {
		fmt.Fprintln(os.Stderr, "containerhost: -id and -address are required")
		os.Exit(1)
	}

	logger := log.New(os.Stdout, fmt.Sprintf("[containerhost %s] ", *id), log.LstdFlags|log.Lmsgprefix)

	agent, err := containerhost.NewAgent(*address, procrun.NewLocal(), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "containerhost: failed to initialize: %v\n", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("received signal %v, shutting down...", sig)
		agent.Shutdown()
	}()

	logger.Printf("starting on %s", *address)
	if err := agent.Serve(); err != nil {
		fmt.Fprintf(os.Stderr, "containerhost: %v\n", err)
		os.Exit(1)
	}
}
