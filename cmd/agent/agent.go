package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"Vidra/agent"
	"Vidra/config"

	"github.com/kataras/golog"
)

func main() {
	configPath := flag.String("config", "vidra.json", "path to the agent configuration file")
	flag.Parse()

	if level := strings.TrimSpace(os.Getenv("VIDRA_LOG_LEVEL")); level != "" {
		golog.SetLevel(level)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		golog.Fatalf("configuration: %v", err)
	}

	a, err := agent.New(cfg)
	if err != nil {
		golog.Fatalf("agent init: %v", err)
	}

	if err := a.Start(); err != nil {
		if err == agent.ErrStreamUnavailable {
			golog.Warnf("no encoder backends on this machine; serving API without a stream")
		} else {
			golog.Fatalf("pipeline start: %v", err)
		}
	}
	defer a.Stop()

	if err := a.ReportToHub(); err != nil {
		golog.Warnf("%v", err)
	}

	errs := make(chan error, 2)
	go func() {
		errs <- a.Serve()
	}()
	go func() {
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
		errs <- fmt.Errorf("received %v", <-interrupt)
	}()

	golog.Infof("shutting down: %v", <-errs)
}
