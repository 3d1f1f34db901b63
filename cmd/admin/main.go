package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/eardogger/internal/admin"
	"github.com/dmitrijs2005/eardogger/internal/flagx"
	"github.com/dmitrijs2005/eardogger/internal/logging"
	"github.com/dmitrijs2005/eardogger/internal/server/config"
)

func main() {
	cfg := config.LoadConfig()
	logger, err := logging.NewJSON(os.Stderr, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	app := admin.NewApp(cfg, logger, os.Stdin, os.Stdout)
	err = app.Run(context.Background(), flagx.Positional(os.Args[1:], config.ValueFlags))
	if errors.Is(err, admin.ErrUsage) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
