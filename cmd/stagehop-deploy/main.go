// stagehop-deploy pushes the latest revision of the backend to the
// configured host and restarts its service unit. No arguments; the
// target comes from stagehop.yaml or STAGEHOP_ environment variables.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/OmerS16/stagehop-backend/internal/config"
	"github.com/OmerS16/stagehop-backend/internal/deploy"
)

func main() {
	var (
		configPath string
		logLevel   string
	)

	pflag.StringVarP(&configPath, "config", "c", "", "path to stagehop.yaml")
	pflag.StringVarP(&logLevel, "log-level", "L", "", "level to log at. refer to https://godoc.org/go.uber.org/zap/zapcore#Level for options")
	pflag.Parse()

	log := logger(logLevel)
	defer log.Sync() // nolint:errcheck

	cfg, err := config.Load(configPath)
	if err != nil {
		fail("unable to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		fail("invalid configuration: %v", err)
	}

	signer, err := cfg.Signer()
	if err != nil {
		fail("unable to load deploy key: %v", err)
	}

	deployer, err := deploy.New(cfg.Target(), signer,
		deploy.WithTimeout(cfg.SSHTimeout),
		deploy.WithStatusLines(cfg.StatusLines),
		deploy.WithOutput(os.Stdout),
		deploy.WithLogger(log),
	)
	if err != nil {
		fail("unable to build deployer: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report, err := deployer.Deploy(ctx)
	if err != nil {
		log.Sync() // nolint:errcheck
		fail("%v", err)
	}

	fmt.Println(color.HiGreenString("%s", report.Message))
	if report.Status != "" {
		fmt.Println(report.Status)
	}
}

func fail(format string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, color.HiRedString(format, args...))
	os.Exit(1)
}
