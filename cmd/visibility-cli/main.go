// visibility-cli is the operations companion to the visibility service:
// schema initialization, sample data seeding, and direct inspection of the
// cost counter, rate-limit windows, and stored snapshots.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	kitlog "github.com/go-kit/log"
	"gopkg.in/yaml.v2"

	"github.com/leapunion/visibility/cmd/visibility/app"
	"github.com/leapunion/visibility/pkg/util/log"
)

type globalOptions struct {
	ConfigFile string `help:"Path to the service config file." short:"c"`
}

var cli struct {
	globalOptions

	InitSchema initSchemaCmd `cmd:"" help:"Create tables, hypertables, and document indexes."`
	Seed       seedCmd       `cmd:"" help:"Populate the stores with sample monitoring data."`

	Cost struct {
		Show  costShowCmd  `cmd:"" help:"Print today's spend and remaining budget."`
		Reset costResetCmd `cmd:"" help:"Clear today's cost counter."`
	} `cmd:""`

	Limiter struct {
		Remaining limiterRemainingCmd `cmd:"" help:"Print remaining rate-limit slots per platform."`
		Reset     limiterResetCmd     `cmd:"" help:"Clear a platform's rate-limit window."`
	} `cmd:""`

	Snapshot struct {
		Get snapshotGetCmd `cmd:"" help:"Fetch a raw snapshot by id."`
	} `cmd:""`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("visibility-cli"),
		kong.UsageOnError(),
	)

	cfg, err := loadConfig(cli.ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed loading config: %v\n", err)
		os.Exit(1)
	}

	logger := log.InitLogger(cfg.LogFormat, cfg.LogLevel)

	ctx.Bind(cfg)
	ctx.BindTo(logger, (*kitlog.Logger)(nil))
	ctx.FatalIfErrorf(ctx.Run())
}

// loadConfig applies defaults and overlays the optional config file, the
// same way the service binary does.
func loadConfig(configFile string) (*app.Config, error) {
	cfg := &app.Config{}
	fs := flag.NewFlagSet("", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cfg.RegisterFlagsAndApplyDefaults("", fs)

	if configFile == "" {
		return cfg, nil
	}

	buff, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read configFile %s: %w", configFile, err)
	}
	if err := yaml.UnmarshalStrict(buff, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configFile %s: %w", configFile, err)
	}
	return cfg, nil
}
