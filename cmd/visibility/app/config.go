package app

import (
	"flag"
	"time"

	dslog "github.com/grafana/dskit/log"

	"github.com/leapunion/visibility/modules/cost"
	"github.com/leapunion/visibility/modules/limiter"
	"github.com/leapunion/visibility/modules/orchestrator"
	"github.com/leapunion/visibility/modules/pipeline"
	"github.com/leapunion/visibility/modules/scraper"
	"github.com/leapunion/visibility/pkg/util"
	"github.com/leapunion/visibility/visdb/coord"
	"github.com/leapunion/visibility/visdb/document"
	"github.com/leapunion/visibility/visdb/relational"
	"github.com/leapunion/visibility/visdb/timeseries"
)

// Config is the root configuration, assembled from every module's config.
type Config struct {
	LogLevel  dslog.Level `yaml:"log_level"`
	LogFormat string      `yaml:"log_format"`

	HTTPListenAddress string `yaml:"http_listen_address"`

	HourlyInterval time.Duration `yaml:"hourly_interval"`
	DailyRunHour   int           `yaml:"daily_run_hour"`

	Coordination coord.Config        `yaml:"coordination,omitempty"`
	Relational   relational.Config   `yaml:"relational,omitempty"`
	Timeseries   timeseries.Config   `yaml:"timeseries,omitempty"`
	Document     document.Config     `yaml:"document,omitempty"`
	RateLimits   limiter.Config      `yaml:"rate_limits,omitempty"`
	Cost         cost.Config         `yaml:"cost,omitempty"`
	Scraper      scraper.Config      `yaml:"scraper,omitempty"`
	Orchestrator orchestrator.Config `yaml:"orchestrator,omitempty"`
	Pipeline     pipeline.Config     `yaml:"pipeline,omitempty"`
}

// RegisterFlagsAndApplyDefaults registers flags and sets defaults for the
// whole tree.
func (c *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	c.LogLevel.RegisterFlags(f)
	f.StringVar(&c.LogFormat, util.PrefixConfig(prefix, "log.format"), "logfmt", "Log format: logfmt or json.")
	f.StringVar(&c.HTTPListenAddress, util.PrefixConfig(prefix, "http-listen-address"), ":3200", "Ops HTTP listen address.")
	f.DurationVar(&c.HourlyInterval, util.PrefixConfig(prefix, "hourly-interval"), time.Hour, "Interval between rank-check flow runs.")
	f.IntVar(&c.DailyRunHour, util.PrefixConfig(prefix, "daily-run-hour"), 2, "UTC hour at which the daily full scan replaces the hourly run.")

	c.Coordination.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "coordination"), f)
	c.Relational.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "relational"), f)
	c.Timeseries.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "timeseries"), f)
	c.Document.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "document"), f)
	c.RateLimits.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "rate-limits"), f)
	c.Cost.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "cost"), f)
	c.Scraper.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "scraper"), f)
	c.Orchestrator.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "orchestrator"), f)
	c.Pipeline.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "pipeline"), f)
}
