package scraper

import (
	"flag"
	"time"

	"github.com/leapunion/visibility/pkg/util"
)

type Config struct {
	FirecrawlURL     string        `yaml:"firecrawl_url"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	MaxAttempts      int           `yaml:"max_attempts"`
	CostPerScrapeUSD float64       `yaml:"cost_per_scrape_usd"`

	// RetryDelays holds the sleep before each retry; attempt n waits
	// RetryDelays[n-1]. Tests zero these out.
	RetryDelays []time.Duration `yaml:"retry_delays"`

	// Breaker trips the render service off after consecutive failures.
	BreakerMaxFailures  int           `yaml:"breaker_max_failures"`
	BreakerOpenDuration time.Duration `yaml:"breaker_open_duration"`
}

// RegisterFlagsAndApplyDefaults registers the flags.
func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.FirecrawlURL, util.PrefixConfig(prefix, "firecrawl-url"), "http://localhost:3002", "Base URL of the render service.")
	f.DurationVar(&cfg.RequestTimeout, util.PrefixConfig(prefix, "request-timeout"), 30*time.Second, "Per-request timeout against the render service.")
	f.IntVar(&cfg.MaxAttempts, util.PrefixConfig(prefix, "max-attempts"), 3, "Scrape attempts before giving up.")
	f.Float64Var(&cfg.CostPerScrapeUSD, util.PrefixConfig(prefix, "cost-per-scrape-usd"), 0.01, "Estimated cost recorded per render call.")
	f.IntVar(&cfg.BreakerMaxFailures, util.PrefixConfig(prefix, "breaker-max-failures"), 5, "Consecutive render failures before the breaker opens.")
	f.DurationVar(&cfg.BreakerOpenDuration, util.PrefixConfig(prefix, "breaker-open-duration"), time.Minute, "How long an open breaker rejects render calls.")

	cfg.RetryDelays = []time.Duration{5 * time.Second, 15 * time.Second}
}
