package orchestrator

import (
	"flag"
	"time"

	"github.com/leapunion/visibility/pkg/util"
)

type Config struct {
	DedupTTL                 time.Duration `yaml:"dedup_ttl"`
	RateLimitTimeout         time.Duration `yaml:"rate_limit_timeout"`
	MaxConcurrentPerPlatform int64         `yaml:"max_concurrent_per_platform"`
}

// RegisterFlagsAndApplyDefaults registers the flags.
func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.DurationVar(&cfg.DedupTTL, util.PrefixConfig(prefix, "dedup-ttl"), 6*time.Hour, "How long a completed (query, platform) scrape suppresses re-scrapes.")
	f.DurationVar(&cfg.RateLimitTimeout, util.PrefixConfig(prefix, "rate-limit-timeout"), 120*time.Second, "How long a task waits for a rate-limit slot before being skipped.")
	f.Int64Var(&cfg.MaxConcurrentPerPlatform, util.PrefixConfig(prefix, "max-concurrent-per-platform"), 3, "Concurrent scrapes allowed per platform.")
}
