package limiter

import (
	"flag"
	"time"

	"github.com/leapunion/visibility/pkg/util"
)

type Config struct {
	// Window is the sliding admission window.
	Window time.Duration `yaml:"window"`
	// PollInterval paces WaitAndAcquire retries.
	PollInterval time.Duration `yaml:"poll_interval"`

	// Per-platform hourly request caps.
	ChatGPTPerHour    int `yaml:"rate_limit_chatgpt"`
	PerplexityPerHour int `yaml:"rate_limit_perplexity"`
	GoogleAIPerHour   int `yaml:"rate_limit_google_ai"`
}

// RegisterFlagsAndApplyDefaults registers the flags.
func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.DurationVar(&cfg.Window, util.PrefixConfig(prefix, "window"), time.Hour, "Sliding rate-limit window.")
	f.DurationVar(&cfg.PollInterval, util.PrefixConfig(prefix, "poll-interval"), time.Second, "Poll interval while waiting for a rate-limit slot.")
	f.IntVar(&cfg.ChatGPTPerHour, util.PrefixConfig(prefix, "chatgpt-per-hour"), 10, "ChatGPT requests per window.")
	f.IntVar(&cfg.PerplexityPerHour, util.PrefixConfig(prefix, "perplexity-per-hour"), 20, "Perplexity requests per window.")
	f.IntVar(&cfg.GoogleAIPerHour, util.PrefixConfig(prefix, "google-ai-per-hour"), 15, "Google AI requests per window.")
}
