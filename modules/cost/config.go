package cost

import (
	"flag"

	"github.com/leapunion/visibility/pkg/util"
)

type Config struct {
	DailyBudgetUSD float64 `yaml:"daily_cost_budget_usd"`
}

// RegisterFlagsAndApplyDefaults registers the flags.
func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.Float64Var(&cfg.DailyBudgetUSD, util.PrefixConfig(prefix, "daily-budget-usd"), 10.0, "Daily scrape cost budget in USD.")
}
