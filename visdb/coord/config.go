package coord

import (
	"flag"
	"time"

	"github.com/leapunion/visibility/pkg/util"
)

type Config struct {
	Address     string        `yaml:"address"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	PoolSize    int           `yaml:"pool_size"`
}

// RegisterFlagsAndApplyDefaults registers the flags.
func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.Address, util.PrefixConfig(prefix, "address"), "localhost:6379", "Coordination store (Redis) host:port.")
	f.StringVar(&cfg.Password, util.PrefixConfig(prefix, "password"), "", "Coordination store password.")
	f.IntVar(&cfg.DB, util.PrefixConfig(prefix, "db"), 2, "Coordination store database number.")
	f.DurationVar(&cfg.DialTimeout, util.PrefixConfig(prefix, "dial-timeout"), 5*time.Second, "Coordination store dial timeout.")
	f.IntVar(&cfg.PoolSize, util.PrefixConfig(prefix, "pool-size"), 15, "Coordination store connection pool size.")
}
