package document

import (
	"flag"
	"time"

	"github.com/leapunion/visibility/pkg/util"
)

type Config struct {
	URL            string        `yaml:"url"`
	Database       string        `yaml:"database"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// RegisterFlagsAndApplyDefaults registers the flags.
func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.URL, util.PrefixConfig(prefix, "url"), "mongodb://localhost:27017", "Document store connection string.")
	f.StringVar(&cfg.Database, util.PrefixConfig(prefix, "database"), "visibility", "Document store database name.")
	f.DurationVar(&cfg.ConnectTimeout, util.PrefixConfig(prefix, "connect-timeout"), 10*time.Second, "Document store connect timeout.")
}
