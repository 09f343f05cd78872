package pipeline

import (
	"flag"

	"github.com/leapunion/visibility/pkg/util"
)

type Config struct {
	SnippetRadius int `yaml:"snippet_radius"`
}

// RegisterFlagsAndApplyDefaults registers the flags.
func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.IntVar(&cfg.SnippetRadius, util.PrefixConfig(prefix, "snippet-radius"), 200, "Characters of context kept on each side of a brand mention.")
}
