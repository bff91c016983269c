package app

import (
	"os"
	"strings"
	"time"

	"github.com/jeremywohl/flatten"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/metal-toolbox/sumflash/internal/model"
)

var (
	ErrConfig = errors.New("configuration error")
)

// Configuration holds application configuration read from a YAML file or
// set by env variables.
//
// The filesystem contracts - the by-label device directory, the SUM log
// path and the utility location inside the SPP tree - are configuration
// here rather than process wide constants, so tests can inject fakes.
//
// nolint:govet // prefer readability over field alignment optimization for this case.
type Configuration struct {
	// LogLevel is the app verbose logging level.
	// one of - info, debug, trace
	LogLevel string `mapstructure:"log_level"`

	// Media holds the virtual media device discovery parameters.
	Media *MediaOptions `mapstructure:"media"`

	// SUM holds the update utility invocation parameters.
	SUM *SUMOptions `mapstructure:"sum"`
}

// MediaOptions defines how the attached virtual media device is located.
type MediaOptions struct {
	// ByLabelDir is the directory the OS publishes device labels in.
	ByLabelDir string `mapstructure:"by_label_dir"`

	// LabelPattern is the wildcard matching the update ISO volume label.
	LabelPattern string `mapstructure:"label_pattern"`

	// SettleTimeout bounds the wait for the OS to enumerate the device.
	SettleTimeout time.Duration `mapstructure:"settle_timeout"`

	// SettleInterval is the initial poll interval while waiting.
	SettleInterval time.Duration `mapstructure:"settle_interval"`
}

// SUMOptions defines where the SUM utility and its artifacts live.
type SUMOptions struct {
	// UtilityPath is the path of the SUM binary relative to the mounted ISO tree.
	UtilityPath string `mapstructure:"utility_path"`

	// LogFile is the fixed path SUM writes its update log to.
	LogFile string `mapstructure:"log_file"`
}

// LoadConfiguration loads application configuration
//
// Reads in the cfgFile when available and overrides from environment variables.
func (a *App) LoadConfiguration(cfgFile string) error {
	a.v.SetConfigType("yaml")
	a.v.SetEnvPrefix(model.AppName)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	// these are initialized here so viper can read in configuration from env vars
	// once https://github.com/spf13/viper/pull/1429 is merged, this can go.
	a.Config.Media = &MediaOptions{}
	a.Config.SUM = &SUMOptions{}

	if cfgFile != "" {
		fh, err := os.Open(cfgFile)
		if err != nil {
			return errors.Wrap(ErrConfig, err.Error())
		}

		if err = a.v.ReadConfig(fh); err != nil {
			return errors.Wrap(ErrConfig, "ReadConfig error:"+err.Error())
		}
	}

	a.v.SetDefault("log.level", "info")
	a.v.SetDefault("media.by_label_dir", "/dev/disk/by-label")
	a.v.SetDefault("media.label_pattern", "SPP*")
	a.v.SetDefault("media.settle_timeout", 30*time.Second)
	a.v.SetDefault("media.settle_interval", 1*time.Second)
	a.v.SetDefault("sum.utility_path", "hp/swpackages/hpsum")
	a.v.SetDefault("sum.log_file", "/var/hp/log/localhost/hpsum_log.txt")

	if err := a.envBindVars(); err != nil {
		return errors.Wrap(ErrConfig, "env var bind error:"+err.Error())
	}

	if err := a.v.Unmarshal(a.Config); err != nil {
		return errors.Wrap(ErrConfig, "Unmarshal error: "+err.Error())
	}

	a.envVarAppOverrides()

	return nil
}

func (a *App) envVarAppOverrides() {
	if a.v.GetString("log.level") != "" {
		a.Config.LogLevel = a.v.GetString("log.level")
	}

	if a.Config.Media.ByLabelDir == "" {
		a.Config.Media.ByLabelDir = a.v.GetString("media.by_label_dir")
	}

	if a.Config.Media.LabelPattern == "" {
		a.Config.Media.LabelPattern = a.v.GetString("media.label_pattern")
	}

	if a.Config.Media.SettleTimeout == 0 {
		a.Config.Media.SettleTimeout = a.v.GetDuration("media.settle_timeout")
	}

	if a.Config.Media.SettleInterval == 0 {
		a.Config.Media.SettleInterval = a.v.GetDuration("media.settle_interval")
	}

	if a.Config.SUM.UtilityPath == "" {
		a.Config.SUM.UtilityPath = a.v.GetString("sum.utility_path")
	}

	if a.Config.SUM.LogFile == "" {
		a.Config.SUM.LogFile = a.v.GetString("sum.log_file")
	}
}

// envBindVars binds environment variables to the struct
// without a configuration file being unmarshalled,
// this is a workaround for a viper bug,
//
// This can be replaced by the solution in https://github.com/spf13/viper/pull/1429
// once that PR is merged.
func (a *App) envBindVars() error {
	envKeysMap := map[string]interface{}{}
	if err := mapstructure.Decode(a.Config, &envKeysMap); err != nil {
		return err
	}

	// Flatten nested conf map
	flat, err := flatten.Flatten(envKeysMap, "", flatten.DotStyle)
	if err != nil {
		return errors.Wrap(err, "Unable to flatten config")
	}

	for k := range flat {
		if err := a.v.BindEnv(k); err != nil {
			return errors.Wrap(ErrConfig, "env var bind error: "+err.Error())
		}
	}

	return nil
}
