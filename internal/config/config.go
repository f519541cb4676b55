// Package config loads scorecache settings from a YAML file, SCORECACHE_*
// environment variables and command-line flags, in increasing priority.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	platformerrors "github.com/jmgilman/go/errors"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
)

const appName = "scorecache"

// Keys understood in the config file and as SCORECACHE_<KEY> variables.
const (
	KeyWrapPrefixes  = "wrap_prefixes"
	KeyRawMarker     = "raw_marker"
	KeyCompression   = "compression"
	KeyReuseCapacity = "reuse.capacity"
	KeyReusePolicy   = "reuse.policy"
	KeySnapshotDir   = "snapshot_dir"
	KeyLogLevel      = "log_level"
	KeyWorkers       = "workers"
	KeyHTTP          = "http"
)

// Config is the resolved configuration of one run.
type Config struct {
	WrapPrefixes  []string
	RawMarker     string
	Compression   int
	ReuseCapacity int
	ReusePolicy   string
	SnapshotDir   string
	LogLevel      string
	Workers       int
	HTTP          string

	// Source is the config file that was read, if any.
	Source string
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyWrapPrefixes, []string{"github.com/DIDONEproject/musif-sub000/internal/score"})
	v.SetDefault(KeyRawMarker, "raw_")
	v.SetDefault(KeyCompression, 3)
	v.SetDefault(KeyReuseCapacity, 4)
	v.SetDefault(KeyReusePolicy, "fifo")
	v.SetDefault(KeySnapshotDir, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyWorkers, 4)
	v.SetDefault(KeyHTTP, "")
}

// Load reads configuration into v. An explicit file must exist; otherwise
// scorecache.yaml is looked up in the user config directories and a
// missing file is not an error.
func Load(v *viper.Viper, file string) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(appName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		dirs, err := gap.NewScope(gap.User, appName).ConfigDirs()
		if err == nil {
			for _, d := range dirs {
				v.AddConfigPath(d)
			}
		}
		if c := os.Getenv("SCORECACHE_CONFIG_HOME"); c != "" {
			v.AddConfigPath(c)
		}
		v.SetConfigName(appName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, platformerrors.WrapWithContext(err, platformerrors.CodeInvalidConfig,
				"read configuration", map[string]interface{}{"file": file})
		}
	}

	cfg := Config{
		WrapPrefixes:  v.GetStringSlice(KeyWrapPrefixes),
		RawMarker:     v.GetString(KeyRawMarker),
		Compression:   v.GetInt(KeyCompression),
		ReuseCapacity: v.GetInt(KeyReuseCapacity),
		ReusePolicy:   strings.ToLower(v.GetString(KeyReusePolicy)),
		SnapshotDir:   v.GetString(KeySnapshotDir),
		LogLevel:      v.GetString(KeyLogLevel),
		Workers:       v.GetInt(KeyWorkers),
		HTTP:          v.GetString(KeyHTTP),
		Source:        v.ConfigFileUsed(),
	}
	if cfg.SnapshotDir == "" {
		dir, err := gap.NewScope(gap.User, appName).CacheDir()
		if err != nil {
			dir = os.TempDir()
		}
		cfg.SnapshotDir = filepath.Join(dir, "snapshots")
	}
	return cfg, cfg.Validate()
}

// Validate checks value ranges.
func (c Config) Validate() error {
	bad := func(key string, val any) error {
		return platformerrors.WithContextMap(
			platformerrors.New(platformerrors.CodeInvalidConfig, "invalid value for "+key),
			map[string]interface{}{"key": key, "value": val})
	}
	switch {
	case c.ReusePolicy != "fifo" && c.ReusePolicy != "lru" && c.ReusePolicy != "2q":
		return bad(KeyReusePolicy, c.ReusePolicy)
	case c.ReuseCapacity < 1:
		return bad(KeyReuseCapacity, c.ReuseCapacity)
	case c.Compression < 0 || c.Compression > 22:
		return bad(KeyCompression, c.Compression)
	case c.Workers < 1:
		return bad(KeyWorkers, c.Workers)
	case c.RawMarker == "":
		return bad(KeyRawMarker, c.RawMarker)
	}
	return nil
}
