// Package config loads stagehop configuration from a YAML file and
// STAGEHOP_-prefixed environment variables, env winning.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/ssh"

	"github.com/OmerS16/stagehop-backend/internal/deploy"
)

// Config carries everything both binaries need: the deploy target, the
// key source, and the API service settings.
type Config struct {
	KeyPath      string        `mapstructure:"key_path"`
	RemoteUser   string        `mapstructure:"remote_user"`
	RemoteHost   string        `mapstructure:"remote_host"`
	RemoteDir    string        `mapstructure:"remote_dir"`
	RemoteBranch string        `mapstructure:"remote_branch"`
	ServiceName  string        `mapstructure:"service_name"`
	SSHPort      int           `mapstructure:"ssh_port"`
	SSHTimeout   time.Duration `mapstructure:"ssh_timeout"`
	StatusLines  int           `mapstructure:"status_lines"`

	// optional S3 source for the deploy key; takes precedence over KeyPath
	KeyS3Bucket string `mapstructure:"key_s3_bucket"`
	KeyS3Object string `mapstructure:"key_s3_object"`
	KeyS3Region string `mapstructure:"key_s3_region"`

	ListenAddr string `mapstructure:"listen_addr"`
	DBDriver   string `mapstructure:"db_driver"`
	DBDSN      string `mapstructure:"db_dsn"`
}

func defaults(v *viper.Viper) {
	// register every key so environment-only values bind
	for _, key := range []string{
		"key_path", "remote_user", "remote_host", "remote_dir", "service_name",
		"key_s3_bucket", "key_s3_object", "key_s3_region",
	} {
		v.SetDefault(key, "")
	}

	v.SetDefault("remote_branch", "main")
	v.SetDefault("ssh_port", 22)
	v.SetDefault("ssh_timeout", "5s")
	v.SetDefault("status_lines", 10)
	v.SetDefault("listen_addr", ":8008")
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("db_dsn", "stagehop.db")
}

// Load reads the configuration. An explicit path is required to exist;
// otherwise stagehop.yaml is searched for in the working directory, the
// user config directory and /etc/stagehop, and may be absent entirely.
func Load(path string) (Config, error) {
	v := viper.New()
	defaults(v)

	v.SetConfigName("stagehop")
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "stagehop"))
		}
		v.AddConfigPath("/etc/stagehop")

		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
	v.SetEnvPrefix("stagehop")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return c, nil
}

// Validate checks the deploy-facing configuration: all required keys set,
// and a readable key unless the S3 source is configured.
func (c Config) Validate() error {
	var missing []string
	for key, value := range map[string]string{
		"key_path":     c.KeyPath,
		"remote_user":  c.RemoteUser,
		"remote_host":  c.RemoteHost,
		"remote_dir":   c.RemoteDir,
		"service_name": c.ServiceName,
	} {
		if value == "" {
			missing = append(missing, key)
		}
	}
	if c.KeyS3Bucket != "" {
		// key comes from S3, the local path is not needed
		missing = remove(missing, "key_path")
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.KeyS3Bucket == "" {
		f, err := os.Open(c.KeyPath)
		if err != nil {
			return fmt.Errorf("ssh key %s is not readable: %w", c.KeyPath, err)
		}
		f.Close()
	}
	return nil
}

// Target builds the deploy target from the configuration.
func (c Config) Target() deploy.Target {
	return deploy.Target{
		Host:    c.RemoteHost,
		Port:    c.SSHPort,
		User:    c.RemoteUser,
		Dir:     c.RemoteDir,
		Branch:  c.RemoteBranch,
		Service: c.ServiceName,
	}
}

// Signer loads the deploy key from S3 when configured, the key file
// otherwise.
func (c Config) Signer() (ssh.Signer, error) {
	if c.KeyS3Bucket != "" {
		return deploy.KeyFromS3(c.KeyS3Region, c.KeyS3Bucket, c.KeyS3Object)
	}
	return deploy.KeyFromFile(c.KeyPath)
}

func remove(ss []string, drop string) []string {
	out := ss[:0]
	for _, s := range ss {
		if s != drop {
			out = append(out, s)
		}
	}
	return out
}
