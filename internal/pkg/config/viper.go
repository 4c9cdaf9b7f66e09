package config

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// legacyEnv maps environment names used by existing deployments onto config keys.
var legacyEnv = map[string]string{
	"mail.emailit.api_key": "EMAILIT_API_KEY",
	"mail.from":            "EMAIL_ADDRESS",
	"mail.smtp.password":   "EMAIL_PASSWORD",
}

// Viper is a Config implementation backed by github.com/spf13/viper.
type Viper struct {
	v *viper.Viper
}

// NewViper loads configuration from the given file path and the process environment.
//
// The config file type is inferred by Viper from the filename extension. A missing
// file is not an error: every key can also be provided as an environment variable
// named after the key in upper case with dots replaced by underscores
// (mail.emailit.api_key -> MAIL_EMAILIT_API_KEY).
func NewViper(pathFile string) (*Viper, error) {
	v := newEnvViper()

	filename := path.Base(pathFile)
	filePath := path.Dir(pathFile)

	configName := path.Base(filename[:len(filename)-len(path.Ext(filename))])

	v.AddConfigPath(filePath)
	v.SetConfigName(configName)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return &Viper{v: v}, nil
}

// NewViperFromBytes loads configuration from memory and returns a Viper-backed Config.
// configType should be a format supported by Viper (e.g. "yaml", "json", "toml").
func NewViperFromBytes(configType string, data []byte) (*Viper, error) {
	if strings.TrimSpace(configType) == "" {
		return nil, errors.New("config type is required")
	}

	v := newEnvViper()
	v.SetConfigType(configType)

	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, err
	}

	return &Viper{v: v}, nil
}

func newEnvViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range legacyEnv {
		//nolint:errcheck,gosec // BindEnv only fails without arguments
		v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}

	setDefaults(v)

	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.mode", "send")
	v.SetDefault("log.file", "certificate_process.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.mask_fields", "api_key,password,private_key,authorization")
	v.SetDefault("batch.workers", 1)
	v.SetDefault("render.driver", "local")
	v.SetDefault("render.overlay.x", 600)
	v.SetDefault("render.overlay.y", 600)
	v.SetDefault("render.overlay.font", "script")
	v.SetDefault("render.overlay.scale", 2)
	v.SetDefault("render.overlay.color", "0,0,0")
	v.SetDefault("render.jpeg_quality", 95)
	v.SetDefault("render.remote.placeholder", "{{NAME}}")
	v.SetDefault("render.remote.timeout_seconds", 60)
	v.SetDefault("mail.driver", "emailit")
	v.SetDefault("mail.timeout_seconds", 30)
	v.SetDefault("mail.emailit.base_url", "https://api.emailit.com")
	v.SetDefault("mail.smtp.host", "smtp.gmail.com")
	v.SetDefault("mail.smtp.port", 587)
	v.SetDefault("mail.retry.max_retries", 2)
	v.SetDefault("mail.retry.base_delay_seconds", 1)
	v.SetDefault("mail.retry.max_delay_seconds", 10)
	v.SetDefault("ledger.ttl_seconds", 30*24*60*60)
}

// GetInt returns the value for key as int.
func (vc *Viper) GetInt(key string) int {
	return vc.v.GetInt(key)
}

// GetBool returns the value for key as bool.
func (vc *Viper) GetBool(key string) bool {
	return vc.v.GetBool(key)
}

// GetFloat64 returns the value for key as float64.
func (vc *Viper) GetFloat64(key string) float64 {
	return vc.v.GetFloat64(key)
}

// GetSecond returns the value for key as seconds.
func (vc *Viper) GetSecond(key string) time.Duration {
	return time.Duration(vc.v.GetInt64(key)) * time.Second
}

// GetString returns the value for key as string.
func (vc *Viper) GetString(key string) string {
	return vc.v.GetString(key)
}

// GetBinary returns the value for key decoded from base64.
func (vc *Viper) GetBinary(key string) []byte {
	data, err := base64.StdEncoding.DecodeString(vc.v.GetString(key))
	if err != nil {
		return nil
	}

	return data
}

// GetArray returns the value for key split by commas, with blanks removed.
func (vc *Viper) GetArray(key string) []string {
	raw := strings.Split(vc.v.GetString(key), ",")
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}

	return out
}

// Close implements io.Closer for interface compatibility.
func (vc *Viper) Close() error {
	return nil
}
