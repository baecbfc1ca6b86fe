// lyricsync/config/config.go
package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Config struct {
	WhisperBin       string        `mapstructure:"WHISPER_BIN"`
	WhisperModel     string        `mapstructure:"WHISPER_MODEL"`
	WhisperLanguage  string        `mapstructure:"WHISPER_LANGUAGE"`
	WhisperExtraArgs string        `mapstructure:"WHISPER_EXTRA_ARGS"`
	WhisperTimeout   time.Duration `mapstructure:"WHISPER_TIMEOUT"`
	FFProbeBin       string        `mapstructure:"FFPROBE_BIN"`
	UploadDir        string        `mapstructure:"UPLOAD_DIR"`
	MaxInputSize     int64         `mapstructure:"MAX_INPUT_SIZE"`
	MaxConcurrency   int           `mapstructure:"MAX_CONCURRENCY"`
	ThrottleCPU      float64       `mapstructure:"THROTTLE_CPU"`
	ThrottleFreeMem  int64         `mapstructure:"THROTTLE_FREEMEM"`
	ThrottleFreeDisk int64         `mapstructure:"THROTTLE_FREEDISK"`
	FileLifetime     time.Duration `mapstructure:"FILE_LIFETIME"`
	AuthEnable       bool          `mapstructure:"AUTH_ENABLE"`
	AuthKey          string        `mapstructure:"AUTH_KEY"`
	Port             string        `mapstructure:"PORT"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
	LogJSON          bool          `mapstructure:"LOG_JSON"`
	LogFile          string        `mapstructure:"LOG_FILE"`
}

// durationHook decodes WHISPER_TIMEOUT and FILE_LIFETIME from strings
// such as "90s" or "24h".
func durationHook() mapstructure.DecodeHookFunc {
	durationType := reflect.TypeOf(time.Duration(0))
	return func(from, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != durationType {
			return data, nil
		}
		return time.ParseDuration(data.(string))
	}
}

// byteSizeHook turns "200MB"-style limits into byte counts. Strings that are
// not sizes pass through untouched.
func byteSizeHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to.Kind() != reflect.Int64 {
			return data, nil
		}
		var size datasize.ByteSize
		if err := size.UnmarshalText([]byte(data.(string))); err != nil {
			return data, nil
		}
		return int64(size.Bytes()), nil
	}
}

func Load() (*Config, error) {
	vp := viper.New()

	// Set default values as strings, the hooks will handle them.
	vp.SetDefault("WHISPER_BIN", "whisper-cli")
	vp.SetDefault("WHISPER_MODEL", "models/model.bin")
	vp.SetDefault("WHISPER_LANGUAGE", "es")
	vp.SetDefault("WHISPER_EXTRA_ARGS", "--max-len 1 --split-on-word")
	vp.SetDefault("WHISPER_TIMEOUT", "0s")
	vp.SetDefault("FFPROBE_BIN", "ffprobe")
	vp.SetDefault("UPLOAD_DIR", "uploads")
	vp.SetDefault("MAX_INPUT_SIZE", "200MB")
	vp.SetDefault("MAX_CONCURRENCY", 2)
	vp.SetDefault("THROTTLE_CPU", 50.0)
	vp.SetDefault("THROTTLE_FREEMEM", "200MB")
	vp.SetDefault("THROTTLE_FREEDISK", "200MB")
	vp.SetDefault("FILE_LIFETIME", "0s")
	vp.SetDefault("AUTH_ENABLE", false)
	vp.SetDefault("AUTH_KEY", "")
	vp.SetDefault("PORT", "8000")
	vp.SetDefault("LOG_LEVEL", "info")
	vp.SetDefault("LOG_JSON", false)
	vp.SetDefault("LOG_FILE", "")

	// Load from config file
	vp.SetConfigName("lyricsync_config")
	vp.SetConfigType("yaml")
	vp.AddConfigPath(".")
	vp.AddConfigPath("/etc/lyricsync/")

	if err := vp.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// Load from environment variables
	vp.SetEnvPrefix("LYRICSYNC")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	var cfg Config
	err := vp.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(durationHook(), byteSizeHook()),
	))
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
