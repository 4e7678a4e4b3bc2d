package config

import (
	"time"
)

type RemoteConfig struct {
	BaseURL           string        `yaml:"base_url" env:"NETWORKFS_BASE_URL" env-default:"http://nerc.itmo.ru/teaching/os/networkfs/v1"`
	Token             string        `yaml:"token" env:"NETWORKFS_TOKEN"`
	Timeout           time.Duration `yaml:"timeout" env:"NETWORKFS_TIMEOUT" env-default:"10s"`
	RequestsPerSecond float64       `yaml:"requests_per_second" env:"NETWORKFS_REQUESTS_PER_SECOND"`
	MaxFileSize       ByteSize      `yaml:"max_file_size" env:"NETWORKFS_MAX_FILE_SIZE" env-default:"512B"`
}

// Zero values of the mount settings are meaningful, so none of them carries
// an env-default: cleanenv would overwrite an explicit zero from the file.
type MountConfig struct {
	Mountpoint   string        `yaml:"mountpoint" env:"NETWORKFS_MOUNTPOINT"`
	FSName       string        `yaml:"fs_name"`
	AllowOther   bool          `yaml:"allow_other"`
	Debug        bool          `yaml:"debug" env:"NETWORKFS_FUSE_DEBUG"`
	PageCache    bool          `yaml:"page_cache"`
	AttrTimeout  time.Duration `yaml:"attr_timeout"`
	EntryTimeout time.Duration `yaml:"entry_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"NETWORKFS_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"NETWORKFS_LOG_FORMAT" env-default:"pretty"`
}

type MetricsConfig struct {
	ListenAddress string `yaml:"listen_address" env:"NETWORKFS_METRICS_ADDRESS"`
}
