package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	applyPuncherDefaults(&cfg.Puncher)
	applyPagesDefaults(&cfg.Pages)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Puncher.NeedsStoragePath() {
		absStorage, err := filepath.Abs(cfg.Global.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("无法解析缓存目录: %w", err)
		}
		cfg.Global.StoragePath = absStorage
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("StoragePath", "./storage")

	v.SetDefault("Puncher.LocalCache", true)
	v.SetDefault("Puncher.Verbose", false)
	v.SetDefault("Puncher.ReportErrors", false)
	v.SetDefault("Puncher.StoreName", DefaultStoreName)
	v.SetDefault("Puncher.StoreDriver", StoreDriverFS)
	v.SetDefault("Puncher.Origin", "")
	v.SetDefault("Puncher.Mode", "no-cors")
	v.SetDefault("Puncher.Credentials", "same-origin")
	v.SetDefault("Puncher.BearerToken", "")
	v.SetDefault("Puncher.UpstreamTimeout", "0s")

	v.SetDefault("Pages.Root", "./pages")
	v.SetDefault("Pages.Selector", "[data-url]")
	v.SetDefault("Pages.URLAttribute", "data-url")
}

// Default 返回未读取任何文件时的配置，便于测试与嵌入式调用。
func Default() *Config {
	cfg := &Config{
		Puncher: PuncherConfig{LocalCache: true},
	}
	applyGlobalDefaults(&cfg.Global)
	applyPuncherDefaults(&cfg.Puncher)
	applyPagesDefaults(&cfg.Pages)
	return cfg
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	if strings.TrimSpace(g.LogLevel) == "" {
		g.LogLevel = "info"
	}
	if g.StoragePath == "" {
		g.StoragePath = "./storage"
	}
}

func applyPuncherDefaults(p *PuncherConfig) {
	p.StoreName = strings.TrimSpace(p.StoreName)
	if p.StoreName == "" {
		p.StoreName = DefaultStoreName
	}
	p.StoreDriver = strings.ToLower(strings.TrimSpace(p.StoreDriver))
	if p.StoreDriver == "" {
		p.StoreDriver = StoreDriverFS
	}
	p.Mode = strings.ToLower(strings.TrimSpace(p.Mode))
	if p.Mode == "" {
		p.Mode = "no-cors"
	}
	p.Credentials = strings.ToLower(strings.TrimSpace(p.Credentials))
	if p.Credentials == "" {
		p.Credentials = "same-origin"
	}
	if p.UpstreamTimeout.DurationValue() < 0 {
		p.UpstreamTimeout = Duration(0)
	}
	p.Origin = strings.TrimRight(strings.TrimSpace(p.Origin), "/")
}

func applyPagesDefaults(p *PagesConfig) {
	if p.Root == "" {
		p.Root = "./pages"
	}
	if strings.TrimSpace(p.URLAttribute) == "" {
		p.URLAttribute = "data-url"
	}
	if strings.TrimSpace(p.Selector) == "" {
		p.Selector = "[" + p.URLAttribute + "]"
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
