package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述进程级行为：监听端口、日志与缓存目录。
type GlobalConfig struct {
	ListenPort    int    `mapstructure:"ListenPort"`
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`
	StoragePath   string `mapstructure:"StoragePath"`
}

// PuncherConfig 决定 puncher 如何查缓存、回源以及输出诊断日志。
type PuncherConfig struct {
	LocalCache      bool     `mapstructure:"LocalCache"`
	Verbose         bool     `mapstructure:"Verbose"`
	ReportErrors    bool     `mapstructure:"ReportErrors"`
	StoreName       string   `mapstructure:"StoreName"`
	StoreDriver     string   `mapstructure:"StoreDriver"`
	Origin          string   `mapstructure:"Origin"`
	Mode            string   `mapstructure:"Mode"`
	Credentials     string   `mapstructure:"Credentials"`
	BearerToken     string   `mapstructure:"BearerToken"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
}

// PagesConfig 描述服务端渲染时页面目录与占位元素的选择方式。
type PagesConfig struct {
	Root         string `mapstructure:"Root"`
	Selector     string `mapstructure:"Selector"`
	URLAttribute string `mapstructure:"URLAttribute"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global  GlobalConfig  `mapstructure:",squash"`
	Puncher PuncherConfig `mapstructure:"Puncher"`
	Pages   PagesConfig   `mapstructure:"Pages"`
}

// Store drivers.
const (
	StoreDriverFS     = "fs"
	StoreDriverSQLite = "sqlite"
	StoreDriverMemory = "memory"
)

// DefaultStoreName 与浏览器端 CacheStorage 的名字保持一致，多个实例共享同一份缓存。
const DefaultStoreName = "holepuncher"

// HasCredentials 表示是否配置了上游 Bearer 凭证。
func (p PuncherConfig) HasCredentials() bool {
	return strings.TrimSpace(p.BearerToken) != ""
}

// AuthMode 输出 `credentialed` 或 `anonymous`，供日志字段使用。
func (p PuncherConfig) AuthMode() string {
	if p.HasCredentials() {
		return "credentialed"
	}
	return "anonymous"
}

// NeedsStoragePath 判断当前驱动是否落盘。
func (p PuncherConfig) NeedsStoragePath() bool {
	return p.StoreDriver == StoreDriverFS || p.StoreDriver == StoreDriverSQLite
}
