package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var supportedStoreDrivers = map[string]struct{}{
	StoreDriverFS:     {},
	StoreDriverSQLite: {},
	StoreDriverMemory: {},
}

const supportedStoreDriverList = "fs|sqlite|memory"

var supportedModes = map[string]struct{}{
	"cors":        {},
	"no-cors":     {},
	"same-origin": {},
}

var supportedCredentials = map[string]struct{}{
	"omit":        {},
	"same-origin": {},
	"include":     {},
}

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.LogMaxSize < 0 {
		return newFieldError("Global.LogMaxSize", "不能为负数")
	}
	if g.LogMaxBackups < 0 {
		return newFieldError("Global.LogMaxBackups", "不能为负数")
	}

	p := &c.Puncher
	if p.StoreName == "" {
		return newFieldError(puncherField("StoreName"), "不能为空")
	}
	if strings.ContainsAny(p.StoreName, `/\`) {
		return newFieldError(puncherField("StoreName"), "不允许包含路径分隔符")
	}

	driver := strings.ToLower(strings.TrimSpace(p.StoreDriver))
	if _, ok := supportedStoreDrivers[driver]; !ok {
		return newFieldError(puncherField("StoreDriver"), "仅支持 "+supportedStoreDriverList)
	}
	p.StoreDriver = driver
	if p.NeedsStoragePath() && g.StoragePath == "" {
		return newFieldError("Global.StoragePath", "不能为空")
	}

	mode := strings.ToLower(strings.TrimSpace(p.Mode))
	if _, ok := supportedModes[mode]; !ok {
		return newFieldError(puncherField("Mode"), "仅支持 cors/no-cors/same-origin")
	}
	p.Mode = mode

	creds := strings.ToLower(strings.TrimSpace(p.Credentials))
	if _, ok := supportedCredentials[creds]; !ok {
		return newFieldError(puncherField("Credentials"), "仅支持 omit/same-origin/include")
	}
	p.Credentials = creds

	if p.Origin != "" {
		if err := validateOrigin(p.Origin); err != nil {
			return fmt.Errorf("%s: %w", puncherField("Origin"), err)
		}
	}
	if p.UpstreamTimeout.DurationValue() < 0 {
		return newFieldError(puncherField("UpstreamTimeout"), "不能为负数")
	}

	if strings.TrimSpace(c.Pages.URLAttribute) == "" {
		return newFieldError("Pages.URLAttribute", "不能为空")
	}
	if strings.TrimSpace(c.Pages.Selector) == "" {
		return newFieldError("Pages.Selector", "不能为空")
	}

	return nil
}

func validateOrigin(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，Origin: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("Origin 缺少 Host: %s", raw)
	}
	if parsed.Path != "" && parsed.Path != "/" {
		return fmt.Errorf("Origin 不应包含路径: %s", raw)
	}
	return nil
}
