package puncher

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/holepuncher/holepuncher/internal/cache"
	"github.com/holepuncher/holepuncher/internal/config"
	"github.com/holepuncher/holepuncher/internal/transport"
)

// Transport 是单次上游请求能力。
type Transport interface {
	Fetch(ctx context.Context, rawURL string, policy transport.Policy) (*transport.Response, error)
	RequestKey(rawURL string) (string, error)
}

// Options 对应调用方可调整的开关。
type Options struct {
	// LocalCache 控制是否读写 CacheStore，默认 true。
	LocalCache bool
	// Verbose 打开诊断日志，默认 false。
	Verbose bool
	// ReportErrors 为失败的抓取触发 fetch_error 事件，默认 false。
	ReportErrors bool
}

// DefaultOptions 返回默认开关：启用缓存、关闭诊断。
func DefaultOptions() Options {
	return Options{LocalCache: true}
}

// OptionsFromConfig 读取 [Puncher] 段中的开关。
func OptionsFromConfig(cfg config.PuncherConfig) Options {
	return Options{
		LocalCache:   cfg.LocalCache,
		Verbose:      cfg.Verbose,
		ReportErrors: cfg.ReportErrors,
	}
}

// Deps 汇总进程级长生命周期依赖，由调用方显式注入。
type Deps struct {
	Backend   cache.Backend
	Transport Transport
	Logger    logrus.FieldLogger
	Policy    transport.Policy
	StoreName string
}

func (d Deps) storeName() string {
	if d.StoreName == "" {
		return config.DefaultStoreName
	}
	return d.StoreName
}

func (d Deps) policy() transport.Policy {
	if d.Policy == (transport.Policy{}) {
		return transport.DefaultPolicy()
	}
	return d.Policy
}

// NewDeps 根据配置组装 Deps，传输策略取自 [Puncher] 段。
func NewDeps(cfg *config.Config, backend cache.Backend, client Transport, logger logrus.FieldLogger) (Deps, error) {
	deps := Deps{
		Backend:   backend,
		Transport: client,
		Logger:    logger,
		Policy:    transport.DefaultPolicy(),
		StoreName: config.DefaultStoreName,
	}
	if cfg == nil {
		return deps, nil
	}
	policy, err := transport.ParsePolicy(cfg.Puncher.Mode, cfg.Puncher.Credentials)
	if err != nil {
		return Deps{}, err
	}
	deps.Policy = policy
	deps.StoreName = cfg.Puncher.StoreName
	return deps, nil
}
