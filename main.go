package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/holepuncher/holepuncher/internal/cache"
	"github.com/holepuncher/holepuncher/internal/config"
	"github.com/holepuncher/holepuncher/internal/logging"
	"github.com/holepuncher/holepuncher/internal/punch"
	"github.com/holepuncher/holepuncher/internal/puncher"
	"github.com/holepuncher/holepuncher/internal/server"
	"github.com/holepuncher/holepuncher/internal/server/routes"
	"github.com/holepuncher/holepuncher/internal/transport"
	"github.com/holepuncher/holepuncher/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	flush       bool
	renderFile  string
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["store_driver"] = cfg.Puncher.StoreDriver
		fields["auth_mode"] = cfg.Puncher.AuthMode()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动顺序：配置 → 缓存后端 → 上游客户端 → 入口（flush / render / server），
	// 所有 Puncher 共享同一个后端与客户端。
	backend, err := cache.NewBackend(cfg)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存后端失败: %v\n", err)
		return 1
	}
	defer backend.Close()

	client, err := transport.NewFromConfig(cfg)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化上游客户端失败: %v\n", err)
		return 1
	}

	deps, err := puncher.NewDeps(cfg, backend, client, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "解析抓取策略失败: %v\n", err)
		return 1
	}
	punchOpts := puncher.OptionsFromConfig(cfg.Puncher)

	switch {
	case opts.flush:
		return runFlush(deps, punchOpts, logger, opts.configPath)
	case opts.renderFile != "":
		return runRender(cfg, deps, punchOpts, logger, opts.renderFile)
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["store_driver"] = cfg.Puncher.StoreDriver
	fields["auth_mode"] = cfg.Puncher.AuthMode()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, deps, punchOpts, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

func runFlush(deps puncher.Deps, opts puncher.Options, logger *logrus.Logger, configPath string) int {
	p := puncher.New(deps, opts)
	p.Flush(context.Background())
	deleted, err := p.FlushResult()

	fields := logging.BaseFields("flush", configPath)
	fields["store"] = deps.StoreName
	fields["deleted"] = deleted
	if err != nil {
		fields["result"] = "failed"
		logger.WithFields(fields).WithError(err).Error("清空缓存失败")
		fmt.Fprintf(stdErr, "清空缓存失败: %v\n", err)
		return 1
	}
	fields["result"] = "ok"
	logger.WithFields(fields).Info("缓存已清空")
	return 0
}

// runRender 离线渲染单个页面并输出到 stdout，退出前等待缓存写入落盘。
func runRender(cfg *config.Config, deps puncher.Deps, opts puncher.Options, logger *logrus.Logger, file string) int {
	f, err := os.Open(file)
	if err != nil {
		fmt.Fprintf(stdErr, "打开页面失败: %v\n", err)
		return 1
	}
	defer f.Close()

	doc, err := punch.ParseDocument(f)
	if err != nil {
		fmt.Fprintf(stdErr, "解析页面失败: %v\n", err)
		return 1
	}

	p := punch.All(context.Background(), deps, doc, cfg.Pages.Selector, cfg.Pages.URLAttribute, opts)
	p.Wait()

	html, err := doc.Render()
	if err != nil {
		fmt.Fprintf(stdErr, "输出页面失败: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdOut, html)

	logger.WithFields(logrus.Fields{
		"action": "render",
		"page":   file,
	}).Debug("页面渲染完成")
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("holepuncher", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
		flush      bool
		render     string
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 HOLEPUNCHER_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")
	fs.BoolVar(&flush, "flush", false, "清空共享缓存后退出")
	fs.StringVar(&render, "render", "", "渲染指定 HTML 文件并输出到 stdout")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("HOLEPUNCHER_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
		flush:       flush,
		renderFile:  render,
	}, nil
}

func startHTTPServer(cfg *config.Config, deps puncher.Deps, opts puncher.Options, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Deps:       deps,
		Options:    opts,
		Pages:      cfg.Pages,
		ListenPort: port,
	})
	if err != nil {
		return err
	}
	routes.RegisterDiagnosticRoutes(app, routes.Diagnostics{
		Logger:  logger,
		Deps:    deps,
		Options: opts,
		Config:  cfg,
	})

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
		"pages":  cfg.Pages.Root,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
