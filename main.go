package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/pull-cdn/internal/cache"
	"github.com/any-hub/pull-cdn/internal/config"
	"github.com/any-hub/pull-cdn/internal/logging"
	"github.com/any-hub/pull-cdn/internal/origin"
	"github.com/any-hub/pull-cdn/internal/proxy"
	"github.com/any-hub/pull-cdn/internal/server"
	"github.com/any-hub/pull-cdn/internal/server/routes"
	"github.com/any-hub/pull-cdn/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
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
		fields["origin"] = cfg.Origin.OriginHost()
		fields["freshness_policy"] = cfg.Global.FreshnessPolicy
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	app, err := buildApp(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "%v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["origin"] = cfg.Origin.OriginHost()
	fields["cache_dir"] = cfg.Global.CacheDir
	fields["listen_port"] = cfg.Global.ListenPort
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(app, cfg.Global.ListenPort, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// buildApp 按“配置 → 磁盘缓存 → 源站客户端 → 拉取 Handler → Fiber app”顺序装配，
// 所有请求共享同一个 Store 与 Fetcher。
func buildApp(cfg *config.Config, logger *logrus.Logger) (*fiber.App, error) {
	policy, err := cache.ParsePolicy(cfg.Global.FreshnessPolicy)
	if err != nil {
		return nil, fmt.Errorf("解析缓存策略失败: %w", err)
	}
	ttl := cfg.Global.CacheTTL.DurationValue()

	store, err := cache.NewStore(cfg.Global.CacheDir, cache.NewFreshness(policy, ttl))
	if err != nil {
		return nil, fmt.Errorf("初始化缓存目录失败: %w", err)
	}

	fetcher := origin.NewFetcher(server.NewOriginClient(cfg), origin.Options{
		ProbeTimeout: cfg.Origin.ProbeTimeout.DurationValue(),
		FetchTimeout: cfg.Origin.FetchTimeout.DurationValue(),
	})

	handler := proxy.NewHandler(proxy.Options{
		Origin:      cfg.Origin.URL,
		StripPrefix: cfg.Origin.StripPrefix,
		TTL:         ttl,
		PoweredBy:   cfg.Global.PoweredBy,
	}, store, fetcher, logger)

	app, err := server.NewApp(server.AppOptions{
		Logger: logger,
		Pull:   handler,
	})
	if err != nil {
		return nil, err
	}
	routes.RegisterStatusRoutes(app, cfg, handler.Stats())
	return app, nil
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("pull-cdn", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 PULL_CDN_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("PULL_CDN_CONFIG")
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
	}, nil
}

func startHTTPServer(app *fiber.App, port int, logger *logrus.Logger) error {
	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
