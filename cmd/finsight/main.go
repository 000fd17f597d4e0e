package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/finsight/finsight/internal/config"
	"github.com/finsight/finsight/internal/engine"
	"github.com/finsight/finsight/internal/flow"
	"github.com/finsight/finsight/internal/impact"
	"github.com/finsight/finsight/internal/logger"
	"github.com/finsight/finsight/internal/narrative"
	"github.com/finsight/finsight/internal/report"
	"github.com/finsight/finsight/internal/scoring"
	"github.com/finsight/finsight/internal/server"
	"github.com/finsight/finsight/internal/service"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name 是服务的名称
	Name string = "finsight"
	// Version 是服务的版本号
	Version string
	// flagconf 是配置文件的路径命令行参数
	flagconf string

	id, _ = os.Hostname()
)

func init() {
	flag.StringVar(&flagconf, "conf", "configs/config.yaml", "config path, eg: -conf config.yaml")
}

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig(flagconf)
	if err != nil {
		panic(err)
	}

	if err := logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		panic(err)
	}

	// 传输层日志走 kratos，管道内部日志走 logrus
	klogger := log.With(log.NewStdLogger(os.Stdout),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.id", id,
		"service.name", Name,
		"service.version", Version,
	)

	app, err := initApp(cfg, klogger)
	if err != nil {
		panic(err)
	}

	if err := app.Run(); err != nil {
		panic(err)
	}
}

// initApp 手工装配整条管道：评分客户端 -> 排序器 -> 叙事生成器 -> 引擎 -> 服务
func initApp(cfg *config.Config, klogger log.Logger) (*kratos.App, error) {
	scorer := scoring.NewClient(cfg.Scorer.BaseURL, time.Duration(cfg.Scorer.TimeoutSeconds)*time.Second)
	ranker := impact.NewRanker(cfg.Impact.HighThreshold, cfg.Impact.MediumThreshold, cfg.Impact.TopN)

	generator, err := narrative.NewLLMGenerator(context.Background(), cfg.LLM, cfg.Concurrency)
	if err != nil {
		return nil, err
	}

	eng := engine.NewEngine(scorer, ranker, generator)
	store := flow.NewStore()
	renderer := report.NewRenderer(cfg.Report.WatermarkPath)

	svc := service.NewAssessmentService(eng, store, renderer, klogger)
	hs := server.NewHTTPServer(cfg.Server, svc, klogger)

	return kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Metadata(map[string]string{}),
		kratos.Logger(klogger),
		kratos.Server(hs),
	), nil
}
