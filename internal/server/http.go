package server

import (
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/finsight/finsight/internal/config"
	"github.com/finsight/finsight/internal/service"
)

// NewHTTPServer 装配 HTTP 服务并注册评估管道的路由
func NewHTTPServer(c config.ServerConfig, svc *service.AssessmentService, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
		),
	}
	if c.Addr != "" {
		opts = append(opts, http.Address(c.Addr))
	}
	if c.Timeout != "" {
		if d, err := time.ParseDuration(c.Timeout); err == nil {
			opts = append(opts, http.Timeout(d))
		}
	}

	srv := http.NewServer(opts...)

	srv.HandleFunc("/health", svc.HandleHealth)
	srv.HandleFunc("/api/diagnose", svc.HandleDiagnose)
	srv.HandleFunc("/api/simulate", svc.HandleSimulate)
	srv.HandleFunc("/api/coach", svc.HandleCoach)
	srv.HandleFunc("/api/report/download", svc.HandleReportDownload)
	srv.HandleFunc("/api/session", svc.HandleSession)
	srv.HandleFunc("/api/session/reset", svc.HandleReset)

	log.NewHelper(logger).Infof("assessment routes registered on %s", c.Addr)
	return srv
}
