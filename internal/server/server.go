package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/invois/internal/auth"
	"github.com/smallbiznis/invois/internal/clock"
	"github.com/smallbiznis/invois/internal/config"
	"github.com/smallbiznis/invois/internal/credential"
	credentialdomain "github.com/smallbiznis/invois/internal/credential/domain"
	"github.com/smallbiznis/invois/internal/erp"
	"github.com/smallbiznis/invois/internal/myinvois"
	obsmetrics "github.com/smallbiznis/invois/internal/observability/metrics"
	"github.com/smallbiznis/invois/internal/poller"
	"github.com/smallbiznis/invois/internal/ratelimit"
	"github.com/smallbiznis/invois/internal/submission"
	submissiondomain "github.com/smallbiznis/invois/internal/submission/domain"
	"github.com/smallbiznis/invois/internal/vault"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	config.Module,
	clock.Module,
	vault.Module,
	credential.Module,
	auth.Module,
	ratelimit.Module,
	myinvois.Module,
	erp.Module,
	submission.Module,
	obsmetrics.Module,
	poller.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger) *gin.Engine {
	return NewEngine(log)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	genID         *snowflake.Node
	submissionSvc submissiondomain.Service
	credentialSvc credentialdomain.Service
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	GenID         *snowflake.Node
	SubmissionSvc submissiondomain.Service
	CredentialSvc credentialdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		genID:         p.GenID,
		submissionSvc: p.SubmissionSvc,
		credentialSvc: p.CredentialSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Credentials --------
	api.PUT("/credentials", s.StoreCredential)

	// -------- Submissions --------
	api.POST("/submissions", s.CreateSubmission)
	api.POST("/submissions/batch", s.SubmitBatch)
	api.GET("/submissions", s.SearchSubmissions)
	api.GET("/submissions/:id", s.GetSubmission)
	api.POST("/submissions/:id/submit", s.Submit)
	api.PUT("/submissions/:id/cancel", s.CancelSubmission)
	api.GET("/submissions/:id/document", s.GetAuthorityDocument)

	// -------- Authority passthrough --------
	api.GET("/authority/documents", s.SearchAuthorityDocuments)
}
