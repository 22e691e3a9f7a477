package server

import (
	"log"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"

	v1 "github.com/Sarahmoonshot/nrw-report/internal/api/v1"
	"github.com/Sarahmoonshot/nrw-report/internal/billing"
	"github.com/Sarahmoonshot/nrw-report/internal/config"
	"github.com/Sarahmoonshot/nrw-report/internal/devices"
	"github.com/Sarahmoonshot/nrw-report/internal/nrw"
	"github.com/Sarahmoonshot/nrw-report/internal/store"
	"github.com/Sarahmoonshot/nrw-report/internal/telemetry"
)

// Server HTTP服务器
type Server struct {
	router *gin.Engine
	store  *store.Store
	v1     *v1.Handler
}

// NewServer 创建服务器并装配全部协作方
func NewServer(cfg *config.AppConfig) *Server {
	if !cfg.Server.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化 SQLite 快照库
	dataDir, err := config.EnsureDataDir(cfg)
	if err != nil {
		dataDir = cfg.Data.DataDir
	}
	dbPath := filepath.Join(dataDir, "nrw.db")

	snapshotStore, err := store.New(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	clock := clockwork.NewRealClock()
	matcher := devices.NewMatcher(cfg.Devices.Mapping)

	tokens := billing.NewTokenProvider(
		cfg.Billing.BaseURL,
		cfg.Billing.Username,
		cfg.Billing.Password,
		cfg.BillingTimeout(),
		clock,
	)
	billingClient := billing.NewClient(cfg.Billing.BaseURL, tokens, cfg.BillingTimeout())
	flowClient := telemetry.NewClient(cfg.Telemetry.BaseURL, cfg.Telemetry.BatchSize, cfg.TelemetryTimeout())

	assembler := nrw.NewAssembler(flowClient, billingClient, matcher, snapshotStore, cfg.LocalOffset(), clock)

	exportDir := filepath.Join(dataDir, "exports")
	v1Handler := v1.NewHandler(assembler, matcher, snapshotStore, exportDir)

	s := &Server{
		router: gin.Default(),
		store:  snapshotStore,
		v1:     v1Handler,
	}

	s.setupRoutes()

	return s
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	// CORS
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// V1 API 路由
	api := s.router.Group("/api")
	{
		s.v1.RegisterRoutes(api)
	}
}

// Run 启动服务器
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// Close 释放持有的资源
func (s *Server) Close() error {
	return s.store.Close()
}
