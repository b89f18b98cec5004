package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/faceid/internal/api/handlers"
	"github.com/your-org/faceid/internal/api/ws"
	"github.com/your-org/faceid/internal/auth"
	"github.com/your-org/faceid/internal/index"
	"github.com/your-org/faceid/internal/queue"
	"github.com/your-org/faceid/internal/storage"
)

type RouterConfig struct {
	APIKey   string
	DB       *storage.PostgresStore
	MinIO    *storage.MinIOStore
	Producer *queue.Producer
	Hub      *ws.Hub
	Service  handlers.Recognizer
	Index    *index.Index
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Producer, cfg.Index)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Identification
	identifyH := handlers.NewIdentifyHandler(cfg.Service)
	v1.POST("/identify", identifyH.Identify)
	v1.POST("/identify/candidates", identifyH.Candidates)

	// Identities
	identityH := handlers.NewIdentityHandler(cfg.Service, cfg.DB)
	v1.POST("/identities", identityH.Enroll)
	v1.GET("/identities", identityH.List)

	// Events
	eventH := handlers.NewEventHandler(cfg.DB, cfg.MinIO)
	v1.GET("/events", eventH.List)
	v1.GET("/events/:id/snapshot", eventH.Snapshot)

	return r
}
