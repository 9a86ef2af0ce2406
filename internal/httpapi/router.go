package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(h *Handlers, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(h.log))
	r.Use(Instrument(h.metrics))
	r.Use(CORS(DefaultCORSConfig(h.cfg.AllowedOrigins)))

	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.NoMethod(h.MethodNotAllowed)

	r.GET("/", h.Root)
	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	r.POST(h.cfg.ProxyMountPrefix+"/create-draft-order", BodyLimit(h.cfg.MaxBodyBytes), h.CreateDraftOrder)

	return r
}
