// Package admin serves the HTTP control surface of a controller process:
// health, metrics, link inspection, and posting or requesting over a link.
package admin

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/framelink/internal/auth"
	"github.com/danmuck/framelink/internal/channel"
	"github.com/danmuck/framelink/internal/observability"
	"github.com/danmuck/framelink/internal/protocol"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const version = "0.1.0"

type Server struct {
	ID       string
	Addr     string
	Appeared time.Time

	controller *channel.Controller
	router     *gin.Engine
	validator  auth.Validator
}

func New(id, addr string, controller *channel.Controller, corsOrigins []string) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(observability.ComponentLogger("admin", id)))
	r.Use(observability.RequestMetricsMiddleware(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	return &Server{
		ID:         id,
		Addr:       addr,
		Appeared:   time.Now(),
		controller: controller,
		router:     r,
	}
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// RequireToken guards the /links routes with a bearer token. Call it
// before RegisterRoutes.
func (s *Server) RequireToken(v auth.Validator) {
	s.validator = v
}

func (s *Server) Run() error {
	log.Info().Msgf("admin.Server.Run id=%s addr=%s", s.ID, s.Addr)
	return s.router.Run(s.Addr)
}

func (s *Server) RegisterRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"uptime":     time.Since(s.Appeared).String(),
			"controller": s.ID,
			"links":      len(s.controller.Links()),
			"version":    version,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	links := s.router.Group("/links")
	if s.validator != nil {
		links.Use(requireToken(s.validator))
	}

	links.GET("", func(c *gin.Context) {
		links := s.controller.Links()
		infos := make([]channel.Info, 0, len(links))
		for _, l := range links {
			infos = append(infos, l.Info())
		}
		c.JSON(http.StatusOK, gin.H{"links": infos})
	})

	links.GET("/:node", func(c *gin.Context) {
		l, ok := s.controller.Get(c.Param("node"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": channel.ErrUnknownNode.Error()})
			return
		}
		c.JSON(http.StatusOK, l.Info())
	})

	links.POST("/:node/post/*type", func(c *gin.Context) {
		l, data, ok := s.bind(c)
		if !ok {
			return
		}
		if err := l.Post(messageType(c), data); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "ok", "link": l.Status()})
	})

	links.POST("/:node/request/*type", func(c *gin.Context) {
		l, data, ok := s.bind(c)
		if !ok {
			return
		}
		future, err := l.Request(messageType(c), data)
		if err != nil {
			respondError(c, err)
			return
		}
		out, err := future.Wait(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "data": out})
	})

	links.POST("/:node/reconnect", func(c *gin.Context) {
		l, ok := s.controller.Get(c.Param("node"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": channel.ErrUnknownNode.Error()})
			return
		}
		if err := l.Reconnect(); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "ok", "link": l.Status()})
	})
}

func requireToken(v auth.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok || v.Validate(token) != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": auth.ErrUnauthorized.Error()})
			return
		}
		c.Next()
	}
}

// bind resolves the link and the optional JSON body.
func (s *Server) bind(c *gin.Context) (*channel.Link, protocol.Data, bool) {
	l, ok := s.controller.Get(c.Param("node"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": channel.ErrUnknownNode.Error()})
		return nil, nil, false
	}
	var data protocol.Data
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&data); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
			return nil, nil, false
		}
	}
	return l, data, true
}

// messageType reads the catch-all type segment, which may itself contain
// slashes ("overlay/focus").
func messageType(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("type"), "/")
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, protocol.ErrReservedType), errors.Is(err, protocol.ErrEmptyType):
		return http.StatusBadRequest
	case errors.Is(err, channel.ErrNoResponse):
		return http.StatusGatewayTimeout
	case errors.Is(err, channel.ErrNotConnected):
		return http.StatusConflict
	case errors.Is(err, channel.ErrLinkClosed):
		return http.StatusGone
	case errors.Is(err, channel.ErrSendFailed):
		return http.StatusBadGateway
	case errors.Is(err, channel.ErrWrongRole):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
