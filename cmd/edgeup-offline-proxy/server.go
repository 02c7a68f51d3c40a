package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edgeup-ai/offline-router/pkg/cache"
	"github.com/edgeup-ai/offline-router/pkg/metrics"
	"github.com/edgeup-ai/offline-router/pkg/notify"
	"github.com/edgeup-ai/offline-router/pkg/router"
)

const (
	maxPushPayload = 4 << 10
	controlPrefix  = "/_sw/"
)

// newHandler serves the control endpoints under /_sw/ with gin and hands
// every other request to the router untouched.
func newHandler(rt *router.Router, hub *notify.Hub, storage cache.Storage) http.Handler {
	return &hostHandler{control: newEngine(rt, hub, storage), proxy: rt}
}

type hostHandler struct {
	control http.Handler
	proxy   http.Handler
}

func (h *hostHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, controlPrefix) {
		h.control.ServeHTTP(w, r)
		return
	}
	h.proxy.ServeHTTP(w, r)
}

// newEngine wires the control endpoints under /_sw.
func newEngine(rt *router.Router, hub *notify.Hub, storage cache.Storage) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())

	sw := engine.Group("/_sw")
	sw.GET("/health", healthHandler)
	sw.GET("/ready", readyHandler(rt, storage))
	sw.GET("/metrics", gin.WrapH(metrics.Handler()))
	sw.POST("/message", messageHandler(rt))
	sw.POST("/push", pushHandler(rt))
	sw.POST("/notificationclick", notificationClickHandler(rt))
	sw.POST("/sync", syncHandler(rt))
	sw.GET("/clients", gin.WrapF(hub.Serve))
	return engine
}

func healthHandler(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// readyHandler reports ready once the router is activated and storage answers.
func readyHandler(rt *router.Router, storage cache.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		if phase := rt.Phase(); phase != router.PhaseActivated {
			c.String(http.StatusServiceUnavailable, "router %s", phase)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if _, err := storage.Names(ctx); err != nil {
			c.String(http.StatusServiceUnavailable, "storage unavailable")
			return
		}
		c.String(http.StatusOK, "OK")
	}
}

func messageHandler(rt *router.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		var msg router.Message
		if err := c.ShouldBindJSON(&msg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := rt.Message(c.Request.Context(), msg); err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, router.ErrUnknownMessage) {
				status = http.StatusBadRequest
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func pushHandler(rt *router.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPushPayload))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		n, err := rt.Push(c.Request.Context(), payload)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, n)
	}
}

func notificationClickHandler(rt *router.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Action string `json:"action"`
		}
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&body); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}

		if err := rt.NotificationClick(c.Request.Context(), body.Action); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func syncHandler(rt *router.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		tag := c.DefaultQuery("tag", router.SyncTagBackground)

		n, err := rt.Sync(c.Request.Context(), tag)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "replayed": n})
			return
		}
		c.JSON(http.StatusOK, gin.H{"replayed": n})
	}
}
