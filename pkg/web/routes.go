package web

import (
	"net/http"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (app *GinApp) setupRoutes() {
	app.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if app.ginConfig.EnableMetrics {
		app.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{})))
	}

	if app.ginConfig.EnablePprof {
		pprof.RouteRegister(&app.engine.RouterGroup, "/debug/pprof")
	}
}
