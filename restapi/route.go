/*
Package restapi exposes the running gate over HTTP: record submission,
top-key snapshots and operational metrics.
*/
package restapi

import (
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/streamgate-io/streamgate/filters"
)

type Gate struct {
	Router   *gin.Engine
	pipeline *filters.Pipeline
	limit    *filters.CMSLimit
	topKeys  *filters.TopKeys
}

// response to hitting '/' on the server
func GetRoot(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/plain")
	_, err := c.Writer.Write([]byte("Streamgate"))
	if err != nil {
		log.Err(err).Msg("get root")
	}
}

// Basic middleware to log errors.
func ErrorLoggerMiddleware(c *gin.Context) {
	if c == nil {
		log.Error().Msg("gin error, couldn't provide error info as context was nil.")
		return
	}
	c.Next()

	for _, err := range c.Errors {
		if c.Request == nil || c.Request.URL == nil {
			log.Error().Err(err).Msg("gin error, limited detail as Request or Request URL was nil.")
		} else {
			log.Error().Err(err).Msgf("gin error on route %s %s with query params %v", c.Request.Method, c.Request.URL, c.Request.URL.Query())
		}
	}
}

// NewGate wires the filter pipeline into the HTTP router. The limit and
// topKeys handles may be nil when those stages are not configured.
func NewGate(pipeline *filters.Pipeline, limit *filters.CMSLimit, topKeys *filters.TopKeys) *Gate {
	gin.SetMode(gin.ReleaseMode) // don't print route list on start

	log.Info().Msg("Start Streamgate RestAPI")
	router := gin.New()
	router.Use(ErrorLoggerMiddleware)
	gate := &Gate{Router: router, pipeline: pipeline, limit: limit, topKeys: topKeys}

	// push records (NDJSON body) through the pipeline, returning survivors
	lpath := "/api/v1/records"
	router.POST(lpath, MetricHandler(lpath, gate.PostRecords))
	// current top keys sorted by count
	lpath = "/api/v1/topk"
	router.GET(lpath, MetricHandler(lpath, gate.GetTopKeys))
	// top key tracker in its binary wire form
	lpath = "/api/v1/topk/encoded"
	router.GET(lpath, MetricHandler(lpath, gate.GetTopKeysEncoded))
	// pipeline composition
	lpath = "/api/v1/stats"
	router.GET(lpath, MetricHandler(lpath, gate.GetStats))

	// base response
	router.GET("/", GetRoot)

	// memory monitoring, required for us to debug memory usage under load
	pprof.Register(router, "debug/pprof")

	// prometheus metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return gate
}

// Stop flushes remaining sketches before shutdown.
func (g *Gate) Stop() {
	log.Info().Msg("stopping streamgate restapi and flushing sketches")
	if g.limit != nil {
		if err := g.limit.Close(); err != nil {
			log.Err(err).Msg("could not flush sketches on shutdown")
		}
	}
	log.Info().Msg("stopped streamgate restapi")
}
