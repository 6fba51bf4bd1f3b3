package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RouteRegistrar adds its routes to an API group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

type setupConfig struct {
	apiVersion string
}

// Option tunes Setup
type Option func(*setupConfig)

// WithAPIVersion changes the version segment of the API prefix (default v1)
func WithAPIVersion(version string) Option {
	return func(c *setupConfig) {
		c.apiVersion = version
	}
}

// Setup mounts registrars under /api/<version> and returns that group
func Setup(engine *gin.Engine, registrars []RouteRegistrar, opts ...Option) *gin.RouterGroup {
	cfg := setupConfig{apiVersion: "v1"}
	for _, opt := range opts {
		opt(&cfg)
	}
	api := engine.Group("/api/" + cfg.apiVersion)
	for _, r := range registrars {
		r.RegisterRoutes(api)
	}
	return api
}

type route struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// DomainGroup collects the routes of one resource under a path prefix.
// Routes are only attached to gin when RegisterRoutes runs.
type DomainGroup struct {
	prefix     string
	middleware []gin.HandlerFunc
	routes     []route
}

// NewDomainGroup starts an empty group for prefix
func NewDomainGroup(prefix string) *DomainGroup {
	return &DomainGroup{prefix: prefix}
}

// Use adds middleware that runs for every route of the group
func (dg *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	dg.middleware = append(dg.middleware, middleware...)
	return dg
}

// Handle adds a route; path is relative to the group prefix
func (dg *DomainGroup) Handle(method, path string, handlers ...gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, route{method: method, path: path, handlers: handlers})
	return dg
}

func (dg *DomainGroup) GET(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodGet, path, handlers...)
}

func (dg *DomainGroup) POST(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodPost, path, handlers...)
}

func (dg *DomainGroup) PATCH(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodPatch, path, handlers...)
}

// RegisterRoutes implements RouteRegistrar
func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(dg.prefix, dg.middleware...)
	for _, rt := range dg.routes {
		group.Handle(rt.method, rt.path, rt.handlers...)
	}
}
