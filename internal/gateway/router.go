// Package gateway implements the front-door request router: a static table
// of path-prefix bindings, each forwarded to its backend with the failure
// of one backend kept isolated from the others.
package gateway

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/spec-kit/commerce-platform/internal/config"
	"github.com/spec-kit/commerce-platform/internal/observability"
	apperrors "github.com/spec-kit/commerce-platform/pkg/util"
)

// Router dispatches inbound requests by longest matching path prefix. The
// binding table is built once and never mutated; request handling shares no
// other state between bindings.
type Router struct {
	bindings []config.RouteBinding
	client   *fasthttp.Client
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewRouter builds the router from the configured bindings.
func NewRouter(cfg config.GatewayConfig, logger *zap.Logger, metrics *observability.Metrics) *Router {
	bindings := make([]config.RouteBinding, len(cfg.Routes))
	copy(bindings, cfg.Routes)
	sort.SliceStable(bindings, func(i, j int) bool {
		return len(bindings[i].Prefix) > len(bindings[j].Prefix)
	})

	return &Router{
		bindings: bindings,
		client: &fasthttp.Client{
			ReadTimeout:  cfg.Timeout(),
			WriteTimeout: cfg.Timeout(),
		},
		timeout: cfg.Timeout(),
		logger:  logger,
		metrics: metrics,
	}
}

// Match returns the binding for the longest configured prefix of path and
// the remainder of the path to forward.
func (r *Router) Match(path string) (config.RouteBinding, string, bool) {
	for _, binding := range r.bindings {
		if path == binding.Prefix {
			return binding, "/", true
		}
		if strings.HasPrefix(path, binding.Prefix+"/") {
			return binding, path[len(binding.Prefix):], true
		}
	}
	return config.RouteBinding{}, "", false
}

// Handle forwards the request to the bound backend, copying method, headers
// and body unchanged, and translates transport failures into 502.
func (r *Router) Handle(c *fiber.Ctx) error {
	binding, remainder, ok := r.Match(c.Path())
	if !ok {
		return apperrors.NewNotFound("route", map[string]any{"path": c.Path()})
	}

	target := binding.Target + remainder
	if query := c.Request().URI().QueryString(); len(query) > 0 {
		target += "?" + string(query)
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	c.Request().CopyTo(req)
	req.SetRequestURI(target)

	if err := r.client.DoTimeout(req, resp, r.timeout); err != nil {
		r.logger.Error("backend unreachable",
			zap.String("backend", binding.Name),
			zap.String("target", target),
			zap.Error(err))
		if r.metrics != nil {
			r.metrics.RecordUpstreamFailure(binding.Name)
		}
		return apperrors.NewUpstreamUnavailable(fmt.Sprintf("%s service unavailable", binding.Name))
	}

	resp.CopyTo(c.Response())
	return nil
}
