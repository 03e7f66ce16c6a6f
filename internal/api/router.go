package api

import (
	"context"
	"net/http"
	"slices"

	"github.com/aws/aws-lambda-go/events"
)

// Resource templates as configured on the API Gateway.
const (
	ResourceReports        = "/reports"
	ResourceStationReports = "/reports/{station}"
	ResourceReportCounts   = "/reports/{station}/count"
	ResourceLastReports    = "/last_reports"
	ResourceLastReport     = "/last_reports/{station}"
)

// Route binds a resource and method to a named handler.
type Route struct {
	Name     string
	Method   string
	Resource string
	Handler  Handler
}

// Routes returns every endpoint served by h.
func (h *Handlers) Routes() []Route {
	return []Route{
		{Name: "create-report", Method: http.MethodPost, Resource: ResourceReports, Handler: h.CreateReport},
		{Name: "get-last-report", Method: http.MethodGet, Resource: ResourceLastReport, Handler: h.GetLastReport},
		{Name: "list-last-reports", Method: http.MethodGet, Resource: ResourceLastReports, Handler: h.ListLastReports},
		{Name: "list-station-reports", Method: http.MethodGet, Resource: ResourceStationReports, Handler: h.ListStationReports},
		{Name: "report-counts", Method: http.MethodGet, Resource: ResourceReportCounts, Handler: h.ReportCounts},
	}
}

// Lookup returns the handler registered under name.
func (h *Handlers) Lookup(name string) (Handler, bool) {
	for _, route := range h.Routes() {
		if route.Name == name {
			return route.Handler, true
		}
	}
	return nil, false
}

// Router dispatches proxy events by resource and method, answering CORS
// preflight requests on every known resource.
type Router struct {
	handlers *Handlers
	routes   map[string]map[string]Handler
}

// NewRouter builds a Router over the routes of h.
func NewRouter(h *Handlers) *Router {
	r := &Router{
		handlers: h,
		routes:   make(map[string]map[string]Handler),
	}
	for _, route := range h.Routes() {
		if r.routes[route.Resource] == nil {
			r.routes[route.Resource] = make(map[string]Handler)
		}
		r.routes[route.Resource][route.Method] = route.Handler
	}
	return r
}

// Handle implements Handler.
func (r *Router) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	methods, ok := r.routes[req.Resource]
	if !ok {
		return r.handlers.fail(ErrRouteNotFound)
	}

	if req.HTTPMethod == http.MethodOptions {
		return r.handlers.Preflight(), nil
	}

	handler, ok := methods[req.HTTPMethod]
	if !ok {
		return r.handlers.fail(ErrMethodNotAllowed)
	}
	return handler(ctx, req)
}

// InternalError is the response a host sends when a handler returns an error.
func (r *Router) InternalError() events.APIGatewayProxyResponse {
	resp, err := r.handlers.fail(ErrInternal)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Headers: Headers(r.handlers.origin)}
	}
	return resp
}

// Resources returns the resource templates served by the router.
func (r *Router) Resources() []string {
	resources := make([]string, 0, len(r.routes))
	for _, route := range r.handlers.Routes() {
		if !slices.Contains(resources, route.Resource) {
			resources = append(resources, route.Resource)
		}
	}
	return resources
}
