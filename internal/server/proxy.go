package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

// handleResource serves one API Gateway resource template through the router.
func (s *Server) handleResource(resource string) http.HandlerFunc {
	segments := strings.Split(resource, "/")

	return func(w http.ResponseWriter, r *http.Request) {
		req, err := s.toProxyRequest(w, r, resource)
		if err != nil {
			s.logger.Warn("failed to read request", "error", err, "path", r.URL.Path)
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}

		// Handlers decode path parameters themselves, so they get the
		// escaped segment rather than the decoded PathValue.
		escaped := strings.Split(r.URL.EscapedPath(), "/")
		for i, segment := range segments {
			name, ok := strings.CutPrefix(segment, "{")
			if !ok || i >= len(escaped) {
				continue
			}
			req.PathParameters[strings.TrimSuffix(name, "}")] = escaped[i]
		}

		resp, err := s.router.Handle(r.Context(), req)
		if err != nil {
			s.logger.Error("handler failed", "error", err, "resource", resource, "method", r.Method)
			resp = s.router.InternalError()
		}

		writeProxyResponse(w, resp)
	}
}

func (s *Server) toProxyRequest(w http.ResponseWriter, r *http.Request, resource string) (events.APIGatewayProxyRequest, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return events.APIGatewayProxyRequest{}, fmt.Errorf("failed to read body: %w", err)
	}

	req := events.APIGatewayProxyRequest{
		Resource:                        resource,
		Path:                            r.URL.Path,
		HTTPMethod:                      r.Method,
		Headers:                         make(map[string]string, len(r.Header)),
		MultiValueHeaders:               map[string][]string(r.Header.Clone()),
		QueryStringParameters:           make(map[string]string),
		MultiValueQueryStringParameters: map[string][]string(r.URL.Query()),
		PathParameters:                  make(map[string]string),
		Body:                            string(body),
		RequestContext: events.APIGatewayProxyRequestContext{
			Stage:            s.config.Stage,
			ResourcePath:     resource,
			HTTPMethod:       r.Method,
			Path:             r.URL.Path,
			RequestTimeEpoch: time.Now().UnixMilli(),
			RequestID:        strconv.FormatInt(time.Now().UnixNano(), 36),
			Identity:         events.APIGatewayRequestIdentity{SourceIP: r.RemoteAddr, UserAgent: r.UserAgent()},
		},
	}

	for name, values := range r.Header {
		if len(values) > 0 {
			req.Headers[name] = values[len(values)-1]
		}
	}
	for name, values := range req.MultiValueQueryStringParameters {
		if len(values) > 0 {
			req.QueryStringParameters[name] = values[len(values)-1]
		}
	}

	return req, nil
}

func writeProxyResponse(w http.ResponseWriter, resp events.APIGatewayProxyResponse) {
	for name, value := range resp.Headers {
		w.Header().Set(name, value)
	}
	for name, values := range resp.MultiValueHeaders {
		for _, value := range values {
			w.Header().Add(name, value)
		}
	}

	w.WriteHeader(resp.StatusCode)
	_, _ = io.WriteString(w, resp.Body)
}
