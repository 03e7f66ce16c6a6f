package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
)

// AnyOrigin is the CORS origin of non-production deployments.
const AnyOrigin = "*"

const allowedMethods = "OPTIONS,POST,GET"

// Headers returns the headers carried by every response.
func Headers(origin string) map[string]string {
	return map[string]string{
		"Content-Type":                 "application/json",
		"Access-Control-Allow-Headers": "Content-Type",
		"Access-Control-Allow-Origin":  origin,
		"Access-Control-Allow-Methods": allowedMethods,
	}
}

func (h *Handlers) respond(status int, body any) (events.APIGatewayProxyResponse, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return events.APIGatewayProxyResponse{}, fmt.Errorf("failed to encode response: %w", err)
	}

	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    Headers(h.origin),
		Body:       string(raw),
	}, nil
}

func (h *Handlers) fail(e *Error) (events.APIGatewayProxyResponse, error) {
	return h.respond(e.Status, ErrorResponse{Message: e.Message})
}

// Preflight answers an OPTIONS request with the CORS headers only.
func (h *Handlers) Preflight() events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    Headers(h.origin),
	}
}
