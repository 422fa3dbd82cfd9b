package http

import (
	nethttp "net/http"

	"github.com/labstack/echo/v4"
)

// Error is the machine-readable half of an error response. Code is a
// stable identifier clients can branch on; Message is for humans.
type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error   Error  `json:"error"`
	TraceID string `json:"trace_id"`
}

type Response struct {
	Data interface{} `json:"data,omitempty"`
}

// JSON wraps successful payloads in the shared data envelope.
func JSON(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, Response{Data: data})
}

// Accepted acknowledges work handed off to the job bus.
func Accepted(c echo.Context, data interface{}) error {
	return JSON(c, nethttp.StatusAccepted, data)
}

func ErrorJSON(c echo.Context, status int, code, message, traceID string, details interface{}) error {
	return c.JSON(status, ErrorResponse{Error: Error{Code: code, Message: message, Details: details}, TraceID: traceID})
}
