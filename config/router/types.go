package router

import (
	"github.com/gin-gonic/gin"
)

type RequestContext = gin.Context

type MiddlewareFunc = gin.HandlerFunc

// ServiceResult is what every handler returns; the router serializes it into
// the uniform response envelope. Top-level fields beyond success/message/data
// (the health payload, the check endpoint's "exists") travel in Fields.
type ServiceResult struct {
	StatusCode int
	Data       any
	Message    string
	Fields     map[string]any
}

type RateLimitResponse struct {
	Limit      int    `json:"limit"`
	Window     string `json:"window"`
	RetryAfter string `json:"retry_after"`
}

type HandlerFunction func(*RequestContext) *ServiceResult

type RESTController struct {
	name         string
	mountPoint   string
	handlerCount int
	prepare      func(*RouterService, *RESTController)
}

// ToJSON renders the envelope: {success, message?, data?, ...Fields}.
func (result *ServiceResult) ToJSON() gin.H {
	h := gin.H{
		"success": result.IsSuccess(),
	}
	if result.Message != "" {
		h["message"] = result.Message
	}
	if result.Data != nil {
		h["data"] = result.Data
	}
	for k, v := range result.Fields {
		h[k] = v
	}
	return h
}

func (result *ServiceResult) IsSuccess() bool {
	return result.StatusCode >= 200 && result.StatusCode < 300
}

func (result *ServiceResult) IsError() bool {
	return result.StatusCode >= 400
}
