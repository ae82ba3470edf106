// internal/api/response_helpers.go
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/yydounai1234/AIgo-sub000/internal/errors"
)

// APIResponse 标准API响应格式
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// APIError 标准错误格式
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseHelper 响应助手类
type ResponseHelper struct{}

// NewResponseHelper 创建响应助手
func NewResponseHelper() *ResponseHelper {
	return &ResponseHelper{}
}

// Success 成功响应
func (rh *ResponseHelper) Success(c *gin.Context, data interface{}, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
	}

	if len(message) > 0 {
		response.Message = message[0]
	}

	c.JSON(http.StatusOK, response)
}

// Created 创建成功响应
func (rh *ResponseHelper) Created(c *gin.Context, data interface{}, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
	}

	if len(message) > 0 {
		response.Message = message[0]
	} else {
		response.Message = "资源创建成功"
	}

	c.JSON(http.StatusCreated, response)
}

// Error 错误响应，按错误类型映射HTTP状态码
func (rh *ResponseHelper) Error(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"
	message := "服务器内部错误"

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
		message = appErr.Message

		switch appErr.Type {
		case apperrors.ErrorTypeValidation, apperrors.ErrorTypeState:
			status = http.StatusBadRequest
		case apperrors.ErrorTypeNotFound:
			status = http.StatusNotFound
		case apperrors.ErrorTypeTimeout:
			status = http.StatusGatewayTimeout
		case apperrors.ErrorTypeProvider:
			status = http.StatusBadGateway
		}
	}

	c.JSON(status, &APIResponse{
		Success:   false,
		Error:     &APIError{Code: code, Message: message},
		Timestamp: time.Now(),
	})
}

// BadRequest 参数错误响应
func (rh *ResponseHelper) BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, &APIResponse{
		Success:   false,
		Error:     &APIError{Code: "VALIDATION_ERROR", Message: message},
		Timestamp: time.Now(),
	})
}
