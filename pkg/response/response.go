package response

import (
	"net/http"

	"SOSRelay/pkg/errors"
	"SOSRelay/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应格式
type Response struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Retryable bool        `json:"retryable,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    errors.CodeSuccess,
		Message: message,
		Data:    data,
	})
}

// Created 资源创建成功
func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    errors.CodeSuccess,
		Message: message,
		Data:    data,
	})
}

// Fail 请求参数错误
func Fail(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusBadRequest, Response{
		Code:    errors.CodeValidation,
		Message: message,
		Data:    data,
	})
}

// Error 按错误码映射 HTTP 状态；未分类的错误按 500 处理且不暴露细节
func Error(c *gin.Context, err error) {
	code := errors.GetCode(err)
	message := errors.GetMessage(err)
	if code == 0 {
		code = errors.CodeUnknown
		message = errors.CodeMessage(code)
	}
	if code >= errors.CodeUnknown {
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Int("code", code),
			zap.Error(err))
	}
	if code == errors.CodeInfrastructure {
		message = errors.CodeMessage(code)
	}
	c.AbortWithStatusJSON(errors.HTTPStatus(code), Response{
		Code:      code,
		Message:   message,
		Retryable: errors.IsRetryable(err),
	})
}
