package util

import (
	"errors"
	"journey_backend/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, Response{
		Code:    http.StatusAccepted,
		Message: "accepted",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

// ErrorWithData 校验类错误需要把明细（缺失字段、被拒文件）带回去
func ErrorWithData(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "Resource not found")
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	InternalServerError(c)
}

// StatusFor 将业务错误映射为 HTTP 状态码，未知错误返回 500
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrAssessmentNotFound),
		errors.Is(err, ErrQuestionNotFound),
		errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrPermissionDenied),
		errors.Is(err, ErrFormReadOnly),
		errors.Is(err, ErrNotOwnerRole):
		return http.StatusForbidden
	case errors.Is(err, ErrJobNotRetryable),
		errors.Is(err, ErrJobNotRunning),
		errors.Is(err, ErrJobNotCompleted),
		errors.Is(err, ErrStaleRun),
		errors.Is(err, ErrAlreadyApproved),
		errors.Is(err, ErrNotApproved),
		errors.Is(err, ErrFormSubmitted),
		errors.Is(err, ErrSlotBusy):
		return http.StatusConflict
	case errors.Is(err, ErrRequiredUnanswered),
		errors.Is(err, ErrQuestionNotInAssessment),
		errors.Is(err, ErrEmptyAnswer),
		errors.Is(err, ErrInvalidAnswer),
		errors.Is(err, ErrUnknownSlot),
		errors.Is(err, ErrFileTooLarge),
		errors.Is(err, ErrUnsupportedFileType),
		errors.Is(err, ErrJobErrorRequired):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// HandleError 业务错误按映射返回，未知错误记录日志后返回 500
func HandleError(c *gin.Context, err error) {
	code := StatusFor(err)
	if code == http.StatusInternalServerError {
		LogInternalError(c, err)
		return
	}
	var d detailed
	if errors.As(err, &d) {
		ErrorWithData(c, code, err.Error(), d.Detail())
		return
	}
	Error(c, code, err.Error())
}

// detailed 错误可以附带返回给调用方的明细
type detailed interface {
	Detail() interface{}
}
