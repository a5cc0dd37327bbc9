// Package apperr 定义了各模块共享的错误分类，以及它们到HTTP状态码的映射。
package apperr

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

var (
	// ErrNotFound 表示用户名或记录不存在
	ErrNotFound = errors.New("不存在")
	// ErrConflict 表示重复创建
	ErrConflict = errors.New("已存在")
	// ErrQuotaExceeded 表示提名次数已用完
	ErrQuotaExceeded = errors.New("提名次数已用完")
	// ErrDuplicateMembership 表示已经提名或举报过该用户
	ErrDuplicateMembership = errors.New("重复操作")
	// ErrSelfNomination 表示用户试图提名自己
	ErrSelfNomination = errors.New("不能提名自己")
	// ErrUnauthorized 表示缺少有效的会话
	ErrUnauthorized = errors.New("未登录或会话已失效")
	// ErrInvalidInput 表示请求参数不合法
	ErrInvalidInput = errors.New("请求参数不合法")
	// ErrRateLimited 表示请求过于频繁
	ErrRateLimited = errors.New("请求过于频繁，请稍后再试")
)

// HTTPStatus 返回与err对应的HTTP状态码。未分类的错误一律视为500。
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrQuotaExceeded), errors.Is(err, ErrSelfNomination):
		return http.StatusForbidden
	case errors.Is(err, ErrDuplicateMembership):
		return http.StatusOK
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Respond 将err写成 {"error": ...} 响应。
// 500错误不向客户端暴露内部细节。
func Respond(c *gin.Context, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": "服务器内部错误"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
