package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/imerr"
)

// Ok 统一成功响应
func Ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    data,
	})
}

// Fail 统一失败响应：业务错误按分类映射状态码并暴露对外文案，
// 未分类错误一律 500 且不泄露内部细节
func Fail(c *gin.Context, err error) {
	status := imerr.HTTPStatus(err)
	msg := "服务器内部错误"
	var e *imerr.Error
	if errors.As(err, &e) {
		msg = e.Msg
	}
	c.JSON(status, gin.H{"error": msg})
}

// Unauthorized 认证缺失响应
func Unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

// BadRequest 请求体解析失败响应
func BadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
