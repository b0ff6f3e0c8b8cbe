// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"docvault-go/internal/model"
	"docvault-go/pkg/log"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

func respondOK(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": message,
		"data":    data,
	})
}

// respondError 把领域错误映射为 HTTP 状态码，未知错误一律按 500 处理且不暴露细节。
func respondError(c *gin.Context, op string, err error) {
	var httpErr model.HTTPError
	if errors.As(err, &httpErr) {
		status := httpErr.StatusCode()
		if status >= http.StatusInternalServerError {
			log.Errorf("[%s] 请求失败: %v", op, err)
		}
		c.JSON(status, gin.H{"code": status, "message": httpErr.Error(), "data": nil})
		return
	}
	log.Errorf("[%s] 服务器内部错误: %v", op, err)
	c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "服务器内部错误", "data": nil})
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": message, "data": nil})
}

// principalFromContext 读取 AuthMiddleware 写入的用户视图。
func principalFromContext(c *gin.Context) model.Principal {
	if v, ok := c.Get("principal"); ok {
		if p, ok := v.(model.Principal); ok {
			return p
		}
	}
	return model.Principal{}
}

// optionalQuery 把缺省或空白的查询参数转换为 nil。
func optionalQuery(c *gin.Context, key string) *string {
	v, ok := c.GetQuery(key)
	if !ok || v == "" {
		return nil
	}
	return &v
}
