package middleware

import (
	"journey_backend/internal/config"
	"journey_backend/internal/model"
	"journey_backend/internal/util"
	"journey_backend/pkg/logger"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ConfigMiddleware 把当前配置放入上下文，热更新后新请求读取新配置
func ConfigMiddleware(current func() *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("config", current())
		c.Next()
	}
}

func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}

		if tokenString == "" {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		cfg := c.MustGet("config").(*config.Config)
		claims, err := util.ParseJWT(tokenString, cfg.JWT.Secret)
		if err != nil {
			logger.Log.Debug("JWT parse failed", zap.Error(err))
			util.Unauthorized(c)
			c.Abort()
			return
		}
		if !claims.Role.Valid() {
			util.Forbidden(c)
			c.Abort()
			return
		}

		c.Set("user", claims)
		c.Next()
	}
}

func RoleMiddleware(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := util.GetUserFromContext(c)
		if user == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		hasRole := false
		for _, role := range roles {
			if user.Role == role {
				hasRole = true
				break
			}
		}

		if !hasRole {
			util.Forbidden(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

// AssessmentScope 客户令牌只能访问自己的评估，管理员不受限
func AssessmentScope(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := util.GetUserFromContext(c)
		if user == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}
		if !user.Role.Privileged() && user.AssessmentID != c.Param(param) {
			util.Forbidden(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RunnerTokenMiddleware 外部生成执行者回调使用 X-Runner-Token，与配置中的 bcrypt 哈希比对
func RunnerTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg := c.MustGet("config").(*config.Config)
		token := c.GetHeader("X-Runner-Token")
		if cfg.Runner.TokenHash == "" || token == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(cfg.Runner.TokenHash), []byte(token)); err != nil {
			logger.Log.Warn("Rejected runner callback", zap.String("ip", c.ClientIP()))
			util.Unauthorized(c)
			c.Abort()
			return
		}
		c.Next()
	}
}
