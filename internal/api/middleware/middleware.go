package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"indiflow/pkg/auth"
	"indiflow/pkg/response"
)

const SubjectKey = "subject"

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// AuthMiddleware requires a valid bearer token signed with secret. The
// websocket route may pass the token as ?token= since browsers cannot set
// headers on the upgrade request.
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if header := c.GetHeader("Authorization"); header != "" {
			token = strings.TrimPrefix(header, "Bearer ")
			if token == header {
				response.Unauthorized(c, "authorization header must use the Bearer scheme")
				c.Abort()
				return
			}
		}
		if token == "" {
			response.Unauthorized(c, "missing token")
			c.Abort()
			return
		}
		claims, err := auth.ParseToken(token, secret)
		if err != nil {
			response.Unauthorized(c, err.Error())
			c.Abort()
			return
		}
		c.Set(SubjectKey, claims.Subject)
		c.Next()
	}
}
