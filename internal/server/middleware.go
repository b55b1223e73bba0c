package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

const userIDContextKey = "fanstage.user_id"

// UserRequired resolves the calling user from the X-User-ID header set by the
// edge proxy after session authentication. Requests without one never reach
// the payment surface.
func (s *Server) UserRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("X-User-ID"))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		userID, err := snowflake.ParseString(raw)
		if err != nil || userID == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Set(userIDContextKey, userID)
		c.Next()
	}
}

func currentUserID(c *gin.Context) snowflake.ID {
	v, ok := c.Get(userIDContextKey)
	if !ok {
		return 0
	}
	id, _ := v.(snowflake.ID)
	return id
}
