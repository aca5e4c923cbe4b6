package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope of every API reply. Code mirrors an HTTP status;
// the transport status is always 200 except for authentication failures.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    200,
		Message: "success",
		Data:    data,
	})
}

func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    200,
		Message: message,
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 400, message)
}

func Unauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, Response{
		Code:    401,
		Message: message,
	})
}

func NotFound(c *gin.Context, message string) {
	Error(c, 404, message)
}

// Conflict reports that the page is busy recording or playing back.
func Conflict(c *gin.Context, message string) {
	Error(c, 409, message)
}

func InternalServerError(c *gin.Context, message string) {
	Error(c, 500, message)
}
