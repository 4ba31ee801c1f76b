// Package response writes HTTP responses. Success bodies go out as
// raw payloads so OpenAI-compatible clients parse them untouched;
// failures carry the errno code and message.
package response

import (
	"github.com/gin-gonic/gin"

	"github.com/mentis-ai/mentis/pkg/errors"
)

// ErrorBody is the failure envelope.
type ErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// OK writes data with status 200.
func OK(c *gin.Context, data any) {
	c.JSON(200, data)
}

// Fail writes an error. Errno values keep their HTTP status and code;
// anything else is reported as internal.
func Fail(c *gin.Context, err error) {
	e := errors.FromError(err)
	c.JSON(e.HTTPStatus(), ErrorBody{Code: e.Code, Message: e.Error()})
}

// FailBind reports a request binding failure as an invalid parameter.
func FailBind(c *gin.Context, err error) {
	Fail(c, errors.ErrInvalidParam.WithMessage("invalid request body: "+err.Error()))
}
