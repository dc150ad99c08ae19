package util

import "github.com/gin-gonic/gin"

func SuccessResponse(data interface{}) gin.H {
	return gin.H{
		"success": true,
		"data":    data,
	}
}

func MessageResponse(message string, data interface{}) gin.H {
	return gin.H{
		"success": true,
		"message": message,
		"data":    data,
	}
}

/*
* Unknown errors are reported as InternalError so the cause never reaches the client
* Details are only attached when present
 */
func FailedResponse(err error) gin.H {
	appErr := AsAppError(err)
	body := gin.H{
		"success": false,
		"code":    appErr.Kind,
		"message": appErr.Message,
	}
	if appErr.Kind == KindInternal && appErr.Message == "" {
		body["message"] = INTERNAL_ERROR
	}
	if len(appErr.Details) > 0 {
		body["details"] = appErr.Details
	}
	return body
}
