// Package handler содержит HTTP обработчики checkout-саги (§6).
package handler

import (
	"time"

	"github.com/gin-gonic/gin"
)

// envelope — единый конверт ответа: { data, message, status, timestamp }
// (§6: "Every response is wrapped in { data, message, status, timestamp }").
type envelope struct {
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message"`
	Status    string      `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
}

func respond(c *gin.Context, httpStatus int, data interface{}, message string) {
	c.JSON(httpStatus, envelope{
		Data:      data,
		Message:   message,
		Status:    "success",
		Timestamp: time.Now(),
	})
}
