package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	orderdomain "github.com/smallbiznis/bookpay/internal/order/domain"
)

type materializeOrderRequest struct {
	SessionID string `json:"sessionId"`
}

func (s *Server) MaterializeOrder(c *gin.Context) {
	var req materializeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	order, err := s.orderSvc.MaterializeFromSession(c.Request.Context(), req.SessionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id": order.OrderID,
		"order":    order,
	})
}

func (s *Server) GetOrderByID(c *gin.Context) {
	order, err := s.orderSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

type updateDeliveryRequest struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) UpdateOrderDelivery(c *gin.Context) {
	var req updateDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	order, err := s.orderSvc.UpdateDelivery(c.Request.Context(), orderdomain.UpdateDeliveryRequest{
		OrderID: c.Param("id"),
		Status:  orderdomain.DeliveryStatus(req.Status),
		Message: req.Message,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}
