package order

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const principalKey = "principal"

type orderHandler struct {
	log          *logrus.Entry
	orderService OrderService
	auth         AuthClient
}

func NewHandler(orderService OrderService, log *logrus.Entry, auth AuthClient) *orderHandler {
	return &orderHandler{
		log:          log,
		orderService: orderService,
		auth:         auth,
	}
}

func (h *orderHandler) Register(router *gin.Engine) {
	api := router.Group("/api/v1", h.authMiddleware())

	api.GET("/basket", h.getBasket)
	api.POST("/basket", h.addItems)
	api.PUT("/basket", h.updateItems)
	api.DELETE("/basket", h.deleteItems)

	api.POST("/order", h.placeOrder)
	api.GET("/order", h.getOrders)

	partner := api.Group("/partner", h.requireRole(RoleShop))
	partner.GET("/orders", h.getPartnerOrders)
	partner.POST("/state", h.setShopState)

	api.GET("/shops", h.getActiveShops)

	contact := api.Group("/user/contact")
	contact.POST("", h.createContact)
	contact.GET("", h.getContacts)
	contact.PATCH("/:id", h.updateContact)
	contact.DELETE("/:id", h.deleteContact)
}

func (h *orderHandler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": false, "error": "authorization required"})
			return
		}

		status, principal, err := h.auth.Auth(token)
		if err != nil {
			h.log.Errorf("auth middleware: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"status": false, "error": "auth service unavailable"})
			return
		}
		if status != http.StatusOK {
			c.AbortWithStatusJSON(status, gin.H{"status": false, "error": "unauthorized"})
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

func (h *orderHandler) requireRole(role Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if principalFrom(c).Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"status": false, "error": "only for shops"})
			return
		}
		c.Next()
	}
}

func principalFrom(c *gin.Context) Principal {
	p, _ := c.Get(principalKey)
	principal, _ := p.(Principal)
	return principal
}

func (h *orderHandler) renderError(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.Code, gin.H{"status": false, "error": appErr.Message})
		return
	}

	h.log.Errorf("unexpected error: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"status": false, "error": "internal error"})
}

func (h *orderHandler) getBasket(c *gin.Context) {
	basket, err := h.orderService.GetBasket(principalFrom(c).UserID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	baskets := []Order{}
	if basket != nil {
		baskets = append(baskets, *basket)
	}
	c.JSON(http.StatusOK, gin.H{"status": true, "basket": baskets})
}

type itemsRequest struct {
	Items string `json:"items" binding:"required"`
}

func (h *orderHandler) addItems(c *gin.Context) {
	var req itemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "error": "items is required"})
		return
	}

	created, err := h.orderService.AddItems(principalFrom(c).UserID, req.Items)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": true, "created": created})
}

func (h *orderHandler) updateItems(c *gin.Context) {
	var req itemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "error": "items is required"})
		return
	}

	updated, err := h.orderService.UpdateQuantities(principalFrom(c).UserID, req.Items)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "updated": updated})
}

func (h *orderHandler) deleteItems(c *gin.Context) {
	var req itemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "error": "items is required"})
		return
	}

	deleted, basketEmptied, err := h.orderService.RemoveItems(principalFrom(c).UserID, req.Items)
	if err != nil {
		h.renderError(c, err)
		return
	}

	// 204 would make gin drop the body, losing the count
	body := gin.H{"status": true, "deleted": deleted}
	if basketEmptied {
		body["message"] = "your basket is empty now"
	}
	c.JSON(http.StatusOK, body)
}

type placeOrderRequest struct {
	OrderID uint `json:"order_id" binding:"required"`
	Contact uint `json:"contact" binding:"required"`
}

func (h *orderHandler) placeOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "error": "order_id and contact are required"})
		return
	}

	if err := h.orderService.PlaceOrder(principalFrom(c).UserID, req.OrderID, req.Contact); err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true})
}

func (h *orderHandler) getOrders(c *gin.Context) {
	orders, err := h.orderService.GetOrders(principalFrom(c).UserID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "orders": orders})
}

func (h *orderHandler) getPartnerOrders(c *gin.Context) {
	orders, err := h.orderService.GetPartnerOrders(principalFrom(c).UserID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "orders": orders})
}

type shopStateRequest struct {
	State string `json:"state" binding:"required"`
}

func (h *orderHandler) setShopState(c *gin.Context) {
	var req shopStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "error": "state is required"})
		return
	}

	state, err := h.orderService.SetShopState(principalFrom(c).UserID, req.State)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "state": state})
}

func (h *orderHandler) getActiveShops(c *gin.Context) {
	shops, err := h.orderService.GetActiveShops()
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "shops": shops})
}

func (h *orderHandler) createContact(c *gin.Context) {
	var contact Contact
	if err := c.ShouldBindJSON(&contact); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "error": "incorrect contact body"})
		return
	}

	id, err := h.orderService.CreateContact(principalFrom(c).UserID, &contact)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": true, "id": id})
}

func (h *orderHandler) getContacts(c *gin.Context) {
	contacts, err := h.orderService.GetContacts(principalFrom(c).UserID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "contacts": contacts})
}

func (h *orderHandler) updateContact(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	var patch Contact
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "error": "incorrect contact body"})
		return
	}

	if err := h.orderService.UpdateContact(principalFrom(c).UserID, id, &patch); err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true})
}

func (h *orderHandler) deleteContact(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	if err := h.orderService.DeleteContact(principalFrom(c).UserID, id); err != nil {
		h.renderError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func idParam(c *gin.Context) (uint, bool) {
	var id uint
	if _, err := fmt.Sscanf(c.Param("id"), "%d", &id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "error": "incorrect id"})
		return 0, false
	}
	return id, true
}
