package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
	"dispatch/internal/service"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	orderService      *service.OrderService
	assignmentService *service.AssignmentService
	orderRepo         repository.OrderRepository
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(
	orderService *service.OrderService,
	assignmentService *service.AssignmentService,
	orderRepo repository.OrderRepository,
) *OrderHandler {
	return &OrderHandler{
		orderService:      orderService,
		assignmentService: assignmentService,
		orderRepo:         orderRepo,
	}
}

// OrderItemRequest is one line item in a create request.
type OrderItemRequest struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// CreateOrderRequest is the HTTP request body for creating an order.
type CreateOrderRequest struct {
	CustomerID string             `json:"customer_id"`
	BranchID   string             `json:"branch_id"`
	OrderType  string             `json:"order_type,omitempty"` // DELIVERY, PICKUP, DINE_IN
	Items      []OrderItemRequest `json:"items"`
}

// AssignRequest is the HTTP request body for assigning a courier.
type AssignRequest struct {
	CourierID string `json:"courier_id"`
	AdminID   string `json:"admin_id"`
}

// TransitionRequest is the HTTP request body for a status change.
type TransitionRequest struct {
	Status    string   `json:"status"`
	ActorRole string   `json:"actor_role"`
	ActorID   string   `json:"actor_id"`
	Reason    string   `json:"reason,omitempty"`
	Lat       *float64 `json:"lat,omitempty"`
	Lng       *float64 `json:"lng,omitempty"`
}

// CancelOrderRequest is the HTTP request body for cancelling an order.
type CancelOrderRequest struct {
	CancelledBy string `json:"cancelled_by"` // actor role
	ActorID     string `json:"actor_id"`
	Reason      string `json:"reason,omitempty"`
}

// OrderResponse is the HTTP representation of an order.
type OrderResponse struct {
	ID           string             `json:"id"`
	CustomerID   string             `json:"customer_id"`
	BranchID     string             `json:"branch_id"`
	Items        []OrderItemRequest `json:"items"`
	TotalAmount  float64            `json:"total_amount"`
	OrderType    string             `json:"order_type"`
	Status       string             `json:"status"`
	CourierID    string             `json:"courier_id,omitempty"`
	AssignedAt   string             `json:"assigned_at,omitempty"`
	CourierLat   *float64           `json:"courier_lat,omitempty"`
	CourierLng   *float64           `json:"courier_lng,omitempty"`
	CourierLocAt string             `json:"courier_location_at,omitempty"`
	DeliveredAt  string             `json:"delivered_at,omitempty"`
	CancelledAt  string             `json:"cancelled_at,omitempty"`
	CancelReason string             `json:"cancel_reason,omitempty"`
	NextStatuses []string           `json:"next_statuses"`
	CreatedAt    string             `json:"created_at"`
}

func toOrderResponse(o *domain.Order) OrderResponse {
	items := make([]OrderItemRequest, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemRequest{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}

	next := domain.ValidNextStatuses(o.Status)
	nextStatuses := make([]string, 0, len(next))
	for _, s := range next {
		nextStatuses = append(nextStatuses, string(s))
	}

	response := OrderResponse{
		ID:           o.ID,
		CustomerID:   o.CustomerID,
		BranchID:     o.BranchID,
		Items:        items,
		TotalAmount:  o.TotalAmount,
		OrderType:    string(o.Type),
		Status:       string(o.Status),
		CourierID:    o.CourierID,
		CancelReason: o.CancelReason,
		NextStatuses: nextStatuses,
		CreatedAt:    o.CreatedAt.Format(time.RFC3339),
	}

	if !o.AssignedAt.IsZero() {
		response.AssignedAt = o.AssignedAt.Format(time.RFC3339)
	}
	if !o.CourierLocation.RecordedAt.IsZero() {
		lat, lng := o.CourierLocation.Lat, o.CourierLocation.Lng
		response.CourierLat = &lat
		response.CourierLng = &lng
		response.CourierLocAt = o.CourierLocation.RecordedAt.Format(time.RFC3339)
	}
	if !o.DeliveredAt.IsZero() {
		response.DeliveredAt = o.DeliveredAt.Format(time.RFC3339)
	}
	if !o.CancelledAt.IsZero() {
		response.CancelledAt = o.CancelledAt.Format(time.RFC3339)
	}

	return response
}

// CreateOrder handles POST /v1/orders
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), service.CreateOrderRequest{
		CustomerID: req.CustomerID,
		BranchID:   req.BranchID,
		Type:       domain.OrderType(req.OrderType),
		Items:      items,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toOrderResponse(order))
}

// GetOrder handles GET /v1/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toOrderResponse(order))
}

// GetAll handles GET /v1/orders
func (h *OrderHandler) GetAll(c *gin.Context) {
	orders, err := h.orderRepo.GetAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]OrderResponse, 0, len(orders))
	for _, order := range orders {
		response = append(response, toOrderResponse(order))
	}

	c.JSON(http.StatusOK, response)
}

// Assign handles POST /v1/orders/:id/assign
func (h *OrderHandler) Assign(c *gin.Context) {
	orderID := c.Param("id")

	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	order, err := h.assignmentService.Assign(c.Request.Context(), service.AssignRequest{
		OrderID:   orderID,
		CourierID: req.CourierID,
		AdminID:   req.AdminID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toOrderResponse(order))
}

// Transition handles POST /v1/orders/:id/status
func (h *OrderHandler) Transition(c *gin.Context) {
	orderID := c.Param("id")

	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	transition := service.TransitionRequest{
		OrderID:   orderID,
		Target:    domain.OrderStatus(req.Status),
		ActorRole: domain.ActorRole(req.ActorRole),
		ActorID:   req.ActorID,
		Reason:    req.Reason,
	}
	if req.Lat != nil && req.Lng != nil {
		transition.Location = &domain.GeoPoint{Lat: *req.Lat, Lng: *req.Lng}
	}

	order, err := h.orderService.Transition(c.Request.Context(), transition)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toOrderResponse(order))
}

// Cancel handles POST /v1/orders/:id/cancel
func (h *OrderHandler) Cancel(c *gin.Context) {
	orderID := c.Param("id")

	var req CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	cancelledBy := domain.ActorRole(req.CancelledBy)
	if cancelledBy == "" {
		cancelledBy = domain.RoleAdmin
	}

	order, err := h.orderService.CancelOrder(c.Request.Context(), service.CancelOrderRequest{
		OrderID:     orderID,
		CancelledBy: cancelledBy,
		ActorID:     req.ActorID,
		Reason:      req.Reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toOrderResponse(order))
}
