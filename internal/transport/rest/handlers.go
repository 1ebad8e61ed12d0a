package rest

import (
	"errors"
	"net/http"
	"strings"

	"github.com/elik56a/orderflow/internal/domain"
	appCtx "github.com/elik56a/orderflow/internal/pkg/context"
	"github.com/elik56a/orderflow/internal/obsmetrics"
	"github.com/elik56a/orderflow/internal/orderservice"
	"github.com/elik56a/orderflow/internal/transport/rest/response"
	"github.com/go-chi/render"
	"github.com/shopspring/decimal"
)

type Handler struct {
	orders *orderservice.Service
}

func NewHandler(orders *orderservice.Service) *Handler {
	return &Handler{orders: orders}
}

type createOrderItemRequest struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type createOrderRequest struct {
	CustomerID string                   `json:"customerId"`
	Items      []createOrderItemRequest `json:"items"`
}

// CreateOrder handles POST /api/v1/orders. The idempotency key, if
// supplied, comes from the X-Idempotency-Key header per spec.md §6.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
		return
	}

	if strings.TrimSpace(req.CustomerID) == "" {
		fail(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "customerId is required", nil)
		return
	}
	if len(req.Items) == 0 {
		fail(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "items must not be empty", nil)
		return
	}

	items := make([]domain.Item, len(req.Items))
	for i, it := range req.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			fail(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "productId is required", nil)
			return
		}
		if it.Quantity < 1 {
			fail(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "quantity must be at least 1", nil)
			return
		}
		if it.Price < 0 {
			fail(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "price must not be negative", nil)
			return
		}
		items[i] = domain.Item{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: decimal.NewFromFloat(it.Price)}
	}

	idempotencyKey := r.Header.Get("X-Idempotency-Key")

	order, err := h.orders.CreateOrder(r.Context(), orderservice.CreateOrderInput{
		CustomerID:     req.CustomerID,
		Items:          items,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		handleOrderErr(w, r, err)
		return
	}

	obsmetrics.RecordOrderAccepted()
	response.Data(w, http.StatusCreated, orderView(order))
}

type orderItemView struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type orderViewResponse struct {
	OrderID     string          `json:"orderId"`
	Status      string          `json:"status"`
	CustomerID  string          `json:"customerId"`
	Items       []orderItemView `json:"items"`
	TotalAmount float64         `json:"totalAmount"`
	CreatedAt   string          `json:"createdAt"`
}

// orderView converts the domain.Order's fixed-point fields to float64
// only at this HTTP boundary; every internal computation stays in
// decimal.Decimal.
func orderView(o *domain.Order) orderViewResponse {
	items := make([]orderItemView, len(o.Items))
	for i, it := range o.Items {
		price, _ := it.UnitPrice.Float64()
		items[i] = orderItemView{ProductID: it.ProductID, Quantity: it.Quantity, Price: price}
	}
	total, _ := o.TotalAmount.Float64()
	return orderViewResponse{
		OrderID:     o.ID.String(),
		Status:      domain.DisplayStatus(o.Status),
		CustomerID:  o.CustomerID,
		Items:       items,
		TotalAmount: total,
		CreatedAt:   domain.RFC3339UTC(o.CreatedAt),
	}
}

// insufficientInventoryDetail is the wire shape of one §6/§8 "details"
// array entry: productId plus the requested and available quantities as
// numbers, not a flattened human-readable string.
type insufficientInventoryDetail struct {
	ProductID string `json:"productId"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

func handleOrderErr(w http.ResponseWriter, r *http.Request, err error) {
	var insufficient *orderservice.InsufficientInventoryError
	if errors.As(err, &insufficient) {
		details := make([]insufficientInventoryDetail, len(insufficient.Details))
		for i, d := range insufficient.Details {
			details[i] = insufficientInventoryDetail{
				ProductID: d.ProductID,
				Requested: d.RequestedQuantity,
				Available: d.AvailableQuantity,
			}
		}
		obsmetrics.RecordOrderRejected("INSUFFICIENT_INVENTORY")
		response.FailWithDetails(w, http.StatusConflict, "INSUFFICIENT_INVENTORY", err.Error(), details, appCtx.GetRequestID(r.Context()))
		return
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		obsmetrics.RecordOrderRejected("VALIDATION_ERROR")
		fail(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, domain.ErrInventoryUnavailable):
		obsmetrics.RecordOrderRejected("INVENTORY_SERVICE_UNAVAILABLE")
		fail(w, r, http.StatusServiceUnavailable, "INVENTORY_SERVICE_UNAVAILABLE", "inventory service unavailable", nil)
	case errors.Is(err, domain.ErrOrderNotFound):
		fail(w, r, http.StatusNotFound, "ORDER_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, domain.ErrInvalidStatusTransition):
		fail(w, r, http.StatusConflict, "INVALID_STATUS_TRANSITION", err.Error(), nil)
	case errors.Is(err, domain.ErrDuplicateEvent):
		fail(w, r, http.StatusConflict, "DUPLICATE_EVENT", err.Error(), nil)
	default:
		obsmetrics.RecordOrderRejected("INVENTORY_SERVICE_UNAVAILABLE")
		fail(w, r, http.StatusServiceUnavailable, "INVENTORY_SERVICE_UNAVAILABLE", "internal error", nil)
	}
}

func fail(w http.ResponseWriter, r *http.Request, status int, code, message string, meta map[string]string) {
	reqID := appCtx.GetRequestID(r.Context())
	response.Fail(w, status, code, message, meta, reqID)
}
