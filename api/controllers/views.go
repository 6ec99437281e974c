package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sandaruwanb/lankamart-backend/pkg/db/models"
)

// CartView is the wire shape of the active cart.
type CartView struct {
	ID    uuid.UUID      `json:"id"`
	Items []CartItemView `json:"items"`
	Total string         `json:"total"`
}

type CartItemView struct {
	ID             uuid.UUID `json:"id"`
	ProductID      uuid.UUID `json:"product_id"`
	SupplierItemID uuid.UUID `json:"supplier_item_id"`
	Quantity       int       `json:"quantity"`
	UnitPrice      string    `json:"unit_price"`
}

func newCartView(cart *models.Cart) CartView {
	view := CartView{ID: cart.ID, Items: make([]CartItemView, 0, len(cart.Items))}
	total := decimal.Zero
	for _, item := range cart.Items {
		view.Items = append(view.Items, CartItemView{
			ID:             item.ID,
			ProductID:      item.ProductID,
			SupplierItemID: item.SupplierItemID,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice.StringFixed(2),
		})
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	view.Total = total.StringFixed(2)
	return view
}

// OrderView is the wire shape of an order with its lines and payment.
type OrderView struct {
	ID           uuid.UUID       `json:"id"`
	OrderNumber  string          `json:"order_number"`
	Status       string          `json:"status"`
	TotalAmount  string          `json:"total_amount"`
	ShippingCost string          `json:"shipping_cost"`
	OrderDate    time.Time       `json:"order_date"`
	DeliveryDate *time.Time      `json:"delivery_date,omitempty"`
	Items        []OrderItemView `json:"items"`
	Payment      *PaymentView    `json:"payment,omitempty"`
}

type OrderItemView struct {
	ProductID      uuid.UUID `json:"product_id"`
	SupplierItemID uuid.UUID `json:"supplier_item_id"`
	Quantity       int       `json:"quantity"`
	UnitPrice      string    `json:"unit_price"`
}

type PaymentView struct {
	Method        string  `json:"method"`
	Status        string  `json:"status"`
	Amount        string  `json:"amount"`
	TransactionID *string `json:"transaction_id,omitempty"`
}

func newOrderView(order *models.Order) OrderView {
	view := OrderView{
		ID:           order.ID,
		OrderNumber:  order.OrderNumber,
		Status:       order.Status.String(),
		TotalAmount:  order.TotalAmount.StringFixed(2),
		ShippingCost: order.ShippingCost.StringFixed(2),
		OrderDate:    order.OrderDate,
		DeliveryDate: order.DeliveryDate,
		Items:        make([]OrderItemView, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		view.Items = append(view.Items, OrderItemView{
			ProductID:      item.ProductID,
			SupplierItemID: item.SupplierItemID,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice.StringFixed(2),
		})
	}
	if order.Payment != nil {
		view.Payment = &PaymentView{
			Method:        order.Payment.Method.String(),
			Status:        order.Payment.Status.String(),
			Amount:        order.Payment.Amount.StringFixed(2),
			TransactionID: order.Payment.TransactionID,
		}
	}
	return view
}

func newOrderViews(orders []models.Order) []OrderView {
	views := make([]OrderView, 0, len(orders))
	for i := range orders {
		views = append(views, newOrderView(&orders[i]))
	}
	return views
}

// PurchaseRequestView is the wire shape of a supplier item request.
type PurchaseRequestView struct {
	ID                uuid.UUID  `json:"id"`
	SupplierItemID    uuid.UUID  `json:"supplier_item_id"`
	SupplierID        uuid.UUID  `json:"supplier_id"`
	Quantity          int        `json:"quantity"`
	Urgency           string     `json:"urgency"`
	Status            string     `json:"status"`
	Notes             *string    `json:"notes,omitempty"`
	RejectionReason   *string    `json:"rejection_reason,omitempty"`
	SupplierQuote     *string    `json:"supplier_quote,omitempty"`
	NotesFromSupplier *string    `json:"notes_from_supplier,omitempty"`
	DecidedAt         *time.Time `json:"decided_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func newPurchaseRequestView(request *models.SupplierItemRequest) PurchaseRequestView {
	view := PurchaseRequestView{
		ID:                request.ID,
		SupplierItemID:    request.SupplierItemID,
		SupplierID:        request.SupplierID,
		Quantity:          request.Quantity,
		Urgency:           request.Urgency.String(),
		Status:            request.Status.String(),
		Notes:             request.Notes,
		RejectionReason:   request.RejectionReason,
		NotesFromSupplier: request.NotesFromSupplier,
		DecidedAt:         request.DecidedAt,
		CreatedAt:         request.CreatedAt,
	}
	if request.SupplierQuote != nil {
		quote := request.SupplierQuote.StringFixed(2)
		view.SupplierQuote = &quote
	}
	return view
}

func newPurchaseRequestViews(requests []models.SupplierItemRequest) []PurchaseRequestView {
	views := make([]PurchaseRequestView, 0, len(requests))
	for i := range requests {
		views = append(views, newPurchaseRequestView(&requests[i]))
	}
	return views
}
