package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"cafe-order-service/internal/domain"
	"cafe-order-service/internal/receipt"
	"cafe-order-service/pkg/response"
)

func (h *Handler) StaffOrdersActive(w http.ResponseWriter, r *http.Request) {
	search := strings.TrimSpace(r.URL.Query().Get("search"))
	orders, err := h.Ledger.ListActive(r.Context(), search)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, orders)
}

func (h *Handler) StaffOrdersHistory(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Ledger.ListPaid(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, orders)
}

func (h *Handler) StaffOrderDetail(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	order, err := h.Ledger.GetOrder(r.Context(), orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, order)
}

func (h *Handler) StaffOrderReceipt(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	order, err := h.Ledger.GetOrder(r.Context(), orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	body, err := receipt.Render(order, h.Config.CafeName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=\"%s\"", receipt.Filename(orderID)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type addLineItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

func (h *Handler) StaffOrderAddItem(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body addLineItemRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.ProductID <= 0 {
		response.Error(w, http.StatusBadRequest, string(domain.ErrValidation), "productId is required")
		return
	}
	order, err := h.Ledger.AddLineItem(r.Context(), orderID, body.ProductID, body.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, order)
}

type adjustLineItemRequest struct {
	Delta int `json:"delta"`
}

func (h *Handler) StaffLineItemAdjust(w http.ResponseWriter, r *http.Request) {
	lineID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body adjustLineItemRequest
	if !decodeBody(w, r, &body) {
		return
	}
	order, err := h.Ledger.AdjustLineItemQuantity(r.Context(), lineID, body.Delta)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, order)
}

func (h *Handler) StaffLineItemDelete(w http.ResponseWriter, r *http.Request) {
	lineID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	order, err := h.Ledger.RemoveLineItem(r.Context(), lineID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, order)
}

func (h *Handler) StaffOrderPay(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	res, err := h.Ledger.MarkPaid(r.Context(), orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, res)
}

func (h *Handler) StaffProductsActive(w http.ResponseWriter, r *http.Request) {
	products, err := h.Catalog.ListActiveProducts(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, products)
}
