package handlers

import (
	"net/http"

	"cafe-order-service/internal/domain"
	"cafe-order-service/internal/tables"
	"cafe-order-service/pkg/response"
)

func (h *Handler) PublicMenu(w http.ResponseWriter, r *http.Request) {
	products, err := h.Catalog.ListActiveProducts(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, products)
}

func (h *Handler) PublicCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Catalog.ListCategories(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, categories)
}

func (h *Handler) PublicTables(w http.ResponseWriter, r *http.Request) {
	sections, err := h.Tables.FloorPlan(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, tables.PublicFloorPlan(sections))
}

type bindTableRequest struct {
	TableID int64 `json:"tableId"`
}

func (h *Handler) PublicBindTable(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	var body bindTableRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.TableID <= 0 {
		response.Error(w, http.StatusBadRequest, string(domain.ErrValidation), "tableId is required")
		return
	}
	h.bind(w, r, sid, body.TableID)
}

// PublicTableLink binds through a table-scoped link such as a QR code.
func (h *Handler) PublicTableLink(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	tableID, ok := pathID(w, r, "tableId")
	if !ok {
		return
	}
	h.bind(w, r, sid, tableID)
}

func (h *Handler) bind(w http.ResponseWriter, r *http.Request, sid string, tableID int64) {
	binding, err := h.Seats.Bind(r.Context(), sid, tableID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, binding)
}

func (h *Handler) PublicSession(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	binding, err := h.Seats.Resolve(r.Context(), sid)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if binding.Stale {
		h.writeError(w, r, domain.StaleSessionError(*binding.EvictedTableID))
		return
	}
	response.Success(w, binding)
}

func (h *Handler) PublicLeaveTable(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	if err := h.Seats.Leave(r.Context(), sid); err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, map[string]any{"left": true})
}

type cartItemRequest struct {
	ProductID int64 `json:"productId"`
	Delta     int   `json:"delta"`
}

func (h *Handler) PublicCartAdjust(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	var body cartItemRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.ProductID <= 0 {
		response.Error(w, http.StatusBadRequest, string(domain.ErrValidation), "productId is required")
		return
	}
	preview, err := h.Seats.AdjustDraft(r.Context(), sid, body.ProductID, body.Delta)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, preview)
}

func (h *Handler) PublicCart(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	preview, err := h.Seats.Preview(r.Context(), sid)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, preview)
}

func (h *Handler) PublicCartCommit(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	order, err := h.Seats.Commit(r.Context(), sid)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, order)
}

func (h *Handler) PublicRequestHelp(w http.ResponseWriter, r *http.Request) {
	tableID, ok := pathID(w, r, "tableId")
	if !ok {
		return
	}
	table, err := h.Tables.RequestHelp(r.Context(), tableID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, map[string]any{"tableId": table.ID, "helpRequested": table.HelpRequested})
}
