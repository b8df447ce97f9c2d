package handlers

import (
	"net/http"

	"cafe-order-service/internal/store"
	"cafe-order-service/internal/tables"
	"cafe-order-service/pkg/response"
)

func (h *Handler) StaffTablesList(w http.ResponseWriter, r *http.Request) {
	all, err := h.Tables.ListTables(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, all)
}

type createTableRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Capacity int    `json:"capacity"`
}

func (h *Handler) StaffTableCreate(w http.ResponseWriter, r *http.Request) {
	var body createTableRequest
	if !decodeBody(w, r, &body) {
		return
	}
	table, err := h.Tables.CreateTable(r.Context(), store.NewTable{
		Name:     body.Name,
		Location: body.Location,
		Capacity: body.Capacity,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, table)
}

func (h *Handler) StaffTableDelete(w http.ResponseWriter, r *http.Request) {
	tableID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Tables.DeleteTable(r.Context(), tableID); err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, map[string]any{"deleted": true, "tableId": tableID})
}

func (h *Handler) StaffTableStatus(w http.ResponseWriter, r *http.Request) {
	tableID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	view, err := h.Tables.Status(r.Context(), tableID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, view)
}

func (h *Handler) StaffTableStart(w http.ResponseWriter, r *http.Request) {
	tableID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	agg, err := h.Tables.StartOrder(r.Context(), tableID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, tables.NewTableView(agg))
}

func (h *Handler) StaffTableClose(w http.ResponseWriter, r *http.Request) {
	tableID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	res, err := h.Tables.CloseOrder(r.Context(), tableID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, res)
}

func (h *Handler) StaffTableReserve(w http.ResponseWriter, r *http.Request) {
	tableID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	table, err := h.Tables.Reserve(r.Context(), tableID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, table)
}

func (h *Handler) StaffTableCancelReservation(w http.ResponseWriter, r *http.Request) {
	tableID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	table, err := h.Tables.CancelReservation(r.Context(), tableID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, table)
}

func (h *Handler) StaffTableResolveHelp(w http.ResponseWriter, r *http.Request) {
	tableID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	table, err := h.Tables.ResolveHelp(r.Context(), tableID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, table)
}

func (h *Handler) StaffHelpRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.Tables.ListHelpRequests(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, requests)
}
