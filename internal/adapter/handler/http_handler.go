package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ldtran/home-inventory/internal/core/domain"
	"github.com/ldtran/home-inventory/internal/core/service"
)

// HTTPHandler is the caller boundary: it collects record identity, the
// previously displayed version, and new field values, and reports each
// outcome with a human-readable message. Rendering is the client's job.
type HTTPHandler struct {
	inventory         *service.InventoryService
	logger            *log.Logger
	lowStockThreshold int
}

type AddRecordRequest struct {
	Image    string `json:"image"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Notes    string `json:"notes"`
}

type UpdateQuantityRequest struct {
	Quantity        int `json:"quantity"`
	ExpectedVersion int `json:"expected_version"`
}

type UpdateNotesRequest struct {
	Notes           string `json:"notes"`
	ExpectedVersion int    `json:"expected_version"`
}

type AdjustQuantityRequest struct {
	Delta           int `json:"delta"`
	ExpectedVersion int `json:"expected_version"`
}

type OutcomeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ListResponse struct {
	Success bool              `json:"success"`
	Records domain.Collection `json:"records"`
}

func NewHTTPHandler(inventory *service.InventoryService, logger *log.Logger, lowStockThreshold int) *HTTPHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &HTTPHandler{
		inventory:         inventory,
		logger:            logger,
		lowStockThreshold: lowStockThreshold,
	}
}

// Register installs the routes on the given mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/records", h.recordsHandler)
	mux.HandleFunc("/api/records/", h.recordHandler)
	mux.HandleFunc("/health", h.HealthCheck)
}

// recordsHandler routes requests without a name: GET for list, POST for add.
func (h *HTTPHandler) recordsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleList(w, r)
	case http.MethodPost:
		h.handleAdd(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

// recordHandler routes requests of the form /api/records/{name}[/action].
func (h *HTTPHandler) recordHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/records/")
	namePart, action, _ := strings.Cut(rest, "/")
	name, err := url.PathUnescape(namePart)
	if err != nil || name == "" {
		writeJSON(w, http.StatusBadRequest, OutcomeResponse{Success: false, Message: "missing record name"})
		return
	}

	switch {
	case r.Method == http.MethodPut && action == "quantity":
		h.handleUpdateQuantity(w, r, name)
	case r.Method == http.MethodPut && action == "notes":
		h.handleUpdateNotes(w, r, name)
	case r.Method == http.MethodPost && action == "adjust":
		h.handleAdjust(w, r, name)
	case r.Method == http.MethodDelete && action == "":
		h.handleDelete(w, r, name)
	default:
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	}
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	var (
		records domain.Collection
		err     error
	)
	if r.URL.Query().Get("low_stock") == "1" {
		records, err = h.inventory.LowStock(r.Context(), h.lowStockThreshold)
	} else {
		records, err = h.inventory.List(r.Context())
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	if records == nil {
		records = domain.Collection{}
	}
	writeJSON(w, http.StatusOK, ListResponse{Success: true, Records: records})
}

func (h *HTTPHandler) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req AddRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, OutcomeResponse{Success: false, Message: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusBadRequest, OutcomeResponse{Success: false, Message: "name is required"})
		return
	}

	if err := h.inventory.Add(r.Context(), req.Image, req.Name, req.Quantity, req.Notes); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, OutcomeResponse{Success: true, Message: "record added"})
}

func (h *HTTPHandler) handleUpdateQuantity(w http.ResponseWriter, r *http.Request, name string) {
	var req UpdateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, OutcomeResponse{Success: false, Message: "invalid request body"})
		return
	}
	if req.ExpectedVersion < 1 {
		writeJSON(w, http.StatusBadRequest, OutcomeResponse{Success: false, Message: "expected_version is required"})
		return
	}

	if err := h.inventory.UpdateQuantity(r.Context(), name, req.Quantity, req.ExpectedVersion); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OutcomeResponse{Success: true, Message: "quantity updated"})
}

func (h *HTTPHandler) handleUpdateNotes(w http.ResponseWriter, r *http.Request, name string) {
	var req UpdateNotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, OutcomeResponse{Success: false, Message: "invalid request body"})
		return
	}
	if req.ExpectedVersion < 1 {
		writeJSON(w, http.StatusBadRequest, OutcomeResponse{Success: false, Message: "expected_version is required"})
		return
	}

	if err := h.inventory.UpdateNotes(r.Context(), name, req.Notes, req.ExpectedVersion); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OutcomeResponse{Success: true, Message: "notes updated"})
}

func (h *HTTPHandler) handleAdjust(w http.ResponseWriter, r *http.Request, name string) {
	var req AdjustQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, OutcomeResponse{Success: false, Message: "invalid request body"})
		return
	}
	if req.ExpectedVersion < 1 {
		writeJSON(w, http.StatusBadRequest, OutcomeResponse{Success: false, Message: "expected_version is required"})
		return
	}

	if err := h.inventory.AdjustQuantity(r.Context(), name, req.Delta, req.ExpectedVersion); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OutcomeResponse{Success: true, Message: "quantity adjusted"})
}

func (h *HTTPHandler) handleDelete(w http.ResponseWriter, r *http.Request, name string) {
	expectedVersion := parseVersionParam(r.URL.Query().Get("expected_version"))
	if expectedVersion < 1 {
		writeJSON(w, http.StatusBadRequest, OutcomeResponse{Success: false, Message: "expected_version is required"})
		return
	}

	if err := h.inventory.Delete(r.Context(), name, expectedVersion); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OutcomeResponse{Success: true, Message: "record deleted"})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeError maps the error taxonomy onto status codes and the messages
// the client shows verbatim. Conflicts and missing records are expected,
// recoverable-by-retry outcomes, not server faults.
func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, domain.ErrVersionConflict):
		status = http.StatusConflict
		message = "record was changed by another user, refresh and retry"
	case errors.Is(err, domain.ErrRecordNotFound):
		status = http.StatusNotFound
		message = "record not found, refresh and retry"
	case errors.Is(err, domain.ErrDuplicateName):
		status = http.StatusConflict
		message = "a record with that name already exists"
	case errors.Is(err, domain.ErrStoreRejected):
		status = http.StatusBadGateway
		message = "backing store rejected the write"
	case errors.Is(err, domain.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
		message = "backing store is unavailable, try again later"
	default:
		h.logger.Printf("unexpected error: %v", err)
	}

	writeJSON(w, status, OutcomeResponse{Success: false, Message: message})
}

func parseVersionParam(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
