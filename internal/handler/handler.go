// Package handler содержит HTTP-обработчики API сервиса предзаказа.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/preorder-system/internal/catalog"
	"github.com/mmeshcher/preorder-system/internal/export"
	"github.com/mmeshcher/preorder-system/internal/filestore"
	"github.com/mmeshcher/preorder-system/internal/model"
	"github.com/mmeshcher/preorder-system/internal/repository"
	"github.com/mmeshcher/preorder-system/internal/service"
)

// максимальный размер multipart-формы вместе с изображением слипа
const maxOrderFormSize = 16 << 20

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	CreateOrder(ctx context.Context, in service.CreateOrderInput) (int64, error)
	ListOrders(ctx context.Context) ([]model.Order, error)
	MarkDelivered(ctx context.Context, orderID int64) error
	SlipImage(ctx context.Context, orderID int64) ([]byte, error)
	ExportOrders(ctx context.Context) ([]byte, error)
}

// Handler реализует HTTP-обработчики API сервиса предзаказа.
type Handler struct {
	service Service
	catalog *catalog.Catalog
	logger  *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, c *catalog.Catalog, logger *zap.Logger) *Handler {
	return &Handler{
		service: s,
		catalog: c,
		logger:  logger,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Error: msg})
}

type wireItem struct {
	Design   string `json:"design"`
	Size     string `json:"size"`
	Quantity int    `json:"quantity"`
}

type createOrderResponse struct {
	ID int64 `json:"id"`
}

// CreateOrder принимает multipart-форму заказа, проверяет её форму на
// транспортном уровне и передаёт сервису. Бизнес-отклонения возвращаются
// покупателю в поле error дословно.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxOrderFormSize); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	isPickup, err := strconv.ParseBool(r.FormValue("isPickup"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid isPickup value")
		return
	}

	totalPrice, err := strconv.ParseInt(r.FormValue("totalPrice"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid totalPrice value")
		return
	}

	var items []wireItem
	if err := json.Unmarshal([]byte(r.FormValue("items")), &items); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid items value")
		return
	}

	file, header, err := r.FormFile("slipImage")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "payment slip image is required")
		return
	}
	defer file.Close()

	slip, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read slip image")
		return
	}

	in := service.CreateOrderInput{
		Name:          r.FormValue("name"),
		Address:       r.FormValue("address"),
		IsPickup:      isPickup,
		DeclaredTotal: totalPrice,
		SlipImage:     slip,
		SlipFilename:  header.Filename,
	}
	for _, it := range items {
		in.Items = append(in.Items, service.InputItem{
			Design:   it.Design,
			Size:     it.Size,
			Quantity: it.Quantity,
		})
	}

	id, err := h.service.CreateOrder(r.Context(), in)
	if err != nil {
		if service.IsRejection(err) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("create order error", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to process order")
		return
	}

	h.writeJSON(w, http.StatusCreated, createOrderResponse{ID: id})
}

type orderItemResponse struct {
	Design       string `json:"design"`
	Size         string `json:"size"`
	Quantity     int    `json:"quantity"`
	PricePerUnit int64  `json:"price_per_unit"`
}

type orderResponse struct {
	ID         int64               `json:"id"`
	Name       string              `json:"name"`
	Address    string              `json:"address"`
	IsPickup   bool                `json:"is_pickup"`
	TotalPrice int64               `json:"total_price"`
	SlipImage  string              `json:"slip_image"`
	Status     string              `json:"status"`
	CreatedAt  string              `json:"created_at"`
	Items      []orderItemResponse `json:"items"`
}

// GetOrders возвращает все заказы с позициями, новые сначала.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(r.Context())
	if err != nil {
		h.logger.Error("list orders error", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		or := orderResponse{
			ID:         o.ID,
			Name:       o.Name,
			Address:    o.Address,
			IsPickup:   o.IsPickup,
			TotalPrice: o.TotalPrice,
			SlipImage:  fmt.Sprintf("/api/orders/%d/slip", o.ID),
			Status:     string(o.Status),
			CreatedAt:  o.CreatedAt.Format(time.RFC3339),
		}
		for _, it := range o.Items {
			or.Items = append(or.Items, orderItemResponse{
				Design:       it.Design,
				Size:         string(it.Size),
				Quantity:     it.Quantity,
				PricePerUnit: it.PricePerUnit,
			})
		}
		resp = append(resp, or)
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus переводит заказ в статус delivered. Любой другой целевой статус
// отклоняется: обратного перехода в этой модели не существует.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Status != string(model.OrderStatusDelivered) {
		h.writeError(w, http.StatusBadRequest, "unsupported target status")
		return
	}

	if err := h.service.MarkDelivered(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			h.writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.Error("update status error", zap.Error(err), zap.Int64("orderID", id))
		h.writeError(w, http.StatusInternalServerError, "failed to update status")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"status": string(model.OrderStatusDelivered),
	})
}

// GetSlip возвращает изображение слипа заказа.
func (h *Handler) GetSlip(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	data, err := h.service.SlipImage(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) || errors.Is(err, filestore.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "slip not found")
			return
		}
		h.logger.Error("get slip error", zap.Error(err), zap.Int64("orderID", id))
		h.writeError(w, http.StatusInternalServerError, "failed to load slip")
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Error("write slip error", zap.Error(err))
	}
}

// ExportOrders отдаёт XLSX-выгрузку всех заказов.
func (h *Handler) ExportOrders(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.ExportOrders(r.Context())
	if err != nil {
		h.logger.Error("export orders error", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to export orders")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+export.Filename(time.Now()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Error("write export error", zap.Error(err))
	}
}

type designResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Price       int64    `json:"price"`
	Description string   `json:"description"`
	Images      []string `json:"images"`
}

// GetDesigns возвращает каталог моделей футболок.
func (h *Handler) GetDesigns(w http.ResponseWriter, r *http.Request) {
	designs := h.catalog.Designs()

	resp := make([]designResponse, 0, len(designs))
	for _, d := range designs {
		resp = append(resp, designResponse{
			ID:          d.ID,
			Name:        d.Name,
			Price:       d.UnitPrice,
			Description: d.Description,
			Images:      d.Images,
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func orderIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
