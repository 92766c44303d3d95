// Package api provides the operator and storefront HTTP endpoints.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ashureev/chatshop/internal/domain"
	"github.com/ashureev/chatshop/internal/orders"
	"github.com/go-chi/chi/v5"
)

const (
	defaultOrderLimit = 50
	maxOrderLimit     = 500
)

// OrderLister reads back recorded orders.
type OrderLister interface {
	Recent(ctx context.Context, limit int) ([]orders.Record, error)
	Count(ctx context.Context) (int64, error)
}

// ProductLister exposes the catalog to the embedded shop.
type ProductLister interface {
	Products() []domain.Product
}

// Handler serves the HTTP API.
type Handler struct {
	orders     OrderLister
	catalog    ProductLister
	adminToken string
}

// NewHandler creates a Handler. An empty adminToken disables the order endpoints.
func NewHandler(orders OrderLister, catalog ProductLister, adminToken string) *Handler {
	return &Handler{orders: orders, catalog: catalog, adminToken: adminToken}
}

// Routes mounts the API under r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/catalog", h.ListProducts)
	r.Group(func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Get("/orders", h.ListOrders)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.adminToken == "" {
			Error(w, http.StatusNotFound, "not found")
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) != 1 {
			Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ordersResponse struct {
	Orders []orders.Record `json:"orders"`
	Total  int64           `json:"total"`
}

// ListOrders returns the most recent orders, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit := defaultOrderLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxOrderLimit)
	}

	recs, err := h.orders.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to list orders", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	total, err := h.orders.Count(r.Context())
	if err != nil {
		slog.Error("Failed to count orders", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	if recs == nil {
		recs = []orders.Record{}
	}
	JSON(w, http.StatusOK, ordersResponse{Orders: recs, Total: total})
}

type productResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Price       float64  `json:"price"`
	Formatted   string   `json:"price_formatted"`
	Image       string   `json:"image,omitempty"`
	Description string   `json:"description,omitempty"`
	Variants    []string `json:"variants,omitempty"`
}

// ListProducts returns the catalog in the shape the embedded shop submits back.
func (h *Handler) ListProducts(w http.ResponseWriter, _ *http.Request) {
	products := h.catalog.Products()
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, productResponse{
			ID:          p.ID,
			Name:        p.Name,
			Price:       p.Price.InexactFloat64(),
			Formatted:   domain.FormatPrice(p.Price),
			Image:       p.Image,
			Description: p.Description,
			Variants:    p.Variants,
		})
	}
	JSON(w, http.StatusOK, out)
}
