package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/pos-register/internal/core/cart"
	"github.com/rl1809/pos-register/internal/core/domain"
	"github.com/rl1809/pos-register/internal/core/receipt"
	"github.com/rl1809/pos-register/internal/core/service"
	"github.com/rl1809/pos-register/internal/port"
)

// Dependencies bundles what the HTTP layer needs. Catalog is what the cart
// sells from; it normally overlays cached stock.
type Dependencies struct {
	Checkout  *service.CheckoutService
	Products  *service.CatalogService
	Dashboard *service.DashboardService
	Catalog   port.Catalog
	Sales     port.SaleRepository
	Formatter *receipt.Formatter
	CartCfg   cart.Config
	Logger    *zap.Logger
}

// HTTPHandler serves one register: a single shared cart guarded by mu.
type HTTPHandler struct {
	deps Dependencies

	mu   sync.Mutex
	cart *cart.Cart
}

func NewHTTPHandler(deps Dependencies) *HTTPHandler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &HTTPHandler{deps: deps, cart: cart.New(deps.CartCfg)}
}

func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.HealthCheck)

	api := r.Group("/api")
	{
		api.GET("/categories", h.ListCategories)
		api.POST("/categories", h.AddCategory)

		api.GET("/products", h.ListProducts)
		api.POST("/products", h.AddProduct)
		api.PATCH("/products/:id", h.UpdateProduct)
		api.DELETE("/products/:id", h.DeleteProduct)

		api.GET("/cart", h.GetCart)
		api.DELETE("/cart", h.ResetCart)
		api.POST("/cart/items", h.AddCartItem)
		api.PUT("/cart/items/:index", h.SetCartQuantity)
		api.DELETE("/cart/items/:index", h.RemoveCartItem)
		api.GET("/cart/export", h.ExportCart)

		api.POST("/checkout", h.Checkout)

		// "last" may be used as :id for the most recent sale.
		api.GET("/sales/:id", h.GetSale)
		api.GET("/sales/:id/receipt", h.GetReceipt)
		api.GET("/sales/:id/export", h.ExportSale)

		api.GET("/dashboard", h.Dashboard)
	}
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) writeError(c *gin.Context, op string, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrSaleNotFound),
		errors.Is(err, domain.ErrCategoryNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrOutOfStock):
		status, message = http.StatusGone, "out of stock"
	case errors.Is(err, service.ErrDuplicateRequest):
		status, message = http.StatusConflict, "duplicate request"
	case errors.Is(err, service.ErrSaleNotQueued):
		status, message = http.StatusServiceUnavailable, "register busy, retry checkout"
	case errors.Is(err, domain.ErrInvalidIndex),
		errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrInvalidProduct),
		errors.Is(err, domain.ErrInvalidCategory),
		errors.Is(err, domain.ErrInvalidSale),
		errors.Is(err, receipt.ErrUnknownLayout),
		errors.Is(err, receipt.ErrUnknownFormat):
		status, message = http.StatusBadRequest, err.Error()
	default:
		h.deps.Logger.Error(op+" failed", zap.Error(err))
	}

	c.JSON(status, gin.H{"error": message})
}

func (h *HTTPHandler) ListCategories(c *gin.Context) {
	categories, err := h.deps.Products.ListCategories(c.Request.Context())
	if err != nil {
		h.writeError(c, "ListCategories", err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

type addCategoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (h *HTTPHandler) AddCategory(c *gin.Context) {
	var req addCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	category, err := h.deps.Products.AddCategory(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		h.writeError(c, "AddCategory", err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

func (h *HTTPHandler) ListProducts(c *gin.Context) {
	products, err := h.deps.Products.ListProducts(c.Request.Context(), c.Query("category"))
	if err != nil {
		h.writeError(c, "ListProducts", err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *HTTPHandler) AddProduct(c *gin.Context) {
	var req service.ProductInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	product, err := h.deps.Products.AddProduct(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, "AddProduct", err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *HTTPHandler) UpdateProduct(c *gin.Context) {
	var req service.ProductUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	product, err := h.deps.Products.UpdateProduct(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.writeError(c, "UpdateProduct", err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *HTTPHandler) DeleteProduct(c *gin.Context) {
	if err := h.deps.Products.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, "DeleteProduct", err)
		return
	}
	c.Status(http.StatusNoContent)
}

type cartLine struct {
	Index     int             `json:"index"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Total     decimal.Decimal `json:"total"`
}

type cartView struct {
	Items    []cartLine        `json:"items"`
	Subtotal decimal.Decimal   `json:"subtotal"`
	Tax      decimal.Decimal   `json:"tax"`
	Total    decimal.Decimal   `json:"total"`
	TaxRate  decimal.Decimal   `json:"tax_rate"`
	Display  map[string]string `json:"display"`
}

// cartViewLocked must be called with mu held.
func (h *HTTPHandler) cartViewLocked() cartView {
	lines := h.cart.Lines()
	totals := h.cart.ComputeTotals()

	view := cartView{
		Items:    make([]cartLine, 0, len(lines)),
		Subtotal: totals.Subtotal,
		Tax:      totals.Tax,
		Total:    totals.Total,
		TaxRate:  h.cart.TaxRate(),
		Display: map[string]string{
			"subtotal": h.deps.Formatter.FormatCurrency(totals.Subtotal),
			"tax":      h.deps.Formatter.FormatCurrency(totals.Tax),
			"total":    h.deps.Formatter.FormatCurrency(totals.Total),
		},
	}
	for i, l := range lines {
		view.Items = append(view.Items, cartLine{
			Index:     i,
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			Total:     l.Total(),
		})
	}
	return view
}

func (h *HTTPHandler) GetCart(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.JSON(http.StatusOK, h.cartViewLocked())
}

func (h *HTTPHandler) ResetCart(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cart.Reset()
	c.JSON(http.StatusOK, h.cartViewLocked())
}

type addItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
}

func (h *HTTPHandler) AddCartItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.cart.AddItem(c.Request.Context(), req.ProductID, h.deps.Catalog); err != nil {
		h.writeError(c, "AddCartItem", err)
		return
	}
	c.JSON(http.StatusOK, h.cartViewLocked())
}

func parseIndex(c *gin.Context) (int, error) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidIndex, c.Param("index"))
	}
	return index, nil
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

func (h *HTTPHandler) SetCartQuantity(c *gin.Context) {
	index, err := parseIndex(c)
	if err != nil {
		h.writeError(c, "SetCartQuantity", err)
		return
	}
	var req setQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.cart.SetQuantity(index, *req.Quantity); err != nil {
		h.writeError(c, "SetCartQuantity", err)
		return
	}
	c.JSON(http.StatusOK, h.cartViewLocked())
}

func (h *HTTPHandler) RemoveCartItem(c *gin.Context) {
	index, err := parseIndex(c)
	if err != nil {
		h.writeError(c, "RemoveCartItem", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.cart.RemoveItem(index); err != nil {
		h.writeError(c, "RemoveCartItem", err)
		return
	}
	c.JSON(http.StatusOK, h.cartViewLocked())
}

func (h *HTTPHandler) ExportCart(c *gin.Context) {
	h.mu.Lock()
	lines := h.cart.Lines()
	h.mu.Unlock()

	h.export(c, lines, "cart")
}

type checkoutRequest struct {
	RequestID string `json:"request_id"`
}

func (h *HTTPHandler) Checkout(c *gin.Context) {
	var req checkoutRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	if req.RequestID == "" {
		req.RequestID = c.GetHeader("Idempotency-Key")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	sale, err := h.deps.Checkout.Checkout(c.Request.Context(), req.RequestID, h.cart)
	if err != nil {
		h.writeError(c, "Checkout", err)
		return
	}
	c.JSON(http.StatusCreated, sale)
}

func (h *HTTPHandler) loadSale(ctx context.Context, id string) (domain.Sale, error) {
	var sale *domain.Sale
	var err error
	if id == "last" {
		sale, err = h.deps.Checkout.LastSale(ctx)
	} else {
		sale, err = h.deps.Sales.GetSale(ctx, id)
	}
	if err != nil {
		return domain.Sale{}, err
	}
	if sale == nil {
		return domain.Sale{}, fmt.Errorf("%w: %s", domain.ErrSaleNotFound, id)
	}
	return *sale, nil
}

func (h *HTTPHandler) GetSale(c *gin.Context) {
	sale, err := h.loadSale(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, "GetSale", err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

// GetReceipt renders a sale as HTML (default) or plain text via ?format=text.
func (h *HTTPHandler) GetReceipt(c *gin.Context) {
	layout, err := receipt.ParseLayout(c.Query("layout"))
	if err != nil {
		h.writeError(c, "GetReceipt", err)
		return
	}
	sale, err := h.loadSale(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, "GetReceipt", err)
		return
	}

	switch c.DefaultQuery("format", "html") {
	case "html":
		out, err := h.deps.Formatter.RenderReceipt(sale, layout)
		if err != nil {
			h.writeError(c, "GetReceipt", err)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(out))
	case "text":
		out, err := h.deps.Formatter.RenderText(sale, layout)
		if err != nil {
			h.writeError(c, "GetReceipt", err)
			return
		}
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(out))
	default:
		h.writeError(c, "GetReceipt", fmt.Errorf("%w: %q", receipt.ErrUnknownFormat, c.Query("format")))
	}
}

func (h *HTTPHandler) ExportSale(c *gin.Context) {
	sale, err := h.loadSale(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, "ExportSale", err)
		return
	}
	h.export(c, sale.Items, sale.ReceiptNumber)
}

func (h *HTTPHandler) export(c *gin.Context, items []domain.LineItem, baseName string) {
	format, err := receipt.ParseFormat(c.DefaultQuery("format", "csv"))
	if err != nil {
		h.writeError(c, "Export", err)
		return
	}
	doc, err := receipt.Export(format, items, baseName)
	if err != nil {
		h.writeError(c, "Export", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
	c.Data(http.StatusOK, doc.ContentType, doc.Body)
}

func (h *HTTPHandler) Dashboard(c *gin.Context) {
	summary, err := h.deps.Dashboard.Summary(c.Request.Context())
	if err != nil {
		h.writeError(c, "Dashboard", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"summary": summary,
		"display": gin.H{
			"sales_total":     h.deps.Formatter.FormatCurrency(summary.SalesTotal),
			"inventory_value": h.deps.Formatter.FormatCurrency(summary.InventoryValue),
		},
	})
}
