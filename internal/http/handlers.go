package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"stolik/internal/auth"
	"stolik/internal/domain"
	"stolik/internal/repository"
	"stolik/internal/service"
)

type Server struct {
	engine    *gin.Engine
	inventory *service.InventoryService
	orders    *service.OrderService
	tokens    auth.TokenStore
	log       *zap.Logger
}

func NewServer(inventory *service.InventoryService, orders *service.OrderService, tokens auth.TokenStore, log *zap.Logger) *Server {
	r := gin.New()
	r.Use(requestLogger(log), gin.Recovery())
	s := &Server{engine: r, inventory: inventory, orders: orders, tokens: tokens, log: log}
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	// Swagger UI
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	s.engine.GET("/health", s.health)

	v1 := s.engine.Group("/api/v1")
	v1.Use(s.resolveRole())
	{
		v1.POST("/auth/session", s.createSession)
		v1.DELETE("/auth/session", s.deleteSession)

		items := v1.Group("/items")
		items.POST("", s.requireAdmin(), s.upsertItem)
		items.GET("", s.listItems)

		orders := v1.Group("/orders")
		orders.POST("", s.placeOrder)
		orders.GET("", s.listOrders)
		orders.DELETE("", s.requireAdmin(), s.fulfillSeat)
	}
}

// requestLogger замена gin.Logger на zap
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()))
	}
}

const roleKey = "stolik.role"

// resolveRole разбирает X-Auth-Token и кладёт роль в контекст запроса.
// Отсутствие токена — не ошибка: запрос идёт дальше гостем без сессии.
func (s *Server) resolveRole() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("X-Auth-Token")
		if token == "" {
			c.Next()
			return
		}
		role, err := s.tokens.Resolve(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrTokenNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session lookup failed"})
			return
		}
		c.Set(roleKey, role)
		c.Next()
	}
}

// requireAdmin серверная проверка способности перед мутациями —
// клиентскому флагу роли здесь не доверяем
func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get(roleKey)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if v.(auth.Role) != auth.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}
		c.Next()
	}
}

// Session handlers
type createSessionReq struct {
	Role string `json:"role"`
}

// @Summary Issue session token
// @Tags auth
// @Accept json
// @Produce json
// @Param input body createSessionReq true "Role"
// @Success 201 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /auth/session [post]
func (s *Server) createSession(c *gin.Context) {
	var req createSessionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	role := auth.Role(req.Role)
	if !auth.ValidRole(role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}
	token, err := s.tokens.Issue(c.Request.Context(), role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token, "role": string(role)})
}

// @Summary Revoke session token
// @Tags auth
// @Success 204
// @Router /auth/session [delete]
func (s *Server) deleteSession(c *gin.Context) {
	token := c.GetHeader("X-Auth-Token")
	if token != "" {
		if err := s.tokens.Revoke(c.Request.Context(), token); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
			return
		}
	}
	c.Status(http.StatusNoContent)
}

// Item handlers
type variantReq struct {
	Size  string  `json:"size"`
	Price float64 `json:"price"`
	Stock int64   `json:"stock"`
}

type upsertItemReq struct {
	Name     string       `json:"name"`
	Category string       `json:"category"`
	Variants []variantReq `json:"variants"`
}

// @Summary Add or update menu item
// @Description Merges variants into an existing item matched by case-insensitive name
// @Tags items
// @Accept json
// @Produce json
// @Param X-Auth-Token header string true "Session token (admin)"
// @Param input body upsertItemReq true "Item"
// @Success 200 {object} map[string]any
// @Success 201 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /items [post]
func (s *Server) upsertItem(c *gin.Context) {
	var req upsertItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	variants := make([]domain.Variant, 0, len(req.Variants))
	for _, v := range req.Variants {
		variants = append(variants, domain.Variant{Size: v.Size, Price: v.Price, Stock: v.Stock})
	}
	it, created, err := s.inventory.UpsertItem(c.Request.Context(), req.Name, domain.Category(req.Category), variants)
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	if created {
		c.JSON(http.StatusCreated, gin.H{"message": "Item added successfully", "item": it})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item updated successfully", "item": it})
}

// @Summary List menu items
// @Tags items
// @Produce json
// @Param q query string false "Name contains"
// @Param category query string false "Category filter"
// @Success 200 {object} map[string]any
// @Router /items [get]
func (s *Server) listItems(c *gin.Context) {
	f := repository.ItemFilter{
		NameSubstring: c.Query("q"),
		Category:      domain.Category(c.Query("category")),
	}
	list, err := s.inventory.ListItems(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Error fetching items"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": list})
}

// Order handlers
type orderLineReq struct {
	Item     string `json:"item"`
	Name     string `json:"name"`
	Size     string `json:"size"`
	Quantity int64  `json:"quantity"`
}

type placeOrderReq struct {
	CustomerName string         `json:"customerName"`
	SeatNumber   string         `json:"seatNumber"`
	Items        []orderLineReq `json:"items"`
}

// @Summary Place order
// @Description All-or-nothing: any failing line leaves every stock untouched. Lines merge into the open order of the same customer and seat.
// @Tags orders
// @Accept json
// @Produce json
// @Param input body placeOrderReq true "Order"
// @Success 200 {object} map[string]any
// @Success 201 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /orders [post]
func (s *Server) placeOrder(c *gin.Context) {
	var req placeOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	lines := make([]domain.OrderLine, 0, len(req.Items))
	for _, l := range req.Items {
		lines = append(lines, domain.OrderLine{ItemID: l.Item, Name: l.Name, Size: l.Size, Quantity: l.Quantity})
	}
	o, merged, err := s.orders.PlaceOrder(c.Request.Context(), req.CustomerName, req.SeatNumber, lines)
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	if merged {
		c.JSON(http.StatusOK, gin.H{"message": "Order updated successfully", "order": o})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Order placed successfully", "order": o})
}

// @Summary List orders
// @Tags orders
// @Produce json
// @Success 200 {object} map[string]any
// @Router /orders [get]
func (s *Server) listOrders(c *gin.Context) {
	list, err := s.orders.ListOrders(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Error fetching orders"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orders": list})
}

// @Summary Fulfill seat
// @Description Deletes every order of the seat; delivered items are not restocked
// @Tags orders
// @Produce json
// @Param X-Auth-Token header string true "Session token (admin)"
// @Param seatNumber query string true "Seat number"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]string
// @Router /orders [delete]
func (s *Server) fulfillSeat(c *gin.Context) {
	seat := c.Query("seatNumber")
	removed, err := s.orders.FulfillSeat(c.Request.Context(), seat)
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Seat fulfilled", "removed": removed})
}

// @Summary Liveness check
// @Tags health
// @Success 200 {object} map[string]string
// @Router /health [get]
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInsufficientStock):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
