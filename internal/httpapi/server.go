// Package httpapi exposes the cart engine over HTTP for browser and kiosk
// front-ends.
package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/toolbox/internal/catalog"
	"github.com/roach88/toolbox/internal/engine"
	"github.com/roach88/toolbox/internal/ir"
	"github.com/roach88/toolbox/internal/store"
)

// maxBackupBytes bounds an uploaded backup bundle.
const maxBackupBytes = 4 << 20

// eventBuffer is how many cart events a slow stream client may lag behind
// before events are dropped.
const eventBuffer = 16

// Lister is implemented by catalogs that can enumerate their items.
type Lister interface {
	List() []ir.CatalogItem
}

// Server routes HTTP requests to an Engine.
type Server struct {
	engine   *engine.Engine
	catalog  catalog.Lookup
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// NewServer creates a Server. gatherer may be nil to omit /metrics.
func NewServer(e *engine.Engine, lookup catalog.Lookup, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:   e,
		catalog:  lookup,
		gatherer: gatherer,
		logger:   logger.With("component", "httpapi"),
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	cart := router.Group("/cart")
	cart.GET("", s.getCart)
	cart.GET("/events", s.streamEvents)
	cart.DELETE("", s.clearCart)
	cart.POST("/items", s.addItem)
	cart.PATCH("/items/:id", s.updateQuantity)
	cart.DELETE("/items/:id", s.removeItem)
	cart.PUT("/context", s.setContext)
	cart.POST("/checkout", s.checkout)
	cart.POST("/reconcile", s.reconcile)

	router.GET("/history", s.listHistory)
	router.POST("/history/:id/restore", s.restore)

	router.GET("/backup", s.exportBackup)
	router.POST("/backup", s.importBackup)

	router.GET("/catalog", s.listCatalog)

	if s.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
	return router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		// Request contexts end with ctx so open event streams close on shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

type addItemRequest struct {
	ID       string `json:"id" binding:"required"`
	Quantity int    `json:"quantity"`
	Notes    string `json:"notes"`
}

type updateQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type contextRequest struct {
	EmployeeID string `json:"employee_id"`
	Location   string `json:"location"`
}

func (s *Server) getCart(c *gin.Context) {
	state := s.engine.LoadCart(c.Request.Context())
	if state == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, state)
}

// cartEvent is the data of a server-sent cart event.
type cartEvent struct {
	Kind string        `json:"kind"`
	Cart *ir.CartState `json:"cart"`
}

// streamEvents sends the current cart as a "snapshot" event, then one event
// per store change named by its kind ("saved", "refreshed", "expired", ...)
// until the client disconnects.
func (s *Server) streamEvents(c *gin.Context) {
	ctx := c.Request.Context()
	events := make(chan store.Event, eventBuffer)
	cancel := s.engine.Subscribe(func(ev store.Event) {
		select {
		case events <- ev:
		default:
			s.logger.Warn("dropping cart event for slow client", "kind", ev.Kind)
		}
	})
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	snapshot := true
	c.Stream(func(w io.Writer) bool {
		if snapshot {
			snapshot = false
			c.SSEvent("snapshot", cartEvent{Kind: "snapshot", Cart: s.engine.LoadCart(ctx)})
			return true
		}
		select {
		case ev := <-events:
			c.SSEvent(string(ev.Kind), cartEvent{Kind: string(ev.Kind), Cart: ev.State})
			return true
		case <-ctx.Done():
			return false
		}
	})
}

func (s *Server) addItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	ctx := c.Request.Context()
	var item *ir.CatalogItem
	found, err := s.catalog.Get(ctx, req.ID)
	switch {
	case err == nil:
		item = &found
	case !errors.Is(err, catalog.ErrNotFound):
		s.logger.Warn("catalog lookup failed", "item_id", req.ID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": engine.MsgLookupFailed})
		return
	}

	s.writeResult(c, s.engine.AddItem(ctx, item, req.Quantity, req.Notes))
}

func (s *Server) updateQuantity(c *gin.Context) {
	var req updateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}
	s.writeResult(c, s.engine.UpdateQuantity(c.Request.Context(), c.Param("id"), *req.Quantity))
}

func (s *Server) removeItem(c *gin.Context) {
	s.writeResult(c, s.engine.RemoveItem(c.Request.Context(), c.Param("id")))
}

func (s *Server) clearCart(c *gin.Context) {
	s.writeResult(c, s.engine.Clear(c.Request.Context()))
}

func (s *Server) setContext(c *gin.Context) {
	var req contextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}
	s.writeResult(c, s.engine.SetContext(c.Request.Context(), req.EmployeeID, req.Location))
}

func (s *Server) checkout(c *gin.Context) {
	s.writeResult(c, s.engine.CompleteCheckout(c.Request.Context()))
}

func (s *Server) reconcile(c *gin.Context) {
	report := s.engine.Reconcile(c.Request.Context(), s.catalog)
	c.JSON(statusFor(report.Result), report)
}

func (s *Server) listHistory(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.ListHistory(c.Request.Context()))
}

func (s *Server) restore(c *gin.Context) {
	if !s.engine.RestoreFromHistory(c.Request.Context(), c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": engine.MsgHistoryNotFound})
		return
	}
	c.JSON(http.StatusOK, s.engine.LoadCart(c.Request.Context()))
}

func (s *Server) exportBackup(c *gin.Context) {
	data, ok := s.engine.ExportBackup(c.Request.Context())
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": engine.MsgStorageUnavailable})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="cart-backup.json"`)
	c.Data(http.StatusOK, "application/json", []byte(data))
}

func (s *Server) importBackup(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBackupBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read backup: " + err.Error()})
		return
	}
	if !s.engine.ImportBackup(c.Request.Context(), string(data)) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": engine.MsgInvalidBackup})
		return
	}
	c.JSON(http.StatusOK, s.engine.LoadCart(c.Request.Context()))
}

func (s *Server) listCatalog(c *gin.Context) {
	lister, ok := s.catalog.(Lister)
	if !ok {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Catalog cannot be listed"})
		return
	}
	c.JSON(http.StatusOK, lister.List())
}

func (s *Server) writeResult(c *gin.Context, r engine.Result) {
	c.JSON(statusFor(r), r)
}

// statusFor maps a mutation result to an HTTP status. Rejections are 422,
// storage failures 503.
func statusFor(r engine.Result) int {
	switch {
	case r.Success:
		return http.StatusOK
	case r.Error == engine.MsgStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}
