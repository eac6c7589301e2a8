// Package posapitest runs an in-process fake of the POS backend for tests.
package posapitest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"pos_console/internal/posapi"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const (
	Username = "admin"
	Password = "admin123"
)

// Recorded is one request as the backend saw it.
type Recorded struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	ContentType   string
	RequestID     string
	Body          []byte
}

// Upload is the decoded multipart form of a product create or update.
type Upload struct {
	Product          posapi.Product
	ImageName        string
	ImageContentType string
}

type Backend struct {
	mu       sync.Mutex
	token    string
	products []posapi.Product
	tables   []posapi.Table
	users    []posapi.User
	sales    []posapi.Sale
	stats    posapi.DashboardStats
	requests []Recorded
	uploads  []Upload
	failures map[string]int
	nextID   int64

	server *httptest.Server
}

func New(t testing.TB) *Backend {
	t.Helper()
	gin.SetMode(gin.TestMode)

	b := &Backend{
		token:    "test-token",
		failures: map[string]int{},
		nextID:   100,
	}
	b.server = httptest.NewServer(b.router())
	t.Cleanup(b.server.Close)
	return b
}

func (b *Backend) URL() string {
	return b.server.URL
}

func (b *Backend) Token() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.token
}

// RotateToken makes every previously issued token invalid.
func (b *Backend) RotateToken(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.token = token
}

func (b *Backend) SetProducts(products ...posapi.Product) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.products = append([]posapi.Product(nil), products...)
}

func (b *Backend) SetTables(tables ...posapi.Table) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tables = append([]posapi.Table(nil), tables...)
}

func (b *Backend) SetUsers(users ...posapi.User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users = append([]posapi.User(nil), users...)
}

func (b *Backend) SetSales(sales ...posapi.Sale) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sales = append([]posapi.Sale(nil), sales...)
}

func (b *Backend) SetStats(stats posapi.DashboardStats) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats = stats
}

// Fail makes every request to "METHOD /path" answer status until cleared with status 0.
func (b *Backend) Fail(method, path string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := method + " " + path
	if status == 0 {
		delete(b.failures, key)
		return
	}
	b.failures[key] = status
}

func (b *Backend) Requests() []Recorded {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Recorded(nil), b.requests...)
}

// Count returns how many requests hit "METHOD /path".
func (b *Backend) Count(method, path string) int {
	n := 0
	for _, r := range b.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func (b *Backend) Last(method, path string) (Recorded, bool) {
	reqs := b.Requests()
	for i := len(reqs) - 1; i >= 0; i-- {
		if reqs[i].Method == method && reqs[i].Path == path {
			return reqs[i], true
		}
	}
	return Recorded{}, false
}

func (b *Backend) Uploads() []Upload {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Upload(nil), b.uploads...)
}

func (b *Backend) Tables() []posapi.Table {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]posapi.Table(nil), b.tables...)
}

func (b *Backend) Sales() []posapi.Sale {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]posapi.Sale(nil), b.sales...)
}

func (b *Backend) router() *gin.Engine {
	r := gin.New()
	r.Use(b.record, b.injectFailures)

	r.POST("/auth/login", b.login)

	api := r.Group("/", b.requireToken)
	api.GET("/productos", b.listProducts)
	api.GET("/productos/categoria/:categoria", b.listProductsByCategory)
	api.GET("/productos/stock-bajo", b.lowStock)
	api.POST("/productos", b.createProduct)
	api.PUT("/productos/:id", b.updateProduct)
	api.DELETE("/productos/:id", b.deleteProduct)

	api.GET("/mesas", b.listTables)
	api.GET("/mesas/libres", b.listFreeTables)
	api.POST("/mesas", b.createTable)
	api.PUT("/mesas/:id/estado", b.setTableState)
	api.DELETE("/mesas/:id", b.deleteTable)

	api.POST("/user/register", b.registerUser)
	api.GET("/user/all", b.listUsers)
	api.PUT("/user/:id", b.updateUser)
	api.DELETE("/user/:id", b.deleteUser)

	api.GET("/ventas/usuario", b.listSales)
	api.POST("/ventas", b.createSale)
	api.PUT("/ventas/:id/agregarProductos", b.appendItems)
	api.DELETE("/ventas/:id/producto/:productoId", b.removeItem)
	api.PUT("/ventas/:id/actualizar", b.updateSale)
	api.PUT("/ventas/:id/completar", b.completeSale)

	api.GET("/dashboard/stats", b.dashboard)
	return r
}

func (b *Backend) record(c *gin.Context) {
	var body []byte
	if c.Request.Body != nil {
		body, _ = io.ReadAll(c.Request.Body)
		c.Request.Body = io.NopCloser(strings.NewReader(string(body)))
	}
	b.mu.Lock()
	b.requests = append(b.requests, Recorded{
		Method:        c.Request.Method,
		Path:          c.Request.URL.Path,
		Query:         c.Request.URL.RawQuery,
		Authorization: c.GetHeader("Authorization"),
		ContentType:   c.GetHeader("Content-Type"),
		RequestID:     c.GetHeader("X-Request-ID"),
		Body:          body,
	})
	b.mu.Unlock()
	c.Next()
}

func (b *Backend) injectFailures(c *gin.Context) {
	b.mu.Lock()
	status, ok := b.failures[c.Request.Method+" "+c.Request.URL.Path]
	b.mu.Unlock()
	if ok {
		c.AbortWithStatusJSON(status, gin.H{"status": status, "message": "forced failure"})
		return
	}
	c.Next()
}

func (b *Backend) requireToken(c *gin.Context) {
	if c.GetHeader("Authorization") != "Bearer "+b.Token() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": 401, "error": "Unauthorized"})
		return
	}
	c.Next()
}

func (b *Backend) login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "cuerpo inválido"})
		return
	}
	if req.Username != Username || req.Password != Password {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Credenciales inválidas"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jwtToken": b.Token()})
}

func (b *Backend) listProducts(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c.JSON(http.StatusOK, nonNil(b.products))
}

func (b *Backend) listProductsByCategory(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []posapi.Product{}
	for _, p := range b.products {
		if string(p.Category) == c.Param("categoria") {
			out = append(out, p)
		}
	}
	c.JSON(http.StatusOK, out)
}

func (b *Backend) lowStock(c *gin.Context) {
	const minimum = 10
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []posapi.StockAlert{}
	for _, p := range b.products {
		if p.Stock < minimum {
			out = append(out, posapi.StockAlert{ID: p.ID, Name: p.Name, Stock: p.Stock, MinStock: minimum})
		}
	}
	c.JSON(http.StatusOK, out)
}

func (b *Backend) readUpload(c *gin.Context, requireImage bool) (Upload, bool) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "se esperaba multipart"})
		return Upload{}, false
	}
	var up Upload
	var raw []byte
	if files := form.File["producto"]; len(files) > 0 {
		f, err := files[0].Open()
		if err == nil {
			raw, _ = io.ReadAll(f)
			_ = f.Close()
		}
	} else if values := form.Value["producto"]; len(values) > 0 {
		raw = []byte(values[0])
	}
	if err := json.Unmarshal(raw, &up.Product); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "parte producto inválida"})
		return Upload{}, false
	}
	if files := form.File["imagen"]; len(files) > 0 {
		up.ImageName = files[0].Filename
		up.ImageContentType = files[0].Header.Get("Content-Type")
	} else if requireImage {
		c.JSON(http.StatusBadRequest, gin.H{"message": "imagen requerida"})
		return Upload{}, false
	}
	return up, true
}

func (b *Backend) createProduct(c *gin.Context) {
	up, ok := b.readUpload(c, true)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploads = append(b.uploads, up)
	p := up.Product
	p.ID = b.id()
	p.ImageURL = "https://img.example/" + up.ImageName
	b.products = append(b.products, p)
	c.JSON(http.StatusOK, p)
}

func (b *Backend) updateProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	up, ok := b.readUpload(c, false)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploads = append(b.uploads, up)
	for i, p := range b.products {
		if p.ID == id {
			next := up.Product
			next.ID = id
			next.ImageURL = p.ImageURL
			if up.ImageName != "" {
				next.ImageURL = "https://img.example/" + up.ImageName
			}
			b.products[i] = next
			c.JSON(http.StatusOK, next)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"message": "Producto no encontrado"})
}

func (b *Backend) deleteProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, p := range b.products {
		if p.ID == id {
			b.products = append(b.products[:i], b.products[i+1:]...)
			c.Status(http.StatusNoContent)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"message": "Producto no encontrado"})
}

func (b *Backend) listTables(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c.JSON(http.StatusOK, nonNil(b.tables))
}

func (b *Backend) listFreeTables(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []posapi.Table{}
	for _, t := range b.tables {
		if t.State == posapi.TableFree {
			out = append(out, t)
		}
	}
	c.JSON(http.StatusOK, out)
}

func (b *Backend) createTable(c *gin.Context) {
	var t posapi.Table
	if err := c.ShouldBindJSON(&t); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "mesa inválida"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	t.ID = b.id()
	b.tables = append(b.tables, t)
	c.JSON(http.StatusOK, t)
}

func (b *Backend) setTableState(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var state posapi.TableState
	if err := c.ShouldBindJSON(&state); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "estado inválido"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, t := range b.tables {
		if t.ID == id {
			b.tables[i].State = state
			c.JSON(http.StatusOK, b.tables[i])
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"message": "Mesa no encontrada"})
}

func (b *Backend) deleteTable(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, t := range b.tables {
		if t.ID == id {
			b.tables = append(b.tables[:i], b.tables[i+1:]...)
			c.Status(http.StatusNoContent)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"message": "Mesa no encontrada"})
}

func (b *Backend) registerUser(c *gin.Context) {
	var req posapi.RegisterUser
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "usuario inválido"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range b.users {
		if u.Username == req.Username {
			c.JSON(http.StatusBadRequest, gin.H{"message": "El usuario ya existe"})
			return
		}
	}
	u := posapi.User{ID: b.id(), Username: req.Username, Role: req.Role}
	b.users = append(b.users, u)
	c.JSON(http.StatusOK, u)
}

func (b *Backend) listUsers(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c.JSON(http.StatusOK, nonNil(b.users))
}

func (b *Backend) updateUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req posapi.UpdateUser
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "datos inválidos"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, u := range b.users {
		if u.ID == id {
			b.users[i].Role = req.Role
			c.Status(http.StatusOK)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"message": "Usuario no encontrado"})
}

func (b *Backend) deleteUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, u := range b.users {
		if u.ID == id {
			b.users = append(b.users[:i], b.users[i+1:]...)
			c.Status(http.StatusNoContent)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"message": "Usuario no encontrado"})
}

func (b *Backend) listSales(c *gin.Context) {
	from, errFrom := time.ParseInLocation(posapi.QueryTimeLayout, c.Query("inicio"), time.Local)
	to, errTo := time.ParseInLocation(posapi.QueryTimeLayout, c.Query("fin"), time.Local)
	if errFrom != nil || errTo != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "fechas inválidas"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []posapi.Sale{}
	for _, s := range b.sales {
		if s.Date.IsZero() || (!s.Date.Before(from) && !s.Date.After(to)) {
			out = append(out, s)
		}
	}
	c.JSON(http.StatusOK, out)
}

func (b *Backend) createSale(c *gin.Context) {
	var req posapi.SaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "venta inválida"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(req.Detail) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Los detalles de la venta no pueden estar vacíos"})
		return
	}
	table := b.table(req.TableID)
	if table == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Mesa no encontrada"})
		return
	}
	if table.State != posapi.TableFree {
		c.JSON(http.StatusBadRequest, gin.H{"message": "La mesa no está disponible"})
		return
	}
	sale := posapi.Sale{
		ID:         b.id(),
		TableID:    req.TableID,
		Date:       posapi.Timestamp{Time: time.Now().Truncate(time.Second)},
		Status:     posapi.SalePending,
		Discount:   req.Discount,
		SaleDetail: req.SaleDetail,
	}
	if !b.addLines(c, &sale, req.Detail) {
		return
	}
	table.State = posapi.TableOccupied
	b.sales = append(b.sales, sale)
	c.JSON(http.StatusOK, sale)
}

func (b *Backend) appendItems(c *gin.Context) {
	var req struct {
		Detail []posapi.LineItem `json:"detail"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "detalle inválido"})
		return
	}
	b.withPendingSale(c, "Solo se pueden agregar productos a ventas pendientes", func(s *posapi.Sale) bool {
		return b.addLines(c, s, req.Detail)
	})
}

func (b *Backend) removeItem(c *gin.Context) {
	productID, ok := paramID(c, "productoId")
	if !ok {
		return
	}
	b.withPendingSale(c, "Solo se pueden eliminar productos de ventas pendientes", func(s *posapi.Sale) bool {
		for i, line := range s.Detail {
			if line.ProductID != productID {
				continue
			}
			if line.Quantity > 1 {
				s.Detail[i].Quantity--
				s.Detail[i].Subtotal = line.UnitPrice.Mul(decimal.NewFromInt(int64(s.Detail[i].Quantity)))
			} else {
				s.Detail = append(s.Detail[:i], s.Detail[i+1:]...)
			}
			recomputeTotal(s)
			return true
		}
		c.JSON(http.StatusNotFound, gin.H{"message": "Producto no encontrado en la venta"})
		return false
	})
}

func (b *Backend) updateSale(c *gin.Context) {
	var req struct {
		Discount   decimal.Decimal `json:"discount"`
		SaleDetail string          `json:"saleDetail"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "datos inválidos"})
		return
	}
	b.withPendingSale(c, "Solo se pueden modificar ventas pendientes", func(s *posapi.Sale) bool {
		s.Discount = req.Discount
		s.SaleDetail = req.SaleDetail
		recomputeTotal(s)
		return true
	})
}

func (b *Backend) completeSale(c *gin.Context) {
	b.withPendingSale(c, "La venta ya fue completada", func(s *posapi.Sale) bool {
		s.Status = posapi.SaleCompleted
		if t := b.table(s.TableID); t != nil {
			t.State = posapi.TableFree
		}
		return true
	})
}

func (b *Backend) dashboard(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c.JSON(http.StatusOK, b.stats)
}

// withPendingSale runs fn on the sale named by :id under the lock and answers with
// the updated sale when fn returns true.
func (b *Backend) withPendingSale(c *gin.Context, notPending string, fn func(*posapi.Sale) bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.sales {
		s := &b.sales[i]
		if s.ID != id {
			continue
		}
		if s.Status != posapi.SalePending {
			c.JSON(http.StatusBadRequest, gin.H{"message": notPending})
			return
		}
		if fn(s) {
			c.JSON(http.StatusOK, *s)
		}
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"message": "Venta no encontrada"})
}

func (b *Backend) addLines(c *gin.Context, s *posapi.Sale, items []posapi.LineItem) bool {
	for _, item := range items {
		product := b.product(item.ProductID)
		if product == nil {
			c.JSON(http.StatusNotFound, gin.H{"message": "Producto no encontrado"})
			return false
		}
		merged := false
		for i := range s.Detail {
			if s.Detail[i].ProductID == item.ProductID {
				s.Detail[i].Quantity += item.Quantity
				s.Detail[i].Subtotal = product.Price.Mul(decimal.NewFromInt(int64(s.Detail[i].Quantity)))
				merged = true
			}
		}
		if !merged {
			s.Detail = append(s.Detail, posapi.SaleLine{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: product.Price,
				Subtotal:  product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))),
			})
		}
	}
	recomputeTotal(s)
	return true
}

func recomputeTotal(s *posapi.Sale) {
	total := decimal.Zero
	for _, line := range s.Detail {
		total = total.Add(line.Subtotal)
	}
	s.Total = total.Sub(s.Discount)
}

func (b *Backend) table(id int64) *posapi.Table {
	for i := range b.tables {
		if b.tables[i].ID == id {
			return &b.tables[i]
		}
	}
	return nil
}

func (b *Backend) product(id int64) *posapi.Product {
	for i := range b.products {
		if b.products[i].ID == id {
			return &b.products[i]
		}
	}
	return nil
}

func (b *Backend) id() int64 {
	b.nextID++
	return b.nextID
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "id inválido"})
		return 0, false
	}
	return id, true
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
