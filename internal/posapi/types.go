package posapi

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Process-wide: see the package documentation.
	decimal.MarshalJSONWithoutQuotes = true
}

type Category string

const (
	CategoryCold      Category = "FRIO"
	CategoryHot       Category = "CALIENTE"
	CategoryAdditions Category = "ADICIONES"
	CategoryBeverages Category = "BEBIDAS"
)

var Categories = []Category{CategoryCold, CategoryHot, CategoryAdditions, CategoryBeverages}

// ParseCategory accepts the wire name or its English alias, case-insensitively.
func ParseCategory(value string) (Category, bool) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "FRIO", "COLD":
		return CategoryCold, true
	case "CALIENTE", "HOT":
		return CategoryHot, true
	case "ADICIONES", "ADDITIONS":
		return CategoryAdditions, true
	case "BEBIDAS", "BEVERAGES":
		return CategoryBeverages, true
	default:
		return "", false
	}
}

type TableState string

const (
	TableFree     TableState = "LIBRE"
	TableOccupied TableState = "OCUPADA"
)

func ParseTableState(value string) (TableState, bool) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "LIBRE", "FREE":
		return TableFree, true
	case "OCUPADA", "OCCUPIED":
		return TableOccupied, true
	default:
		return "", false
	}
}

type SaleStatus string

const (
	SalePending   SaleStatus = "PENDIENTE"
	SaleCompleted SaleStatus = "COMPLETADA"
)

type Role string

const (
	RoleAdmin   Role = "ADMINISTRADOR"
	RoleWaiter  Role = "MESERO"
	RoleCashier Role = "CAJERO"
)

func ParseRole(value string) (Role, bool) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "ADMINISTRADOR", "ADMIN":
		return RoleAdmin, true
	case "MESERO", "WAITER":
		return RoleWaiter, true
	case "CAJERO", "CASHIER":
		return RoleCashier, true
	default:
		return "", false
	}
}

type Product struct {
	ID          int64           `json:"id,omitempty"`
	Name        string          `json:"nombre"`
	Price       decimal.Decimal `json:"precio"`
	Description string          `json:"descripcion,omitempty"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	Stock       int             `json:"stock"`
	Category    Category        `json:"tipo"`
}

type StockAlert struct {
	ID       int64  `json:"id"`
	Name     string `json:"nombre"`
	Stock    int    `json:"stock"`
	MinStock int    `json:"stockMinimo"`
}

type Table struct {
	ID     int64      `json:"id,omitempty"`
	Number string     `json:"numero"`
	State  TableState `json:"estado"`
}

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"rol"`
}

type RegisterUser struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     Role   `json:"rol"`
}

type UpdateUser struct {
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

// LineItem is the {productoId, cantidad} pair sent when composing or extending a sale.
type LineItem struct {
	ProductID int64 `json:"productoId" validate:"gt=0"`
	Quantity  int   `json:"cantidad" validate:"gt=0"`
}

type SaleRequest struct {
	TableID    int64           `json:"tableId" validate:"gt=0"`
	Discount   decimal.Decimal `json:"discount"`
	SaleDetail string          `json:"saleDetail" validate:"required"`
	Detail     []LineItem      `json:"detail" validate:"required,min=1,unique=ProductID,dive"`
}

type saleUpdateRequest struct {
	Discount   decimal.Decimal `json:"discount"`
	SaleDetail string          `json:"saleDetail"`
}

type appendItemsRequest struct {
	Detail []LineItem `json:"detail"`
}

// SaleLine is a line item of a persisted sale with the price resolved by the backend.
type SaleLine struct {
	ProductID int64           `json:"productoId"`
	Quantity  int             `json:"cantidad"`
	UnitPrice decimal.Decimal `json:"precioUnitario"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type Sale struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"userId"`
	TableID    int64           `json:"tableId"`
	Date       Timestamp       `json:"date"`
	Total      decimal.Decimal `json:"total"`
	Status     SaleStatus      `json:"status"`
	Discount   decimal.Decimal `json:"discount"`
	SaleDetail string          `json:"saleDetail"`
	Detail     []SaleLine      `json:"detail"`
}

func (s Sale) Pending() bool {
	return s.Status == SalePending
}

type BestSellingProduct struct {
	Name         string          `json:"name"`
	QuantitySold int             `json:"quantitySold"`
	TotalIncome  decimal.Decimal `json:"totalIncome"`
}

type DashboardStats struct {
	DailySales          decimal.Decimal            `json:"dailySales"`
	WeeklySales         decimal.Decimal            `json:"weeklySales"`
	MonthlySales        decimal.Decimal            `json:"monthlySales"`
	TotalProducts       int                        `json:"totalProducts"`
	LowStockProducts    int                        `json:"lowStockProducts"`
	BestSellingProducts []BestSellingProduct       `json:"bestSellingProducts"`
	SalesByCategory     map[string]decimal.Decimal `json:"salesByCategory"`
}

type Notification struct {
	Type    string    `json:"type"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Date    Timestamp `json:"date"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	JWTToken string `json:"jwtToken"`
}

// Timestamp is the backend's zone-less local date-time, read in the console's zone.
type Timestamp struct {
	time.Time
}

const localDateTime = "2006-01-02T15:04:05"

var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02T15:04",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		t.Time = time.Time{}
		return nil
	}
	var lastErr error
	for _, layout := range timestampLayouts {
		parsed, err := time.ParseInLocation(layout, raw, time.Local)
		if err == nil {
			t.Time = parsed
			return nil
		}
		lastErr = err
	}
	return lastErr
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.Format(localDateTime) + `"`), nil
}
