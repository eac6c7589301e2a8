package sale

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"pos_console/internal/posapi"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type State int

const (
	StateEmpty State = iota
	StateEditing
	StateValidated
	StateSubmitting
	// StateFailed is editing with the last submission error retained.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateEditing:
		return "editing"
	case StateValidated:
		return "validated"
	case StateSubmitting:
		return "submitting"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type PaymentOption string

const (
	PaymentCash     PaymentOption = "cash"
	PaymentTransfer PaymentOption = "transfer"
	PaymentOther    PaymentOption = "other"
)

const (
	NoteCash     = "Pago en efectivo"
	NoteTransfer = "Pago Por Transferencia"
	// NoteFallback replaces an empty payment note at submission.
	NoteFallback = "Sin detalle"
)

// ResolveNote maps a payment option to the note stored with the sale.
func ResolveNote(option PaymentOption, custom string) (string, error) {
	switch PaymentOption(strings.ToLower(strings.TrimSpace(string(option)))) {
	case PaymentCash:
		return NoteCash, nil
	case PaymentTransfer:
		return NoteTransfer, nil
	case PaymentOther:
		return strings.TrimSpace(custom), nil
	default:
		return "", &ValidationError{Field: "payment", Message: fmt.Sprintf("unknown option %q, use cash, transfer or other", option)}
	}
}

// ParseDiscount reads a discount typed by the user. Unparsable or negative input is zero.
func ParseDiscount(text string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

type Submitter interface {
	CreateSale(ctx context.Context, req posapi.SaleRequest) (posapi.Sale, error)
}

// Composer holds the draft of a new sale. It is owned by a single goroutine.
type Composer struct {
	submitter Submitter
	validate  *validator.Validate
	logger    *zap.Logger

	state    State
	tables   []posapi.Table
	tableID  int64
	tableErr error
	items    LineItems
	discount string
	note     string
	err      error

	onSubmitted []func(posapi.Sale)
}

func NewComposer(submitter Submitter, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{
		submitter: submitter,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger.Named("composer"),
	}
}

// OnSubmitted registers fn to run after every successful submission, typically to
// re-fetch the views the new sale affects.
func (c *Composer) OnSubmitted(fn func(posapi.Sale)) {
	c.onSubmitted = append(c.onSubmitted, fn)
}

// Open starts an empty draft over the loaded tables.
func (c *Composer) Open(tables []posapi.Table) {
	c.reset()
	c.tables = slices.Clone(tables)
	c.state = StateEditing
}

// Cancel discards the draft.
func (c *Composer) Cancel() {
	c.reset()
}

func (c *Composer) reset() {
	c.state = StateEmpty
	c.tables = nil
	c.tableID = 0
	c.tableErr = nil
	c.items.Reset()
	c.discount = ""
	c.note = NoteCash
	c.err = nil
}

func (c *Composer) State() State {
	return c.state
}

// Err is the active table selection error, else the last submission error.
func (c *Composer) Err() error {
	if c.tableErr != nil {
		return c.tableErr
	}
	return c.err
}

func (c *Composer) TableID() int64 {
	return c.tableID
}

func (c *Composer) Tables() []posapi.Table {
	return slices.Clone(c.tables)
}

func (c *Composer) Items() []posapi.LineItem {
	return c.items.Items()
}

func (c *Composer) Note() string {
	return c.note
}

func (c *Composer) Discount() string {
	return c.discount
}

func (c *Composer) editable() error {
	switch c.state {
	case StateEmpty:
		return ErrNoDraft
	case StateSubmitting:
		return fmt.Errorf("sale draft is being submitted")
	case StateValidated:
		c.state = StateEditing
	}
	return nil
}

// SelectTable sets the draft's table. An occupied table is refused, leaving the current
// selection as it was and the refusal active until a free table is chosen.
func (c *Composer) SelectTable(id int64) error {
	if err := c.editable(); err != nil {
		return err
	}
	i := slices.IndexFunc(c.tables, func(t posapi.Table) bool { return t.ID == id })
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrUnknownTable, id)
	}
	if c.tables[i].State == posapi.TableOccupied {
		c.tableErr = ErrTableOccupied
		return ErrTableOccupied
	}
	c.tableID = id
	c.tableErr = nil
	return nil
}

func (c *Composer) SetDiscount(text string) error {
	if err := c.editable(); err != nil {
		return err
	}
	c.discount = text
	return nil
}

func (c *Composer) SetPaymentNote(option PaymentOption, custom string) error {
	if err := c.editable(); err != nil {
		return err
	}
	note, err := ResolveNote(option, custom)
	if err != nil {
		return err
	}
	c.note = note
	return nil
}

func (c *Composer) ChangeQuantity(productID int64, d Direction) (int, error) {
	if err := c.editable(); err != nil {
		return 0, err
	}
	return c.items.Change(productID, d), nil
}

// CanSubmit is the only gate on submission.
func (c *Composer) CanSubmit() bool {
	return c.state != StateEmpty && c.tableID != 0 && c.tableErr == nil && c.items.Len() > 0
}

// Payload builds and validates the create request of the current draft.
func (c *Composer) Payload() (posapi.SaleRequest, error) {
	if c.state == StateEmpty {
		return posapi.SaleRequest{}, ErrNoDraft
	}
	if c.tableErr != nil {
		return posapi.SaleRequest{}, &ValidationError{Field: "table", Message: c.tableErr.Error()}
	}

	note := strings.TrimSpace(c.note)
	if note == "" {
		note = NoteFallback
	}
	req := posapi.SaleRequest{
		TableID:    c.tableID,
		Discount:   ParseDiscount(c.discount),
		SaleDetail: note,
		Detail:     c.items.Items(),
	}
	if err := c.validate.Struct(req); err != nil {
		return posapi.SaleRequest{}, fromValidator(err)
	}
	if c.state == StateEditing {
		c.state = StateValidated
	}
	return req, nil
}

// Submit sends the draft. On success the draft is reset and the OnSubmitted hooks run;
// on failure the draft is kept for a retry and the error is retained.
func (c *Composer) Submit(ctx context.Context) (posapi.Sale, error) {
	if c.state == StateEmpty {
		return posapi.Sale{}, ErrNoDraft
	}
	if !c.CanSubmit() {
		return posapi.Sale{}, c.submitBlocked()
	}
	req, err := c.Payload()
	if err != nil {
		return posapi.Sale{}, err
	}

	c.state = StateSubmitting
	sale, err := c.submitter.CreateSale(ctx, req)
	if err != nil {
		c.state = StateFailed
		c.err = err
		c.logger.Warn("sale not created",
			zap.Int64("table_id", req.TableID),
			zap.Int("items", len(req.Detail)),
			zap.Error(err),
		)
		return posapi.Sale{}, err
	}

	c.logger.Info("sale created",
		zap.Int64("sale_id", sale.ID),
		zap.Int64("table_id", sale.TableID),
		zap.String("total", sale.Total.String()),
	)
	c.reset()
	for _, fn := range c.onSubmitted {
		fn(sale)
	}
	return sale, nil
}

func (c *Composer) submitBlocked() error {
	switch {
	case c.tableErr != nil:
		return &ValidationError{Field: "table", Message: c.tableErr.Error()}
	case c.tableID == 0:
		return &ValidationError{Field: "table", Message: "select a table"}
	default:
		return &ValidationError{Field: "detail", Message: "add at least one product"}
	}
}
