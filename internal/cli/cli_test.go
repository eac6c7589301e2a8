package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pos_console/internal/catalog"
	"pos_console/internal/config"
	"pos_console/internal/notify"
	"pos_console/internal/posapi"
	"pos_console/internal/posapi/posapitest"
	"pos_console/internal/sale"
	"pos_console/internal/session"
	"pos_console/internal/tables"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func price(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func seededBackend(t *testing.T) *posapitest.Backend {
	t.Helper()
	backend := posapitest.New(t)
	backend.SetTables(
		posapi.Table{ID: 1, Number: "1", State: posapi.TableOccupied},
		posapi.Table{ID: 2, Number: "2", State: posapi.TableFree},
	)
	backend.SetProducts(
		posapi.Product{ID: 7, Name: "Arepa", Price: price(5000), Stock: 50, Category: posapi.CategoryHot},
		posapi.Product{ID: 8, Name: "Jugo de mora", Price: price(3000), Stock: 50, Category: posapi.CategoryBeverages},
	)
	backend.SetSales(
		posapi.Sale{
			ID: 10, TableID: 1, Status: posapi.SalePending, SaleDetail: sale.NoteCash,
			Total:  price(10000),
			Detail: []posapi.SaleLine{{ProductID: 7, Quantity: 2, UnitPrice: price(5000), Subtotal: price(10000)}},
		},
		posapi.Sale{
			ID: 11, TableID: 2, Status: posapi.SaleCompleted, SaleDetail: sale.NoteTransfer,
			Total:  price(3000),
			Detail: []posapi.SaleLine{{ProductID: 8, Quantity: 1, UnitPrice: price(3000), Subtotal: price(3000)}},
		},
	)
	return backend
}

type harness struct {
	runner  *Runner
	out     *bytes.Buffer
	errOut  *bytes.Buffer
	session *session.Session
}

func newHarness(t *testing.T, backend *posapitest.Backend, loggedIn bool, opts Options, input string) harness {
	t.Helper()
	client, sess := backend.Connect(t)
	if loggedIn {
		require.NoError(t, sess.Login(context.Background(), posapitest.Username, posapitest.Password))
	}

	logger := zaptest.NewLogger(t)
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	runner := newRunner(Params{
		Options:  opts,
		Logger:   logger,
		Session:  sess,
		Client:   client,
		Catalog:  catalog.New(config.ReadPolicySurface, client, logger),
		Tables:   tables.New(config.ReadPolicySurface, client, logger),
		Composer: sale.NewComposer(client, logger),
		Ledger:   sale.NewLedger(config.ReadPolicySurface, client, logger),
		Listener: notify.New(notify.Options{URL: "ws://127.0.0.1:1/ws/websocket"}, sess, logger),
	}, strings.NewReader(input), out, errOut)
	return harness{runner: runner, out: out, errOut: errOut, session: sess}
}

func TestRouteGuardPromptsForLogin(t *testing.T) {
	backend := seededBackend(t)
	h := newHarness(t, backend, false, Options{}, "products\nadmin\nadmin123\nexit\n")

	require.NoError(t, h.runner.Execute())

	out := h.out.String()
	assert.Contains(t, out, "Login required.")
	assert.Contains(t, out, "Logged in as admin.")
	assert.Contains(t, out, "Arepa")
	assert.True(t, h.session.IsAuthenticated())
	assert.Equal(t, 1, backend.Count(http.MethodPost, "/auth/login"))
}

func TestOneShotWithoutSessionSendsNothing(t *testing.T) {
	backend := seededBackend(t)
	h := newHarness(t, backend, false, Options{Args: []string{"products"}}, "")

	err := h.runner.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Login required")
	assert.Empty(t, backend.Requests())
}

func TestPublicCommandsSkipTheGuard(t *testing.T) {
	backend := seededBackend(t)
	h := newHarness(t, backend, false, Options{Args: []string{"whoami"}}, "")

	require.NoError(t, h.runner.Execute())
	assert.Contains(t, h.out.String(), "Not logged in.")
}

func TestREPLKeepsGoingAfterErrors(t *testing.T) {
	backend := seededBackend(t)
	h := newHarness(t, backend, true, Options{}, "bogus\nsale show 999\ntables\nexit\n")

	require.NoError(t, h.runner.Execute())

	out := h.out.String()
	assert.Contains(t, out, `! usage: unknown command "bogus", type 'help'`)
	assert.Contains(t, out, "! sale not loaded: 999")
	assert.Contains(t, out, "table 2      LIBRE")
}

func TestComposeSale(t *testing.T) {
	backend := seededBackend(t)
	input := strings.Join([]string{
		"sale new",
		"submit",
		"table 1",
		"table 2",
		"+ 7",
		"+ 7",
		"+ 8",
		"- 8",
		"+ 8",
		"pay transfer",
		"show",
		"submit",
		"exit",
	}, "\n") + "\n"
	h := newHarness(t, backend, true, Options{}, input)

	require.NoError(t, h.runner.Execute())

	out := h.out.String()
	assert.Contains(t, out, "! table occupied, choose another")
	assert.Contains(t, out, "Payment: Pago Por Transferencia")
	assert.Contains(t, out, "Total:    $13000.00")
	assert.Contains(t, out, "Sale #101 created for table #2, total $13000.00.")

	created, ok := backend.Last(http.MethodPost, "/ventas")
	require.True(t, ok)
	assert.JSONEq(t,
		`{"tableId":2,"discount":0,"saleDetail":"Pago Por Transferencia","detail":[{"productoId":7,"cantidad":2},{"productoId":8,"cantidad":1}]}`,
		string(created.Body))
	assert.Equal(t, 1, backend.Count(http.MethodPost, "/ventas"), "incomplete drafts must not be sent")

	// tables are fetched for the draft and again after the sale went through
	assert.Equal(t, 2, backend.Count(http.MethodGet, "/mesas"))
	assert.Equal(t, sale.StateEmpty, h.runner.composer.State())
}

func TestComposeSaleCancelled(t *testing.T) {
	backend := seededBackend(t)
	h := newHarness(t, backend, true, Options{}, "sale new\ntable 2\n+ 7\ncancel\nexit\n")

	require.NoError(t, h.runner.Execute())

	assert.Contains(t, h.out.String(), "Sale discarded.")
	assert.Zero(t, backend.Count(http.MethodPost, "/ventas"))
	assert.Equal(t, sale.StateEmpty, h.runner.composer.State())
}

func TestComposeSaleNeedsConsole(t *testing.T) {
	backend := seededBackend(t)
	h := newHarness(t, backend, true, Options{Args: []string{"sale", "new"}}, "")

	require.Error(t, h.runner.Execute())
	assert.Zero(t, backend.Count(http.MethodPost, "/ventas"))
}

func TestSaleShow(t *testing.T) {
	backend := seededBackend(t)
	h := newHarness(t, backend, true, Options{Args: []string{"sale", "show", "10"}}, "")

	require.NoError(t, h.runner.Execute())

	out := h.out.String()
	assert.Contains(t, out, "Arepa")
	assert.Contains(t, out, "Total:    $10000.00")
	assert.Contains(t, out, "Payment:  Pago en efectivo")
	assert.Contains(t, out, "Actions: view, add, remove, update, complete")
}

func TestSaleAppendItems(t *testing.T) {
	backend := seededBackend(t)
	h := newHarness(t, backend, true, Options{}, "sale add 10\n+ 8\n+ 8\ndone\nexit\n")

	require.NoError(t, h.runner.Execute())

	appended, ok := backend.Last(http.MethodPut, "/ventas/10/agregarProductos")
	require.True(t, ok)
	assert.JSONEq(t, `{"detail":[{"productoId":8,"cantidad":2}]}`, string(appended.Body))
	assert.Contains(t, h.out.String(), "Sale #10 updated, total $16000.00.")
}

func TestSaleUpdateAndComplete(t *testing.T) {
	backend := seededBackend(t)
	h := newHarness(t, backend, true, Options{}, "sale update 10 abc Pago con tarjeta\nsale complete 10\nn\nsale complete 10\ny\nexit\n")

	require.NoError(t, h.runner.Execute())

	updated, ok := backend.Last(http.MethodPut, "/ventas/10/actualizar")
	require.True(t, ok)
	assert.JSONEq(t, `{"discount":0,"saleDetail":"Pago con tarjeta"}`, string(updated.Body))

	assert.Contains(t, h.out.String(), "Cancelled.")
	assert.Equal(t, 1, backend.Count(http.MethodPut, "/ventas/10/completar"))
	for _, s := range backend.Sales() {
		if s.ID == 10 {
			assert.Equal(t, posapi.SaleCompleted, s.Status)
		}
	}
}

func TestCompletedSaleRefusesMutations(t *testing.T) {
	backend := seededBackend(t)

	for _, args := range [][]string{
		{"sale", "complete", "11"},
		{"sale", "remove", "11", "8"},
		{"sale", "update", "11", "0", "x"},
	} {
		h := newHarness(t, backend, true, Options{Args: args}, "")
		err := h.runner.Execute()
		require.Error(t, err, args)
		assert.Contains(t, err.Error(), "sale is not pending", args)
	}

	assert.Zero(t, backend.Count(http.MethodPut, "/ventas/11/completar"))
	assert.Zero(t, backend.Count(http.MethodDelete, "/ventas/11/producto/8"))
	assert.Zero(t, backend.Count(http.MethodPut, "/ventas/11/actualizar"))
}

func TestSalesRejectsInvertedRange(t *testing.T) {
	backend := seededBackend(t)
	h := newHarness(t, backend, true, Options{Args: []string{"sales", "2024-03-02", "2024-03-01"}}, "")

	err := h.runner.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid input")
	assert.Zero(t, backend.Count(http.MethodGet, "/ventas/usuario"))
}

func TestSalesListsPeriod(t *testing.T) {
	backend := seededBackend(t)
	h := newHarness(t, backend, true, Options{Args: []string{"sales", "2024-03-01"}}, "")

	require.NoError(t, h.runner.Execute())

	req, ok := backend.Last(http.MethodGet, "/ventas/usuario")
	require.True(t, ok)
	assert.Contains(t, req.Query, "inicio=2024-03-01T00%3A00")
	assert.Contains(t, req.Query, "fin=2024-03-01T23%3A59")
	assert.Contains(t, h.out.String(), "#10")
}

func TestJSONOutput(t *testing.T) {
	backend := seededBackend(t)
	h := newHarness(t, backend, true, Options{JSON: true, Args: []string{"tables", "free"}}, "")

	require.NoError(t, h.runner.Execute())

	var got []posapi.Table
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].Number)
	assert.Equal(t, 1, backend.Count(http.MethodGet, "/mesas/libres"))
}

func TestRejectedSessionAsksForLogin(t *testing.T) {
	backend := seededBackend(t)
	h := newHarness(t, backend, true, Options{Args: []string{"tables"}}, "")
	backend.RotateToken("rotated")

	require.NoError(t, h.runner.Execute())

	out := h.out.String()
	assert.Contains(t, out, "! Your session was rejected by the server.")
	assert.Contains(t, out, "Please log in again.")
	assert.False(t, h.session.IsAuthenticated())
}

func TestFailedLogin(t *testing.T) {
	backend := seededBackend(t)
	h := newHarness(t, backend, false, Options{Args: []string{"login", "admin", "wrong"}}, "")

	err := h.runner.Execute()
	require.Error(t, err)
	assert.Equal(t, "Login failed: Credenciales inválidas", err.Error())
}

func TestProductsFilter(t *testing.T) {
	backend := seededBackend(t)
	h := newHarness(t, backend, true, Options{Args: []string{"products", "bebidas", "MORA"}}, "")

	require.NoError(t, h.runner.Execute())

	out := h.out.String()
	assert.Contains(t, out, "Jugo de mora")
	assert.NotContains(t, out, "Arepa")
}

func TestServerErrorIsReported(t *testing.T) {
	backend := seededBackend(t)
	backend.Fail(http.MethodGet, "/dashboard/stats", http.StatusInternalServerError)
	h := newHarness(t, backend, true, Options{Args: []string{"dashboard"}}, "")

	err := h.runner.Execute()
	require.Error(t, err)
	assert.Equal(t, "Server error (500): forced failure", err.Error())
}

func TestJSONOutputKeepsAlertsOffStdout(t *testing.T) {
	backend := seededBackend(t)
	h := newHarness(t, backend, true, Options{JSON: true, Args: []string{"products"}}, "")
	backend.Fail(http.MethodGet, "/productos", http.StatusInternalServerError)

	require.NoError(t, h.runner.Execute())

	var got []posapi.Product
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &got))
	assert.Empty(t, got)
	assert.Contains(t, h.errOut.String(), "! Server error (500): forced failure")
	assert.NotContains(t, h.out.String(), "!")
}

// slowProducts answers the product list only after a delay, honouring cancellation.
type slowProducts struct {
	*posapi.Client
	delay time.Duration
}

func (s slowProducts) ListProducts(ctx context.Context) ([]posapi.Product, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.delay):
	}
	return s.Client.ListProducts(ctx)
}

func TestComposeSaleLoadsProductsWhenTablesFail(t *testing.T) {
	backend := seededBackend(t)
	backend.Fail(http.MethodGet, "/mesas", http.StatusInternalServerError)
	h := newHarness(t, backend, true, Options{}, "sale new\n+ 7\ncancel\nexit\n")
	client := h.runner.client
	h.runner.catalog = catalog.New(config.ReadPolicySurface, slowProducts{Client: client, delay: 50 * time.Millisecond}, zaptest.NewLogger(t))

	require.NoError(t, h.runner.Execute())

	out := h.out.String()
	assert.Contains(t, out, "! Server error (500): forced failure")
	assert.Contains(t, out, "Arepa x1")
	assert.NotContains(t, out, "unknown product")
}

type stubDialer struct {
	dials  atomic.Int32
	dialed chan struct{}
	once   sync.Once
}

func newStubDialer() *stubDialer {
	return &stubDialer{dialed: make(chan struct{})}
}

func (d *stubDialer) Dial(_ context.Context, _ string) (io.ReadWriteCloser, error) {
	d.dials.Add(1)
	d.once.Do(func() { close(d.dialed) })
	return nil, errors.New("connection refused")
}

func watchHarness(t *testing.T, backend *posapitest.Backend) (harness, *stubDialer) {
	t.Helper()
	h := newHarness(t, backend, true, Options{}, "")
	dialer := newStubDialer()
	h.runner.listener = notify.New(notify.Options{
		URL:            "ws://pos.invalid/ws/websocket",
		ReconnectDelay: 5 * time.Millisecond,
		Dial:           dialer.Dial,
	}, h.session, zaptest.NewLogger(t))
	return h, dialer
}

func assertNoMoreDials(t *testing.T, dialer *stubDialer) {
	t.Helper()
	n := dialer.dials.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, dialer.dials.Load(), "push channel still running after watch returned")
}

func TestWatchStopsOnCancel(t *testing.T) {
	backend := seededBackend(t)
	backend.SetStats(posapi.DashboardStats{DailySales: price(42000), TotalProducts: 2})
	h, dialer := watchHarness(t, backend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-dialer.dialed
		cancel()
	}()

	require.NoError(t, h.runner.cmdWatch(ctx, nil))

	out := h.out.String()
	assert.Contains(t, out, "Sales today:      $42000.00")
	assert.Contains(t, out, "Stopped.")
	assertNoMoreDials(t, dialer)
}

func TestWatchEndsWithSession(t *testing.T) {
	backend := seededBackend(t)
	h, dialer := watchHarness(t, backend)

	go func() {
		<-dialer.dialed
		_ = h.session.Logout(context.Background())
	}()

	err := h.runner.cmdWatch(context.Background(), nil)
	require.ErrorIs(t, err, notify.ErrSessionEnded)
	assert.Equal(t, "Live updates stopped: the session ended.", friendlyError(err))
	assertNoMoreDials(t, dialer)
}
