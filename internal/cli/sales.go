package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"pos_console/internal/catalog"
	"pos_console/internal/posapi"
	"pos_console/internal/sale"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const refreshTimeout = 10 * time.Second

func (r *Runner) cmdSales(ctx context.Context, args []string) error {
	if len(args) > 2 {
		return usageError("sales [from] [to]")
	}
	period, err := resolvePeriod(args)
	if err != nil {
		return err
	}
	sales, err := r.ledger.Load(ctx, period.From, period.To)
	if err != nil {
		r.alert(err)
	}
	return r.writeResponse(sales, func(w io.Writer) { writeSales(w, sales) })
}

func (r *Runner) cmdSale(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("sale show|new|add|remove|update|complete ...")
	}
	sub, rest := strings.ToLower(args[0]), args[1:]
	if sub == "new" {
		return r.composeSale(ctx)
	}

	if len(rest) == 0 {
		return usageError("sale " + sub + " <id> ...")
	}
	id, err := parseID(rest[0])
	if err != nil {
		return err
	}
	current, err := r.loadedSale(ctx, id)
	if err != nil {
		return err
	}

	switch sub {
	case "show":
		return r.showSale(ctx, current)
	case "add":
		return r.appendToSale(ctx, current)
	case "remove":
		if len(rest) != 2 {
			return usageError("sale remove <id> <product-id>")
		}
		productID, err := parseID(rest[1])
		if err != nil {
			return err
		}
		updated, err := r.ledger.RemoveItem(ctx, id, productID)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Sale #%d updated, total %s.\n", updated.ID, money(updated.Total))
		return nil
	case "update":
		if len(rest) < 2 {
			return usageError("sale update <id> <discount> <note...>")
		}
		note := strings.Join(rest[2:], " ")
		updated, err := r.ledger.UpdateDiscountAndNote(ctx, id, sale.ParseDiscount(rest[1]), note)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Sale #%d updated, total %s.\n", updated.ID, money(updated.Total))
		return nil
	case "complete":
		if !current.Pending() {
			return fmt.Errorf("%w: sale %d is %s", sale.ErrSaleNotPending, id, current.Status)
		}
		if r.interactive {
			answer, _ := r.prompt(fmt.Sprintf("Complete sale #%d for %s? [y/N] ", id, money(current.Total)))
			if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
				fmt.Fprintln(r.out, "Cancelled.")
				return nil
			}
		}
		updated, err := r.ledger.Complete(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Sale #%d completed.\n", updated.ID)
		return nil
	default:
		return usageError("sale show|new|add|remove|update|complete ...")
	}
}

// loadedSale finds id in the ledger, loading today's sales when it is not there yet.
func (r *Runner) loadedSale(ctx context.Context, id int64) (posapi.Sale, error) {
	if s, ok := r.ledger.Get(id); ok {
		return s, nil
	}
	period, _ := resolvePeriod(nil)
	if _, err := r.ledger.Load(ctx, period.From, period.To); err != nil {
		return posapi.Sale{}, err
	}
	if s, ok := r.ledger.Get(id); ok {
		return s, nil
	}
	return posapi.Sale{}, fmt.Errorf("%w: %d, list its period with 'sales <from> <to>' first", sale.ErrUnknownSale, id)
}

func (r *Runner) productName(id int64) (string, bool) {
	p, ok := r.catalog.Find(id)
	return p.Name, ok
}

func (r *Runner) showSale(ctx context.Context, s posapi.Sale) error {
	if len(r.catalog.Products()) == 0 {
		if _, err := r.catalog.Load(ctx); err != nil {
			r.logger.Debug("product names unavailable", zap.Error(err))
		}
	}
	inv := sale.NewInvoice(s, r.productName)
	actions := sale.Actions(s)

	type saleView struct {
		Sale    posapi.Sale   `json:"sale"`
		Actions []sale.Action `json:"actions"`
	}
	return r.writeResponse(saleView{Sale: s, Actions: actions}, func(w io.Writer) {
		writeInvoice(w, inv)
		names := make([]string, 0, len(actions))
		for _, a := range actions {
			names = append(names, string(a))
		}
		fmt.Fprintf(w, "Actions: %s\n", strings.Join(names, ", "))
	})
}

// loadReference fetches the tables and the products together. Each load fails on its
// own and keeps its loader's last list.
func (r *Runner) loadReference(ctx context.Context, onlyFree bool) ([]posapi.Table, []posapi.Product, []error) {
	var (
		g         errgroup.Group
		tableList []posapi.Table
		products  []posapi.Product
		tableErr  error
		loadErr   error
	)
	g.Go(func() error {
		tableList, tableErr = r.tables.Load(ctx, onlyFree)
		return nil
	})
	g.Go(func() error {
		products, loadErr = r.catalog.Load(ctx)
		return nil
	})
	_ = g.Wait()

	var errs []error
	for _, err := range []error{tableErr, loadErr} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return tableList, products, errs
}

func (r *Runner) composeSale(ctx context.Context) error {
	if !r.interactive {
		return errors.New("sale new needs the interactive console")
	}

	tableList, products, errs := r.loadReference(ctx, false)
	for _, err := range errs {
		r.alert(err)
	}
	r.composer.Open(tableList)
	defer func() {
		if r.composer.State() != sale.StateEmpty {
			r.composer.Cancel()
		}
	}()

	fmt.Fprintln(r.out, "New sale. Commands: table <id>, + <product-id>, - <product-id>, discount <amount>,")
	fmt.Fprintln(r.out, "pay cash|transfer|other [text], products [category] [search], tables, show, submit, cancel")
	writeTables(r.out, tableList)

	for {
		line, ok := r.prompt("sale> ")
		if !ok {
			return nil
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}

		done, err := r.composeStep(ctx, args, products)
		if err != nil {
			r.alert(err)
		}
		if done {
			return nil
		}
	}
}

func (r *Runner) composeStep(ctx context.Context, args []string, products []posapi.Product) (bool, error) {
	c := r.composer
	switch strings.ToLower(args[0]) {
	case "table":
		if len(args) != 2 {
			return false, usageError("table <id>")
		}
		id, err := parseID(args[1])
		if err != nil {
			return false, err
		}
		if err := c.SelectTable(id); err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "Table #%d selected.\n", id)
	case "+", "-":
		if len(args) != 2 {
			return false, usageError(args[0] + " <product-id>")
		}
		id, err := parseID(args[1])
		if err != nil {
			return false, err
		}
		if _, known := r.catalog.Find(id); !known && args[0] == "+" {
			return false, fmt.Errorf("unknown product #%d", id)
		}
		direction := sale.Increase
		if args[0] == "-" {
			direction = sale.Decrease
		}
		qty, err := c.ChangeQuantity(id, direction)
		if err != nil {
			return false, err
		}
		name, _ := r.productName(id)
		fmt.Fprintf(r.out, "%s x%d\n", name, qty)
	case "discount":
		if len(args) != 2 {
			return false, usageError("discount <amount>")
		}
		if err := c.SetDiscount(args[1]); err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "Discount %s.\n", money(sale.ParseDiscount(args[1])))
	case "pay":
		if len(args) < 2 {
			return false, usageError("pay cash|transfer|other [text]")
		}
		if err := c.SetPaymentNote(sale.PaymentOption(args[1]), strings.Join(args[2:], " ")); err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "Payment: %s\n", c.Note())
	case "products":
		category, search := splitCategory(args[1:])
		writeProducts(r.out, catalog.Filter(products, category, search))
	case "tables":
		writeTables(r.out, c.Tables())
	case "show":
		writeDraft(r.out, c, r.catalog.Find)
	case "submit":
		created, err := c.Submit(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "Sale #%d created for table #%d, total %s.\n", created.ID, created.TableID, money(created.Total))
		return true, nil
	case "cancel", "exit":
		c.Cancel()
		fmt.Fprintln(r.out, "Sale discarded.")
		return true, nil
	default:
		return false, fmt.Errorf("%w: unknown sale command %q", errUsage, args[0])
	}
	return false, nil
}

// appendToSale collects extra line items for a pending sale and sends them in one call.
func (r *Runner) appendToSale(ctx context.Context, s posapi.Sale) error {
	if !s.Pending() {
		return fmt.Errorf("%w: sale %d is %s", sale.ErrSaleNotPending, s.ID, s.Status)
	}
	if !r.interactive {
		return errors.New("sale add needs the interactive console")
	}
	products, err := r.catalog.Load(ctx)
	if err != nil {
		r.alert(err)
	}

	var items sale.LineItems
	fmt.Fprintf(r.out, "Adding to sale #%d. Commands: + <product-id>, - <product-id>, products [category] [search], done, cancel\n", s.ID)
	for {
		line, ok := r.prompt("add> ")
		if !ok {
			return nil
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		switch strings.ToLower(args[0]) {
		case "+", "-":
			if len(args) != 2 {
				r.alert(usageError(args[0] + " <product-id>"))
				continue
			}
			id, err := parseID(args[1])
			if err != nil {
				r.alert(err)
				continue
			}
			direction := sale.Increase
			if args[0] == "-" {
				direction = sale.Decrease
			}
			name, _ := r.productName(id)
			fmt.Fprintf(r.out, "%s x%d\n", name, items.Change(id, direction))
		case "products":
			category, search := splitCategory(args[1:])
			writeProducts(r.out, catalog.Filter(products, category, search))
		case "done":
			updated, err := r.ledger.AppendItems(ctx, s.ID, items.Items())
			if err != nil {
				r.alert(err)
				continue
			}
			fmt.Fprintf(r.out, "Sale #%d updated, total %s.\n", updated.ID, money(updated.Total))
			return nil
		case "cancel", "exit":
			fmt.Fprintln(r.out, "Nothing added.")
			return nil
		default:
			r.alert(fmt.Errorf("%w: unknown command %q", errUsage, args[0]))
		}
	}
}

// refreshAfterSale re-fetches the views a new sale changes: table occupancy and the
// sales list when one is loaded.
func (r *Runner) refreshAfterSale(created posapi.Sale) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	if _, err := r.tables.Load(ctx, false); err != nil {
		r.logger.Warn("tables not refreshed after sale", zap.Int64("sale_id", created.ID), zap.Error(err))
	}
	if from, to := r.ledger.Period(); !from.IsZero() {
		if _, err := r.ledger.Load(ctx, from, to); err != nil {
			r.logger.Warn("sales not refreshed after sale", zap.Int64("sale_id", created.ID), zap.Error(err))
		}
	}
}
