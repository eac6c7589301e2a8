package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"pos_console/internal/posapi"
	"pos_console/internal/sale"

	"github.com/shopspring/decimal"
)

const displayTime = "2006-01-02 15:04"

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func writeProducts(w io.Writer, products []posapi.Product) {
	if len(products) == 0 {
		fmt.Fprintln(w, "- (no products)")
		return
	}
	for _, p := range products {
		fmt.Fprintf(w, "#%-4d %-28s %10s  stock=%-4d %s\n", p.ID, p.Name, money(p.Price), p.Stock, p.Category)
	}
}

func writeTables(w io.Writer, tables []posapi.Table) {
	if len(tables) == 0 {
		fmt.Fprintln(w, "- (no tables)")
		return
	}
	for _, t := range tables {
		fmt.Fprintf(w, "#%-4d table %-6s %s\n", t.ID, t.Number, t.State)
	}
}

func writeSales(w io.Writer, sales []posapi.Sale) {
	if len(sales) == 0 {
		fmt.Fprintln(w, "- (no sales in this period)")
		return
	}
	for _, s := range sales {
		date := "-"
		if !s.Date.IsZero() {
			date = s.Date.Format(displayTime)
		}
		fmt.Fprintf(w, "#%-5d %s table #%-3d %-10s %10s  items=%d\n",
			s.ID, date, s.TableID, s.Status, money(s.Total), len(s.Detail))
	}
}

func writeInvoice(w io.Writer, inv sale.Invoice) {
	fmt.Fprintf(w, "Sale #%d, table #%d, %s\n", inv.SaleID, inv.TableID, inv.Status)
	if !inv.Date.IsZero() {
		fmt.Fprintf(w, "Date: %s\n", inv.Date.Format(displayTime))
	}
	for _, line := range inv.Lines {
		fmt.Fprintf(w, "  %3d x %-28s %10s %10s\n", line.Quantity, line.Name, money(line.UnitPrice), money(line.Subtotal))
	}
	fmt.Fprintf(w, "Subtotal: %s\n", money(inv.Subtotal))
	fmt.Fprintf(w, "Discount: %s\n", money(inv.Discount))
	fmt.Fprintf(w, "Total:    %s\n", money(inv.Total))
	fmt.Fprintf(w, "Payment:  %s\n", inv.Note)
}

// writeDraft prints the sale being composed with prices from the catalog.
func writeDraft(w io.Writer, c *sale.Composer, find func(int64) (posapi.Product, bool)) {
	table := "(none)"
	if id := c.TableID(); id > 0 {
		table = fmt.Sprintf("#%d", id)
	}
	fmt.Fprintf(w, "Table: %s\n", table)

	items := c.Items()
	if len(items) == 0 {
		fmt.Fprintln(w, "- (no products yet)")
	}
	sum := decimal.Zero
	for _, item := range items {
		name := fmt.Sprintf("Producto %d", item.ProductID)
		price := decimal.Zero
		if p, ok := find(item.ProductID); ok {
			name, price = p.Name, p.Price
		}
		subtotal := price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		sum = sum.Add(subtotal)
		fmt.Fprintf(w, "  %3d x %-28s %10s\n", item.Quantity, name, money(subtotal))
	}
	discount := sale.ParseDiscount(c.Discount())
	fmt.Fprintf(w, "Discount: %s\n", money(discount))
	fmt.Fprintf(w, "Total:    %s\n", money(sum.Sub(discount)))
	fmt.Fprintf(w, "Payment:  %s\n", c.Note())
	if c.CanSubmit() {
		fmt.Fprintln(w, "Ready to submit.")
	}
}

func writeStats(w io.Writer, stats posapi.DashboardStats) {
	fmt.Fprintf(w, "Sales today:      %s\n", money(stats.DailySales))
	fmt.Fprintf(w, "Sales this week:  %s\n", money(stats.WeeklySales))
	fmt.Fprintf(w, "Sales this month: %s\n", money(stats.MonthlySales))
	fmt.Fprintf(w, "Products: %d (%d under minimum stock)\n", stats.TotalProducts, stats.LowStockProducts)

	if len(stats.BestSellingProducts) > 0 {
		fmt.Fprintln(w, "\nBest sellers:")
		for i, p := range stats.BestSellingProducts {
			fmt.Fprintf(w, "%d) %-28s sold=%-5d %s\n", i+1, p.Name, p.QuantitySold, money(p.TotalIncome))
		}
	}

	if len(stats.SalesByCategory) > 0 {
		fmt.Fprintln(w, "\nBy category:")
		categories := make([]string, 0, len(stats.SalesByCategory))
		for c := range stats.SalesByCategory {
			categories = append(categories, c)
		}
		sort.Strings(categories)
		for _, c := range categories {
			fmt.Fprintf(w, "- %-12s %s\n", strings.ToUpper(c), money(stats.SalesByCategory[c]))
		}
	}
}

func writeNotification(w io.Writer, n posapi.Notification) {
	when := ""
	if !n.Date.IsZero() {
		when = n.Date.Format(displayTime) + " "
	}
	fmt.Fprintf(w, "* %s[%s] %s\n", when, n.Type, n.Message)
	if n.Details != "" {
		fmt.Fprintf(w, "  %s\n", n.Details)
	}
}
