package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pos_console/internal/catalog"
	"pos_console/internal/posapi"

	"github.com/shopspring/decimal"
)

type command struct {
	name      string
	usage     string
	summary   string
	protected bool
	run       func(ctx context.Context, args []string) error
}

func (r *Runner) commandList() []command {
	return []command{
		{name: "login", usage: "login <username> [password]", summary: "start a session", run: r.cmdLogin},
		{name: "logout", usage: "logout", summary: "end the session", run: r.cmdLogout},
		{name: "whoami", usage: "whoami", summary: "show the logged in user", run: r.cmdWhoami},
		{name: "products", usage: "products [category] [search...]", summary: "list products (FRIO, CALIENTE, ADICIONES, BEBIDAS or TODOS)", protected: true, run: r.cmdProducts},
		{name: "low-stock", usage: "low-stock", summary: "list products under their minimum stock", protected: true, run: r.cmdLowStock},
		{name: "product", usage: "product add|update|delete ...", summary: "manage products", protected: true, run: r.cmdProduct},
		{name: "tables", usage: "tables [free]", summary: "list tables", protected: true, run: r.cmdTables},
		{name: "table", usage: "table add|state|delete ...", summary: "manage tables", protected: true, run: r.cmdTable},
		{name: "users", usage: "users", summary: "list users", protected: true, run: r.cmdUsers},
		{name: "user", usage: "user add|update|delete ...", summary: "manage users", protected: true, run: r.cmdUser},
		{name: "sales", usage: "sales [from] [to]", summary: "list your sales, dates as YYYY-MM-DD (default today)", protected: true, run: r.cmdSales},
		{name: "sale", usage: "sale show|new|add|remove|update|complete ...", summary: "compose and manage sales", protected: true, run: r.cmdSale},
		{name: "dashboard", usage: "dashboard", summary: "show sales statistics", protected: true, run: r.cmdDashboard},
		{name: "watch", usage: "watch", summary: "follow notifications and statistics until interrupted", protected: true, run: r.cmdWatch},
		{name: "help", usage: "help", summary: "show this list", run: r.cmdHelp},
	}
}

func (r *Runner) commandTable() map[string]command {
	table := map[string]command{}
	for _, cmd := range r.commandList() {
		table[cmd.name] = cmd
	}
	return table
}

func (r *Runner) cmdHelp(_ context.Context, _ []string) error {
	fmt.Fprintln(r.out, "Commands:")
	for _, cmd := range r.commandList() {
		fmt.Fprintf(r.out, "  %-46s %s\n", cmd.usage, cmd.summary)
	}
	fmt.Fprintf(r.out, "  %-46s %s\n", "exit", "leave the console")
	fmt.Fprintln(r.out, "\nSub-commands:")
	for _, line := range []string{
		"product add <name> <price> <stock> <category> <image-file> [description...]",
		"product update <id> <name> <price> <stock> <category> [image-file|-] [description...]",
		"product delete <id>",
		"table add <number> | table state <id> LIBRE|OCUPADA | table delete <id>",
		"user add <username> <password> <role> | user update <id> <password> <role> | user delete <id>",
		"sale show <id> | sale new | sale add <id> | sale remove <id> <product-id>",
		"sale update <id> <discount> <note...> | sale complete <id>",
	} {
		fmt.Fprintf(r.out, "  %s\n", line)
	}
	return nil
}

func (r *Runner) login(ctx context.Context, username, password string) error {
	if err := r.session.Login(ctx, username, password); err != nil {
		return err
	}
	role := ""
	if claims, err := r.session.Claims(); err == nil && claims.Role != "" {
		role = " (" + claims.Role + ")"
	}
	fmt.Fprintf(r.out, "Logged in as %s%s.\n", strings.TrimSpace(username), role)
	return nil
}

func (r *Runner) cmdLogin(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return usageError("login <username> [password]")
	}
	password := ""
	if len(args) == 2 {
		password = args[1]
	} else {
		var ok bool
		if password, ok = r.prompt("Password: "); !ok {
			return errLoginRequired
		}
	}
	return r.login(ctx, args[0], password)
}

func (r *Runner) cmdLogout(ctx context.Context, _ []string) error {
	if err := r.session.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(r.out, "Logged out.")
	return nil
}

func (r *Runner) cmdWhoami(_ context.Context, _ []string) error {
	if !r.session.IsAuthenticated() {
		fmt.Fprintln(r.out, "Not logged in.")
		return nil
	}
	claims, err := r.session.Claims()
	if err != nil {
		fmt.Fprintln(r.out, "Logged in (token details unavailable).")
		return nil
	}

	type whoami struct {
		Username  string `json:"username"`
		Role      string `json:"role,omitempty"`
		UserID    int64  `json:"id,omitempty"`
		ExpiresAt string `json:"expiresAt,omitempty"`
	}
	out := whoami{Username: claims.Subject, Role: claims.Role, UserID: claims.UserID}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time.Local().Format(displayTime)
	}
	return r.writeResponse(out, func(w io.Writer) {
		fmt.Fprintf(w, "User: %s\n", out.Username)
		if out.Role != "" {
			fmt.Fprintf(w, "Role: %s\n", out.Role)
		}
		if out.ExpiresAt != "" {
			fmt.Fprintf(w, "Session expires: %s\n", out.ExpiresAt)
		}
	})
}

// splitCategory takes a leading category argument off args, if there is one.
func splitCategory(args []string) (string, string) {
	if len(args) == 0 {
		return "", ""
	}
	first := strings.ToUpper(args[0])
	if first == "ALL" || first == "TODOS" {
		return first, strings.Join(args[1:], " ")
	}
	if _, ok := posapi.ParseCategory(first); ok {
		return first, strings.Join(args[1:], " ")
	}
	return "", strings.Join(args, " ")
}

func (r *Runner) cmdProducts(ctx context.Context, args []string) error {
	products, err := r.catalog.Load(ctx)
	if err != nil {
		r.alert(err)
	}
	category, search := splitCategory(args)
	filtered := catalog.Filter(products, category, search)
	return r.writeResponse(filtered, func(w io.Writer) { writeProducts(w, filtered) })
}

func (r *Runner) cmdLowStock(ctx context.Context, _ []string) error {
	alerts, err := r.catalog.LowStock(ctx)
	if err != nil {
		return err
	}
	return r.writeResponse(alerts, func(w io.Writer) {
		if len(alerts) == 0 {
			fmt.Fprintln(w, "- (no products under minimum stock)")
			return
		}
		for _, a := range alerts {
			fmt.Fprintf(w, "#%-4d %-28s stock=%d minimum=%d\n", a.ID, a.Name, a.Stock, a.MinStock)
		}
	})
}

func (r *Runner) cmdProduct(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("product add|update|delete ...")
	}
	switch strings.ToLower(args[0]) {
	case "add":
		if len(args) < 6 {
			return usageError("product add <name> <price> <stock> <category> <image-file> [description...]")
		}
		in, closeImage, err := productInput(args[1:5], args[5], args[6:])
		if err != nil {
			return err
		}
		defer closeImage()
		product, err := r.catalog.Create(ctx, in)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Product #%d %s created.\n", product.ID, product.Name)
		return nil
	case "update":
		if len(args) < 6 {
			return usageError("product update <id> <name> <price> <stock> <category> [image-file|-] [description...]")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		image := ""
		var description []string
		if len(args) > 6 {
			image, description = args[6], args[7:]
		}
		in, closeImage, err := productInput(args[2:6], image, description)
		if err != nil {
			return err
		}
		defer closeImage()
		product, err := r.catalog.Update(ctx, id, in)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Product #%d %s updated.\n", product.ID, product.Name)
		return nil
	case "delete":
		if len(args) != 2 {
			return usageError("product delete <id>")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		if err := r.catalog.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Product #%d deleted.\n", id)
		return nil
	default:
		return usageError("product add|update|delete ...")
	}
}

// productInput builds the form from name, price, stock and category fields. An image
// path of "" or "-" sends no image.
func productInput(fields []string, imagePath string, description []string) (posapi.ProductInput, func(), error) {
	noop := func() {}
	price, err := decimal.NewFromString(fields[1])
	if err != nil {
		return posapi.ProductInput{}, noop, fmt.Errorf("invalid price %q", fields[1])
	}
	stock, err := parseInt(fields[2])
	if err != nil {
		return posapi.ProductInput{}, noop, fmt.Errorf("invalid stock %q", fields[2])
	}
	category, ok := posapi.ParseCategory(fields[3])
	if !ok {
		return posapi.ProductInput{}, noop, fmt.Errorf("unknown category %q", fields[3])
	}

	in := posapi.ProductInput{
		Name:        fields[0],
		Price:       price,
		Stock:       stock,
		Category:    category,
		Description: strings.Join(description, " "),
	}
	if imagePath == "" || imagePath == "-" {
		return in, noop, nil
	}
	f, err := os.Open(imagePath)
	if err != nil {
		return posapi.ProductInput{}, noop, fmt.Errorf("open image: %w", err)
	}
	in.Image = f
	in.ImageName = filepath.Base(imagePath)
	return in, func() { _ = f.Close() }, nil
}

func (r *Runner) cmdTables(ctx context.Context, args []string) error {
	onlyFree := len(args) > 0 && strings.EqualFold(args[0], "free")
	list, err := r.tables.Load(ctx, onlyFree)
	if err != nil {
		r.alert(err)
	}
	return r.writeResponse(list, func(w io.Writer) { writeTables(w, list) })
}

func (r *Runner) cmdTable(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("table add|state|delete ...")
	}
	switch strings.ToLower(args[0]) {
	case "add":
		if len(args) != 2 {
			return usageError("table add <number>")
		}
		table, err := r.tables.Create(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Table %s created (#%d).\n", table.Number, table.ID)
		return nil
	case "state":
		if len(args) != 3 {
			return usageError("table state <id> LIBRE|OCUPADA")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		state, ok := posapi.ParseTableState(args[2])
		if !ok {
			return fmt.Errorf("unknown table state %q, use LIBRE or OCUPADA", args[2])
		}
		table, err := r.tables.SetState(ctx, id, state)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Table %s is now %s.\n", table.Number, table.State)
		return nil
	case "delete":
		if len(args) != 2 {
			return usageError("table delete <id>")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		if err := r.tables.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Table #%d deleted.\n", id)
		return nil
	default:
		return usageError("table add|state|delete ...")
	}
}

func (r *Runner) cmdUsers(ctx context.Context, _ []string) error {
	users, err := r.client.ListUsers(ctx)
	if err != nil {
		return err
	}
	return r.writeResponse(users, func(w io.Writer) {
		if len(users) == 0 {
			fmt.Fprintln(w, "- (no users)")
			return
		}
		for _, u := range users {
			fmt.Fprintf(w, "#%-4d %-20s %s\n", u.ID, u.Username, u.Role)
		}
	})
}

func (r *Runner) cmdUser(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("user add|update|delete ...")
	}
	switch strings.ToLower(args[0]) {
	case "add":
		if len(args) != 4 {
			return usageError("user add <username> <password> <role>")
		}
		role, ok := posapi.ParseRole(args[3])
		if !ok {
			return fmt.Errorf("unknown role %q, use ADMINISTRADOR, MESERO or CAJERO", args[3])
		}
		user, err := r.client.RegisterUser(ctx, posapi.RegisterUser{Username: args[1], Password: args[2], Role: role})
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "User %s created (#%d).\n", user.Username, user.ID)
		return nil
	case "update":
		if len(args) != 4 {
			return usageError("user update <id> <password> <role>")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		role, ok := posapi.ParseRole(args[3])
		if !ok {
			return fmt.Errorf("unknown role %q, use ADMINISTRADOR, MESERO or CAJERO", args[3])
		}
		if err := r.client.UpdateUser(ctx, id, posapi.UpdateUser{Password: args[2], Role: role}); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "User #%d updated.\n", id)
		return nil
	case "delete":
		if len(args) != 2 {
			return usageError("user delete <id>")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		if err := r.client.DeleteUser(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "User #%d deleted.\n", id)
		return nil
	default:
		return usageError("user add|update|delete ...")
	}
}

func (r *Runner) cmdDashboard(ctx context.Context, _ []string) error {
	stats, err := r.client.GetDashboardStats(ctx)
	if err != nil {
		return err
	}
	return r.writeResponse(stats, func(w io.Writer) { writeStats(w, stats) })
}
