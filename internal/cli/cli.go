package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"pos_console/internal/catalog"
	"pos_console/internal/notify"
	"pos_console/internal/posapi"
	"pos_console/internal/sale"
	"pos_console/internal/session"
	"pos_console/internal/tables"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	errLoginRequired = errors.New("login required")
	errUsage         = errors.New("usage")
)

type Params struct {
	fx.In

	Options  Options
	Logger   *zap.Logger
	Session  *session.Session
	Client   *posapi.Client
	Catalog  *catalog.Loader
	Tables   *tables.Loader
	Composer *sale.Composer
	Ledger   *sale.Ledger
	Listener *notify.Listener
}

type Runner struct {
	options  Options
	logger   *zap.Logger
	session  *session.Session
	client   *posapi.Client
	catalog  *catalog.Loader
	tables   *tables.Loader
	composer *sale.Composer
	ledger   *sale.Ledger
	listener *notify.Listener

	in          *bufio.Scanner
	out         io.Writer
	errOut      io.Writer
	interactive bool
	commands    map[string]command
}

func NewRunner(p Params) *Runner {
	return newRunner(p, os.Stdin, os.Stdout, os.Stderr)
}

func newRunner(p Params, in io.Reader, out, errOut io.Writer) *Runner {
	r := &Runner{
		options:  p.Options,
		logger:   p.Logger.Named("cli"),
		session:  p.Session,
		client:   p.Client,
		catalog:  p.Catalog,
		tables:   p.Tables,
		composer: p.Composer,
		ledger:   p.Ledger,
		listener: p.Listener,
		in:       bufio.NewScanner(in),
		out:      out,
		errOut:   errOut,
	}
	r.commands = r.commandTable()
	r.composer.OnSubmitted(r.refreshAfterSale)
	return r
}

func (r *Runner) Execute() error {
	if len(r.options.Args) == 0 {
		r.interactive = true
		return r.runREPL(context.Background())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return r.runOneShot(ctx, r.options.Args)
}

func (r *Runner) runOneShot(ctx context.Context, args []string) error {
	if err := r.handle(ctx, args); err != nil {
		return errors.New(friendlyError(err))
	}
	return nil
}

func (r *Runner) runREPL(ctx context.Context) error {
	fmt.Fprintln(r.out, "POS console (type 'help' for commands, 'exit' to quit)")
	if claims, err := r.session.Claims(); err == nil {
		fmt.Fprintf(r.out, "Session restored for %s.\n", claims.Subject)
	}

	for {
		line, ok := r.prompt("> ")
		if !ok {
			return r.in.Err()
		}

		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		switch strings.ToLower(args[0]) {
		case "exit", "quit":
			return nil
		}

		if err := r.handle(ctx, args); err != nil {
			r.alert(err)
		}
	}
}

// handle runs one command behind the route guard.
func (r *Runner) handle(ctx context.Context, args []string) error {
	name := strings.ToLower(args[0])
	cmd, ok := r.commands[name]
	if !ok {
		return fmt.Errorf("%w: unknown command %q, type 'help'", errUsage, args[0])
	}

	r.logger.Info("command received", zap.String("command", name), zap.Int("args", len(args)-1))

	if cmd.protected && !r.session.IsAuthenticated() {
		if err := r.requireLogin(ctx); err != nil {
			return err
		}
	}

	err := cmd.run(ctx, args[1:])
	if err != nil {
		r.logger.Warn("command failed", zap.String("command", name), zap.Error(err))
	}
	return err
}

// requireLogin is the console's redirect to the login screen.
func (r *Runner) requireLogin(ctx context.Context) error {
	if !r.interactive {
		return errLoginRequired
	}
	fmt.Fprintln(r.out, "Login required.")
	username, ok := r.prompt("Username: ")
	if !ok || strings.TrimSpace(username) == "" {
		return errLoginRequired
	}
	password, ok := r.prompt("Password: ")
	if !ok {
		return errLoginRequired
	}
	return r.login(ctx, username, password)
}

func (r *Runner) prompt(label string) (string, bool) {
	fmt.Fprint(r.out, label)
	if !r.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(r.in.Text()), true
}

// alert prints err as a one-line message; the state it happened in is left as is.
// With --json it goes to stderr so stdout stays a JSON document.
func (r *Runner) alert(err error) {
	w := r.out
	if r.options.JSON {
		w = r.errOut
	}
	fmt.Fprintf(w, "! %s\n", friendlyError(err))
	if errors.Is(err, posapi.ErrUnauthorized) {
		fmt.Fprintln(w, "Please log in again.")
	}
}

// writeResponse prints data as JSON with --json, otherwise through human.
func (r *Runner) writeResponse(data any, human func(io.Writer)) error {
	if r.options.JSON {
		return json.NewEncoder(r.out).Encode(data)
	}
	human(r.out)
	return nil
}

func friendlyError(err error) string {
	var (
		authErr *session.AuthenticationError
		netErr  *posapi.NetworkError
		apiErr  *posapi.APIError
		valErr  *sale.ValidationError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, errLoginRequired), errors.Is(err, session.ErrNotAuthenticated):
		return "Login required: run 'login <username>' first."
	case errors.As(err, &authErr):
		return "Login failed: " + authErr.Message
	case errors.Is(err, posapi.ErrUnauthorized):
		return "Your session was rejected by the server."
	case errors.Is(err, posapi.ErrForbidden):
		return "Not allowed for your role."
	case errors.Is(err, notify.ErrSessionEnded):
		return "Live updates stopped: the session ended."
	case errors.As(err, &netErr):
		return "Backend unreachable: " + netErr.Err.Error()
	case errors.Is(err, posapi.ErrNotFound) && errors.As(err, &apiErr) && apiErr.Message != "":
		return "Not found: " + apiErr.Message
	case errors.Is(err, posapi.ErrNotFound):
		return "Not found."
	case errors.As(err, &apiErr):
		if apiErr.Message != "" {
			return fmt.Sprintf("Server error (%d): %s", apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Sprintf("Server error (%s)", apiErr.Status)
	case errors.As(err, &valErr):
		return "Invalid input: " + valErr.Error()
	default:
		return err.Error()
	}
}
