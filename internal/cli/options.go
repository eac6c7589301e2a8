package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"pos_console/internal/config"
)

type Options struct {
	Args    []string
	APIURL  string
	JSON    bool
	Debug   bool
	LogFile string
	Timeout time.Duration
}

// ParseFlags reads the command line. It returns flag.ErrHelp after printing usage for -h.
func ParseFlags(args []string, stderr io.Writer) (Options, error) {
	var opts Options
	var timeoutSeconds int

	fs := flag.NewFlagSet("pos-console", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s [flags] [command [args...]]\n", fs.Name())
		fmt.Fprintln(stderr, "Without a command an interactive console starts; type 'help' for the command list.")
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.APIURL, "api-url", "", "Backend base URL (API_BASE_URL)")
	fs.BoolVar(&opts.JSON, "json", false, "Output JSON format")
	fs.BoolVar(&opts.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&opts.LogFile, "log-file", "", "Log file path")
	fs.IntVar(&timeoutSeconds, "timeout", 0, "Request timeout in seconds")

	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}
	if timeoutSeconds < 0 {
		return Options{}, fmt.Errorf("--timeout must not be negative")
	}
	if timeoutSeconds > 0 {
		opts.Timeout = time.Duration(timeoutSeconds) * time.Second
	}
	opts.Args = fs.Args()
	return opts, nil
}

// Apply overrides cfg with the flags that were given.
func (o Options) Apply(cfg config.Config) config.Config {
	if url := strings.TrimSpace(o.APIURL); url != "" {
		cfg.APIBaseURL = url
	}
	if o.LogFile != "" {
		cfg.LogFile = o.LogFile
	}
	if o.Timeout > 0 {
		cfg.Timeout = o.Timeout
	}
	if o.Debug {
		cfg.Debug = true
	}
	return cfg
}
