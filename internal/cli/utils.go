package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"pos_console/internal/sale"
)

const dateLayout = "2006-01-02"

type periodRange struct {
	From time.Time
	To   time.Time
}

func usageError(usage string) error {
	return fmt.Errorf("%w: %s", errUsage, usage)
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(value), "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", value)
	}
	return id, nil
}

func parseInt(value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", value)
	}
	return n, nil
}

// resolvePeriod reads up to two YYYY-MM-DD arguments. With none the period is today;
// with one it is that single day.
func resolvePeriod(args []string) (periodRange, error) {
	now := time.Now()
	if len(args) == 0 {
		return periodRange{From: startOfDay(now), To: endOfDay(now)}, nil
	}

	from, err := parseDate(args[0])
	if err != nil {
		return periodRange{}, fmt.Errorf("invalid from date %q, use YYYY-MM-DD", args[0])
	}
	to := from
	if len(args) > 1 {
		if to, err = parseDate(args[1]); err != nil {
			return periodRange{}, fmt.Errorf("invalid to date %q, use YYYY-MM-DD", args[1])
		}
	}

	period := periodRange{From: startOfDay(from), To: endOfDay(to)}
	if period.To.Before(period.From) {
		return periodRange{}, &sale.ValidationError{Field: "to", Message: "must not be before from"}
	}
	return period, nil
}

func parseDate(value string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, strings.TrimSpace(value), time.Local)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
