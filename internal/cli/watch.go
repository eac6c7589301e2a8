package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"pos_console/internal/notify"
)

// cmdWatch follows the push channel until interrupted or until the channel ends.
func (r *Runner) cmdWatch(ctx context.Context, _ []string) error {
	if stats, err := r.client.GetDashboardStats(ctx); err == nil {
		if !r.options.JSON {
			writeStats(r.out, stats)
			fmt.Fprintln(r.out)
		}
	} else {
		r.alert(err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sub, err := r.listener.Connect(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	if !r.options.JSON {
		fmt.Fprintln(r.out, "Watching notifications and statistics, press Ctrl+C to stop.")
	}
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out, "Stopped.")
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				<-sub.Done()
				if err := sub.Err(); err != nil {
					return err
				}
				fmt.Fprintln(r.out, "Stopped.")
				return nil
			}
			if err := r.writeEvent(ev); err != nil {
				return err
			}
		}
	}
}

func (r *Runner) writeEvent(ev notify.Event) error {
	switch {
	case ev.Notification != nil:
		n := *ev.Notification
		return r.writeResponse(ev, func(w io.Writer) { writeNotification(w, n) })
	case ev.Stats != nil:
		stats := *ev.Stats
		return r.writeResponse(ev, func(w io.Writer) {
			fmt.Fprintln(w, "Statistics updated:")
			writeStats(w, stats)
		})
	}
	return nil
}
