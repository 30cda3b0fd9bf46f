package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/events"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/notify"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/printers"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/reconcile"
)

// Watch follows a session live and reprints the last few entries whenever
// the view changes, like the floating chat overlay. An optional message is
// submitted once the first snapshot arrives.
type Watch struct {
	Backend  reconcile.Backend
	Channel  string
	Session  string
	Options  reconcile.Options

	// FetchLimit caps how many records each snapshot carries; 0 means all.
	FetchLimit int

	Message  string
	ShowID   bool
	Notifier notify.Notifier
	Log      *slog.Logger
	Out      io.Writer

	// Once stops after the submitted message is reconciled or failed, or
	// after the first view when there is nothing to submit.
	Once bool
	// PollEvery is how often Once re-checks the view; defaults to 250ms.
	PollEvery time.Duration
}

func (n *Watch) pollEvery() time.Duration {
	if n.PollEvery > 0 {
		return n.PollEvery
	}
	return 250 * time.Millisecond
}

func (n *Watch) Do(ctx context.Context) error {
	if n.Backend == nil {
		return errors.New("can not watch, no backend")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctrl := reconcile.NewController(ctx, reconcile.Config{
		Backend:    n.Backend,
		Notifier:   n.Notifier,
		Options:    n.Options,
		Component:  events.ComponentID("watch"),
		Log:        n.Log,
		FetchLimit: n.FetchLimit,
		RetryEvery: 2 * time.Second,
	})
	defer ctrl.Close()

	if err := ctrl.SwitchSession(ctx, n.Channel, n.Session); err != nil {
		return err
	}

	pp := printers.PrettyPrint{ShowID: n.ShowID, Out: n.Out}
	var (
		localID   string
		submitted bool
		result    <-chan error
		poll      <-chan time.Time
	)
	if n.Once {
		ticker := time.NewTicker(n.pollEvery())
		defer ticker.Stop()
		poll = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-poll:
			// Catches a settled view whose change event was never seen.
			vm := ctrl.View()
			if !submitted || result != nil || vm.Loading || !settled(vm, localID) {
				continue
			}
			pp.Title(fmt.Sprintf("%s/%s", vm.Channel, vm.Session))
			pp.View(vm)
			return nil
		case err, ok := <-result:
			result = nil
			if ok && err != nil {
				var sendErr *reconcile.SendError
				if errors.As(err, &sendErr) && n.Out != nil {
					_, _ = fmt.Fprintf(n.Out, "send failed: %v\n", sendErr.Err)
				}
				if n.Once {
					return err
				}
			}
		case msg := <-ctrl.Events():
			view, ok := msg.(events.ViewChangeMsg)
			if !ok || view.Loading {
				continue
			}
			vm := ctrl.View()
			pp.Title(fmt.Sprintf("%s/%s", vm.Channel, vm.Session))
			pp.View(vm)

			if !submitted && n.Message != "" {
				submitted = true
				localID, result = ctrl.Submit(ctx, n.Message)
				continue
			}
			if n.Once && settled(vm, localID) {
				return nil
			}
		}
	}
}

// settled reports whether localID no longer waits on the backend.
func settled(vm reconcile.ViewModel, localID string) bool {
	if localID == "" {
		return true
	}
	for _, e := range vm.Entries {
		if e.Key != localID {
			continue
		}
		return e.Status == reconcile.StatusConfirmed || e.Status == reconcile.StatusFailed
	}
	return false
}
