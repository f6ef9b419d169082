package console

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/SimplyPrint/card-uid/internal/core"
	"github.com/SimplyPrint/card-uid/internal/logging"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitInterrupted = 130
)

// stage is what the session goroutine is doing, as seen by Interrupt.
type stage int

const (
	stageStarting stage = iota // establishing the context
	stageBusy                  // short PC/SC call on the session goroutine
	stagePrompt                // blocked reading the selection
	stageWaiting               // blocked in GetStatusChange
	stageDone
)

// cancelRetryInterval paces repeated Cancel calls. A cancel issued before
// GetStatusChange has actually blocked is lost, so it is repeated until the
// wait returns.
const cancelRetryInterval = 100 * time.Millisecond

// Runner drives one interactive session: establish a context, pick a reader,
// wait for a card and print its UID.
type Runner struct {
	factory core.ContextFactory
	in      io.Reader
	out     io.Writer
	errOut  io.Writer

	mu          sync.Mutex
	ctx         core.SmartCardContext
	stage       stage
	interrupted bool
	cancelling  bool
	released    bool
}

// NewRunner creates a Runner reading the selection from in, writing status
// lines to out and diagnostics to errOut.
func NewRunner(factory core.ContextFactory, in io.Reader, out, errOut io.Writer) *Runner {
	return &Runner{
		factory: factory,
		in:      in,
		out:     out,
		errOut:  errOut,
	}
}

// Run executes the session and returns the process exit code.
func (r *Runner) Run() int {
	defer r.enter(stageDone)

	ctx, err := r.factory.EstablishContext()
	if err != nil {
		fmt.Fprintf(r.errOut, "Failed to establish context: %s\n", core.FormatStatus(err))
		r.reportError(logging.CatSystem, "Failed to establish context", err, "")
		return ExitFailure
	}

	r.mu.Lock()
	r.ctx = ctx
	r.mu.Unlock()
	defer r.Close()

	if !r.enter(stageBusy) {
		return ExitInterrupted
	}
	readers, err := core.ListReaders(ctx)
	if err != nil {
		fmt.Fprintf(r.errOut, "Failed to list readers: %s\n", core.FormatStatus(err))
		r.reportError(logging.CatReader, "Failed to list readers", err, "")
	}

	if !r.enter(stagePrompt) {
		return ExitInterrupted
	}
	reader, err := SelectReader(r.in, r.out, readers)
	if errors.Is(err, ErrNoReaders) {
		fmt.Fprintln(r.out, "No readers found.")
		return ExitFailure
	}
	if err != nil {
		fmt.Fprintln(r.errOut, "Invalid selection.")
		logging.Warn(logging.CatConsole, "Invalid reader selection", map[string]any{
			"error": err.Error(),
		})
		return ExitFailure
	}

	if !r.enter(stageWaiting) {
		return ExitInterrupted
	}
	err = core.WaitForCard(ctx, reader.Name)
	if !r.enter(stageBusy) || core.IsCancelled(err) {
		if err != nil {
			fmt.Fprintf(r.errOut, "Failed to get status change: %s\n", core.FormatStatus(err))
		}
		logging.Info(logging.CatReader, "Wait for card cancelled", map[string]any{
			"reader": reader.Name,
		})
		return ExitInterrupted
	}
	if err != nil {
		fmt.Fprintf(r.errOut, "Failed to get status change: %s\n", core.FormatStatus(err))
		r.reportError(logging.CatReader, "Failed to wait for card", err, reader.Name)
	} else {
		fmt.Fprintf(r.out, "Card inserted in reader: %s\n", reader.Name)
	}

	resp, err := core.ReadUID(ctx, reader.Name)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrConnect):
			fmt.Fprintf(r.errOut, "Failed to connect to card: %s\n", core.FormatStatus(err))
		default:
			fmt.Fprintf(r.errOut, "Failed to transmit: %s\n", core.FormatStatus(err))
		}
		r.reportError(logging.CatCard, "Failed to read card UID", err, reader.Name)
		return ExitOK
	}

	fmt.Fprintf(r.out, "Card UID: %s\n", resp.Bytes())
	return ExitOK
}

// enter moves the session to s. It returns false, leaving the stage
// unchanged, if an interrupt arrived and s would start new PC/SC work.
func (r *Runner) enter(s stage) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.interrupted && s != stageDone {
		return false
	}
	r.stage = s
	return true
}

func (r *Runner) reportError(category logging.Category, message string, err error, readerName string) {
	data := map[string]any{
		"error": err.Error(),
	}
	if readerName != "" {
		data["reader"] = readerName
	}
	if code, ok := core.StatusCode(err); ok {
		data["status"] = fmt.Sprintf("0x%08X", code)
	}
	logging.Error(category, message, data)
	logging.CaptureError(err, message, data)
}

// Interrupt asks the session to stop. A pending wait for a card is cancelled
// and other PC/SC calls in progress are left to finish; the session returns
// ExitInterrupted at its next step instead of starting it.
//
// It returns false while the session is establishing its context or blocked
// on the selection prompt. Nothing can unblock those, so the caller has to
// Abort and exit itself.
func (r *Runner) Interrupt() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.interrupted = true
	switch r.stage {
	case stageStarting, stagePrompt:
		return false
	case stageWaiting:
		if !r.cancelling {
			r.cancelling = true
			go r.cancelWait()
		}
	}
	return true
}

// cancelWait cancels the context until the session leaves the wait.
func (r *Runner) cancelWait() {
	ticker := time.NewTicker(cancelRetryInterval)
	defer ticker.Stop()

	for {
		r.mu.Lock()
		if r.stage != stageWaiting || r.released {
			r.cancelling = false
			r.mu.Unlock()
			return
		}
		if err := r.ctx.Cancel(); err != nil {
			logging.Warn(logging.CatSystem, "Failed to cancel wait", map[string]any{
				"error": err.Error(),
			})
		}
		r.mu.Unlock()

		<-ticker.C
	}
}

// Abort releases the context and restores the terminal for a caller that is
// about to exit while the session goroutine is still blocked. Only valid
// after Interrupt returned false; no PC/SC call is in flight then.
func (r *Runner) Abort() {
	r.Close()
	RestoreTerminal()
}

// Close releases the PC/SC context. Only the first call has an effect.
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctx == nil || r.released {
		return
	}
	r.released = true

	if err := r.ctx.Release(); err != nil {
		logging.Warn(logging.CatSystem, "Failed to release context", map[string]any{
			"error": err.Error(),
		})
	}
}
