package service

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"penwatch/internal/core/broadcast"
	"penwatch/internal/core/coordinator"
	"penwatch/internal/core/directive"
	"penwatch/internal/platform/logger"
)

// Console is the coordinator surface the operator drives
type Console interface {
	Resumer
	Pause(ctx context.Context, src coordinator.Source) coordinator.Outcome
	Say(ctx context.Context, src coordinator.Source, msg string) (broadcast.Report, error)
}

// Operator reads commands from a local terminal, one per line
type Operator struct {
	ctl  Console
	in   io.Reader
	out  io.Writer
	exit func()
	log  *logger.Logger
}

// NewOperator builds a console over in and out; exit runs on EXIT
func NewOperator(ctl Console, in io.Reader, out io.Writer, exit func()) *Operator {
	if out == nil {
		out = io.Discard
	}
	if exit == nil {
		exit = func() {}
	}
	return &Operator{ctl: ctl, in: in, out: out, exit: exit, log: logger.Named("operator")}
}

// Run processes lines until EXIT, end of input or ctx is done
// A read error ends the console only and is logged, not returned
// Reads happen on a separate goroutine since terminal reads cannot be interrupted
func (o *Operator) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(o.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	o.prompt()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			if err != nil {
				o.log.Warn().Err(err).Msg("operator input failed")
			}
			o.log.Info().Msg("operator input closed")
			return nil
		case line := <-lines:
			if o.Exec(ctx, line) {
				return nil
			}
			o.prompt()
		}
	}
}

// Exec runs one command line and reports whether it was EXIT
func (o *Operator) Exec(ctx context.Context, line string) bool {
	d, err := directive.ParseOperator(line)
	if err != nil {
		fmt.Fprintf(o.out, "error: %v\n", err)
		return false
	}

	src := coordinator.OperatorSource()
	switch d.Kind {
	case directive.KindPause:
		out := o.ctl.Pause(ctx, src)
		fmt.Fprintf(o.out, "paused (changed=%v, delivered=%d)\n", out.Changed, out.Report.Delivered)
	case directive.KindResume:
		out := o.ctl.Resume(ctx, src)
		fmt.Fprintf(o.out, "resumed (changed=%v, delivered=%d)\n", out.Changed, out.Report.Delivered)
	case directive.KindText:
		rep, err := o.ctl.Say(ctx, src, d.Text)
		if err != nil {
			fmt.Fprintf(o.out, "error: %v\n", err)
			return false
		}
		fmt.Fprintf(o.out, "sent to %d peer(s)\n", rep.Delivered)
	case directive.KindExit:
		o.log.Info().Msg("operator requested exit")
		fmt.Fprintln(o.out, "exiting")
		o.exit()
		return true
	}
	return false
}

func (o *Operator) prompt() { fmt.Fprint(o.out, "> ") }
