package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

type statusView struct {
	Server    string     `json:"server"`
	Store     string     `json:"store"`
	Connected bool       `json:"connected"`
	Strip     *stripView `json:"strip,omitempty"`
}

func newStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status [strip-id]",
		Short: "Check the server credentials and show a strip's link",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer sess.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), sess.cfg.Timeout)
			defer cancel()
			if err := sess.engine.CheckConnection(ctx); err != nil {
				return WrapExitError(ExitFailure, "Failed connection to "+sess.cfg.Server, err)
			}

			view := statusView{Server: sess.cfg.Server, Store: sess.cfg.Store, Connected: true}
			lines := []string{fmt.Sprintf("Connected to %s", sess.cfg.Server)}
			if len(args) == 1 {
				strip, err := sess.store.Get(cmd.Context(), args[0])
				if err != nil {
					return WrapExitError(ExitCommandError, fmt.Sprintf("load strip %q", args[0]), err)
				}
				sv := newStripView(strip)
				view.Strip = &sv
				lines = append(lines, sv.lines()...)
			}
			return opts.formatter().Success(view, lines...)
		},
	}
}
