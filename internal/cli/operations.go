package cli

import (
	"fmt"

	"github.com/attract-vse/attract/internal/shotsync"
	"github.com/spf13/cobra"
)

type stripCommand struct {
	op    shotsync.Operation
	use   string
	short string
	args  int
}

var operationCommands = []stripCommand{
	{op: shotsync.OpCreate, use: "create <strip-id>", short: "Create a shot for an unlinked movie or image strip", args: 1},
	{op: shotsync.OpRelink, use: "relink <strip-id> <shot-id>", short: "Link a strip to an existing shot", args: 2},
	{op: shotsync.OpDelete, use: "delete <strip-id>", short: "Delete the linked shot and clear the binding", args: 1},
	{op: shotsync.OpUnlink, use: "unlink <strip-id>", short: "Forget the linked shot without touching the tracker", args: 1},
}

func newOperationCommand(opts *RootOptions, sc stripCommand) *cobra.Command {
	return &cobra.Command{
		Use:   sc.use,
		Short: sc.short,
		Args:  exactArgs(sc.args),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := shotsync.Request{Op: sc.op, StripID: args[0]}
			if len(args) > 1 {
				req.RemoteID = args[1]
			}
			return runStripOperation(cmd, opts, req)
		},
	}
}

func newUpdateCommand(opts *RootOptions) *cobra.Command {
	var name, description string
	var cutIn int
	cmd := &cobra.Command{
		Use:   "update <strip-id>",
		Short: "Push the strip's name, description and cut range to its shot",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer sess.Close()

			flags := cmd.Flags()
			if flags.Changed("name") || flags.Changed("description") || flags.Changed("cut-in") {
				strip, err := sess.store.Get(cmd.Context(), args[0])
				if err != nil {
					return WrapExitError(ExitCommandError, fmt.Sprintf("load strip %q", args[0]), err)
				}
				if flags.Changed("name") {
					strip.Binding.Name = name
				}
				if flags.Changed("description") {
					strip.Binding.Description = description
				}
				if flags.Changed("cut-in") {
					strip.Binding.CutIn = cutIn
				}
				if err := sess.store.Put(cmd.Context(), strip); err != nil {
					return WrapExitError(ExitCommandError, fmt.Sprintf("save strip %q", args[0]), err)
				}
			}
			return sess.finish(cmd, opts, shotsync.Request{Op: shotsync.OpUpdate, StripID: args[0]})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "set the shot name before pushing")
	cmd.Flags().StringVar(&description, "description", "", "set the shot description before pushing")
	cmd.Flags().IntVar(&cutIn, "cut-in", 0, "set the first frame before pushing")
	return cmd
}

func runStripOperation(cmd *cobra.Command, opts *RootOptions, req shotsync.Request) error {
	sess, err := openSession(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer sess.Close()
	return sess.finish(cmd, opts, req)
}

// finish runs req and prints the strip as it was stored afterwards.
func (s *session) finish(cmd *cobra.Command, opts *RootOptions, req shotsync.Request) error {
	result := s.run(cmd.Context(), req)
	if result.Err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("%s %s", req.Op, req.StripID), result.Err)
	}
	strip, err := s.store.Get(cmd.Context(), req.StripID)
	if err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("reload strip %q", req.StripID), err)
	}
	view := newStripView(strip)
	lines := append([]string{fmt.Sprintf("%s: ok", req.Op)}, view.lines()...)
	return opts.formatter().Success(view, lines...)
}

func newReorderCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder",
		Short: "Number linked shots by timeline position and unlink deleted ones",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer sess.Close()

			result := sess.run(cmd.Context(), shotsync.Request{Op: shotsync.OpReorder})
			if result.Report != nil {
				if err := opts.formatter().Success(result.Report, reportLines(*result.Report)...); err != nil {
					return err
				}
			}
			if result.Err != nil {
				return WrapExitError(ExitFailure, "reorder", result.Err)
			}
			return nil
		},
	}
}

func reportLines(report shotsync.ReorderReport) []string {
	lines := make([]string, 0, len(report.Ordered)+len(report.Unlinked)+1)
	for _, entry := range report.Ordered {
		lines = append(lines, fmt.Sprintf("%4d  %s -> %s", entry.Order, entry.StripID, entry.RemoteID))
	}
	for _, id := range report.Unlinked {
		lines = append(lines, fmt.Sprintf("   -  %s unlinked (shot deleted)", id))
	}
	summary := fmt.Sprintf("ordered %d of %d linked strips, unlinked %d", len(report.Ordered), report.Total, len(report.Unlinked))
	if report.Truncated {
		summary += fmt.Sprintf(" (listing truncated at %d shots)", report.Listed)
	}
	return append(lines, summary)
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return NewExitError(ExitCommandError, fmt.Sprintf("%s expects %d argument(s), got %d", cmd.Name(), n, len(args)))
		}
		return nil
	}
}
