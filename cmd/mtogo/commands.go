package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mikey-austin/mtogo/internal/core"
)

// responder runs one service call against the selected device.
type responder func(ctx context.Context, app *app, device string, args []string) (any, error)

func deviceCommand(use string, short string, args cobra.PositionalArgs, selector func() string, fn responder) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			if app == nil {
				return errNoApp
			}
			ctx, cancel := withTimeout(cmd.Context(), app.timeout)
			defer cancel()

			result, err := fn(ctx, app, selector(), args)
			if err != nil {
				return err
			}
			return app.print(result)
		},
	}
}

func lsCommand() *cobra.Command {
	return deviceCommand("ls", "List online devices", cobra.NoArgs, func() string { return "" },
		func(ctx context.Context, app *app, _ string, _ []string) (any, error) {
			return app.service.ListDevices(ctx)
		})
}

func nextCommand(selector func() string) *cobra.Command {
	return deviceCommand("next", "Skip to the next item", cobra.NoArgs, selector,
		func(ctx context.Context, app *app, device string, _ []string) (any, error) {
			return app.service.Next(ctx, device)
		})
}

func prevCommand(selector func() string) *cobra.Command {
	return deviceCommand("prev", "Go back to the previous item", cobra.NoArgs, selector,
		func(ctx context.Context, app *app, device string, _ []string) (any, error) {
			return app.service.Previous(ctx, device)
		})
}

func toggleCommand(selector func() string) *cobra.Command {
	return deviceCommand("toggle", "Toggle between playing and paused", cobra.NoArgs, selector,
		func(ctx context.Context, app *app, device string, _ []string) (any, error) {
			return app.service.Toggle(ctx, device)
		})
}

func volumeCommand(selector func() string) *cobra.Command {
	cmd := deviceCommand("vol <+n|-n>", "Change the volume by n percent", cobra.ExactArgs(1), selector,
		func(ctx context.Context, app *app, device string, args []string) (any, error) {
			delta, err := parseVolumeDelta(args[0])
			if err != nil {
				return nil, err
			}
			return app.service.Volume(ctx, device, delta)
		})
	cmd.Example = "  mtogo vol +10\n  mtogo vol -- -10"
	return cmd
}

func currentCommand(selector func() string) *cobra.Command {
	return deviceCommand("current", "Show the item being played", cobra.NoArgs, selector,
		func(ctx context.Context, app *app, device string, _ []string) (any, error) {
			return app.service.Current(ctx, device)
		})
}

func queueCommand(selector func() string) *cobra.Command {
	var search bool
	cmd := deviceCommand("queue <song|url|query...>", "Queue a song after the current one", cobra.MinimumNArgs(1), selector,
		func(ctx context.Context, app *app, device string, args []string) (any, error) {
			return app.service.Queue(ctx, device, strings.Join(args, " "), search)
		})
	cmd.Flags().BoolVarP(&search, "search", "s", false, "search the video backend instead of the catalog")
	return cmd
}

func queueCategoryCommand(selector func() string) *cobra.Command {
	var shuffle bool
	cmd := deviceCommand("queue-category <category>", "Queue every song in a category", cobra.ExactArgs(1), selector,
		func(ctx context.Context, app *app, device string, args []string) (any, error) {
			return app.service.QueueCategory(ctx, device, args[0], shuffle)
		})
	cmd.Flags().BoolVar(&shuffle, "shuffle", false, "shuffle before queueing")
	return cmd
}

func nowCommand(selector func() string) *cobra.Command {
	return deviceCommand("now [amount]", "List titles around the current item", cobra.RangeArgs(0, 1), selector,
		func(ctx context.Context, app *app, device string, args []string) (any, error) {
			var amount *uint
			if len(args) == 1 {
				value, err := strconv.ParseUint(args[0], 10, 32)
				if err != nil {
					return nil, &core.CLIError{Code: core.ExitUsage, Msg: "amount must be a non-negative number", Err: err}
				}
				n := uint(value)
				amount = &n
			}
			return app.service.Now(ctx, device, amount)
		})
}

func resetCursorCommand(selector func() string) *cobra.Command {
	return deviceCommand("reset-cursor", "Queue the next song right after the current one", cobra.NoArgs, selector,
		func(ctx context.Context, app *app, device string, _ []string) (any, error) {
			return app.service.ResetCursor(ctx, device)
		})
}

func pingCommand(selector func() string) *cobra.Command {
	return deviceCommand("ping", "Send a heartbeat", cobra.NoArgs, selector,
		func(ctx context.Context, app *app, device string, _ []string) (any, error) {
			return app.service.Ping(ctx, device)
		})
}

func versionCommand(selector func() string) *cobra.Command {
	return deviceCommand("version", "Ask the device for its version", cobra.NoArgs, selector,
		func(ctx context.Context, app *app, device string, _ []string) (any, error) {
			return app.service.Version(ctx, device)
		})
}

func rawCommand(selector func() string) *cobra.Command {
	return deviceCommand("raw <json|file|->", "Send a command given as JSON", cobra.ExactArgs(1), selector,
		func(ctx context.Context, app *app, device string, args []string) (any, error) {
			data, err := rawInput(args[0])
			if err != nil {
				return nil, core.WrapError(core.ExitUsage, "read command", err)
			}
			return app.service.Raw(ctx, device, data)
		})
}

// rawInput treats arguments that look like JSON as the command itself and
// anything else as a file path, with "-" meaning stdin.
func rawInput(arg string) ([]byte, error) {
	trimmed := strings.TrimSpace(arg)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "\"") {
		return []byte(trimmed), nil
	}
	data, err := readFileOrStdin(trimmed, os.Stdin)
	if err != nil {
		return nil, err
	}
	return bytes.TrimSpace(data), nil
}

func parseVolumeDelta(arg string) (int, error) {
	delta, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, &core.CLIError{Code: core.ExitUsage, Msg: fmt.Sprintf("invalid volume change %q", arg), Err: err}
	}
	return delta, nil
}
