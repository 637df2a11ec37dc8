package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ding113/asset-cache-buster/internal/cachebuster"
	"github.com/ding113/asset-cache-buster/internal/client"
	"github.com/ding113/asset-cache-buster/internal/pkg/httpclient"
	"github.com/ding113/asset-cache-buster/internal/pkg/logger"
	"github.com/urfave/cli/v3"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "cachectl",
		Usage: "manage the asset cache buster",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "base URL of the cache buster service",
				Sources: cli.NewValueSourceChain(cli.EnvVar("CACHECTL_SERVER")),
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "admin token",
				Sources: cli.NewValueSourceChain(cli.EnvVar("CACHECTL_TOKEN")),
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "request timeout",
				Value: 10 * time.Second,
			},
			&cli.BoolFlag{
				Name:        "debug",
				Usage:       "enable debug logging",
				HideDefault: true,
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			level := "warn"
			if cmd.Bool("debug") {
				level = "debug"
			}
			logger.Init(logger.Config{Level: level, Format: "text", Output: cmd.Root().ErrWriter})
			return ctx, nil
		},
		Commands: []*cli.Command{
			settingsCommand(),
			{
				Name:   "clear",
				Usage:  "bump the manual clear time now",
				Action: clearAction,
			},
			{
				Name:   "token",
				Usage:  "show the current cache-busting token",
				Action: tokenAction,
			},
			{
				Name:      "rewrite",
				Usage:     "append the current token to asset URLs",
				ArgsUsage: "URL [URL...]",
				Action:    rewriteAction,
			},
			{
				Name:      "refresh-link",
				Usage:     "create a one-time page refresh link",
				ArgsUsage: "URL",
				Action:    refreshLinkAction,
			},
		},
	}
}

func settingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "show or change settings",
		Commands: []*cli.Command{
			{
				Name:   "get",
				Usage:  "show settings and clock state",
				Action: settingsGetAction,
			},
			{
				Name:  "set",
				Usage: "change settings, unset flags keep their current value",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "strategy",
						Usage: "every_time | every_period | never",
					},
					&cli.StringFlag{
						Name:  "period",
						Usage: "period in minutes for every_period",
					},
					&cli.BoolFlag{
						Name:  "show-trigger",
						Usage: "expose the page refresh link",
					},
				},
				Action: settingsSetAction,
			},
		},
	}
}

func newClient(cmd *cli.Command) *client.Client {
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = cmd.Duration("timeout")
	logger.Debug().Str("server", cmd.String("server")).Msg("Using server")
	return client.New(cmd.String("server"), cmd.String("token"), cfg)
}

func settingsGetAction(ctx context.Context, cmd *cli.Command) error {
	resp, err := newClient(cmd).GetSettings(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd.Root().Writer, resp)
}

func settingsSetAction(ctx context.Context, cmd *cli.Command) error {
	c := newClient(cmd)

	// PUT 会把缺失字段重置为默认值，先取当前值再合并
	current, err := c.GetSettings(ctx)
	if err != nil {
		return err
	}
	raw := current.Settings.Raw()

	if cmd.IsSet("strategy") {
		s := cmd.String("strategy")
		if !cachebuster.Strategy(strings.ToLower(strings.TrimSpace(s))).Valid() {
			return fmt.Errorf("unknown strategy %q", s)
		}
		raw[cachebuster.KeyStrategy] = s
	}
	if cmd.IsSet("period") {
		raw[cachebuster.KeyPeriodMinutes] = cmd.String("period")
	}
	if cmd.IsSet("show-trigger") {
		raw[cachebuster.KeyShowManualTrigger] = cmd.Bool("show-trigger")
	}

	resp, err := c.UpdateSettings(ctx, raw)
	if err != nil {
		return err
	}
	return printJSON(cmd.Root().Writer, resp)
}

func clearAction(ctx context.Context, cmd *cli.Command) error {
	state, err := newClient(cmd).Clear(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd.Root().Writer, state)
}

func tokenAction(ctx context.Context, cmd *cli.Command) error {
	resp, err := newClient(cmd).Token(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd.Root().Writer, resp)
}

func rewriteAction(ctx context.Context, cmd *cli.Command) error {
	urls := cmd.Args().Slice()
	if len(urls) == 0 {
		return fmt.Errorf("at least one URL is required")
	}

	resp, err := newClient(cmd).Rewrite(ctx, urls)
	if err != nil {
		return err
	}
	for _, u := range resp.URLs {
		fmt.Fprintln(cmd.Root().Writer, u)
	}
	return nil
}

func refreshLinkAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("exactly one URL is required")
	}

	link, err := newClient(cmd).RefreshLink(ctx, cmd.Args().First())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.Root().Writer, link)
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
