package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/consents/cmd/app/commands"
	"github.com/allisson/consents/internal/app"
	"github.com/allisson/consents/internal/config"
)

func getScaCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "hash-psu-password",
			Usage: "Hash a PSU password for the built-in ASPSP connector",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "psu-id",
					Aliases:  []string{"p"},
					Required: true,
					Usage:    "PSU identifier",
				},
				&cli.StringFlag{
					Name:  "password",
					Value: "",
					Usage: "PSU password (read from stdin when omitted)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunHashPsuPassword(
					commands.DefaultIO(),
					container.Logger(),
					cmd.String("psu-id"),
					cmd.String("password"),
				)
			},
		},
	}
}
