package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/consents/cmd/app/commands"
	"github.com/allisson/consents/internal/app"
	"github.com/allisson/consents/internal/config"
	cryptoDomain "github.com/allisson/consents/internal/crypto/domain"
)

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-crypto-password",
			Usage: "Create a crypto provider and its password, appended to the configured providers",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "id",
					Aliases: []string{"i"},
					Value:   "",
					Usage:   "Provider ID (defaults to <algorithm>-YYYY-MM-DD)",
				},
				&cli.StringFlag{
					Name:    "algorithm",
					Aliases: []string{"alg"},
					Value:   string(cryptoDomain.AESGCM),
					Usage:   "Encryption algorithm to use (aes-gcm or chacha20-poly1305)",
				},
				&cli.StringFlag{
					Name:  "kdf",
					Value: string(cryptoDomain.PBKDF2WithHmacSHA256),
					Usage: "Key derivation function (PBKDF2WithHmacSHA256 or PBKDF2WithHmacSHA512)",
				},
				&cli.IntFlag{
					Name:  "iterations",
					Value: cryptoDomain.MinIterations,
					Usage: "PBKDF2 iteration count",
				},
				&cli.StringFlag{
					Name:  "password",
					Value: "",
					Usage: "Base64 password to reuse (a random 32-byte password is generated when omitted)",
				},
				&cli.BoolFlag{
					Name:  "kms",
					Value: false,
					Usage: "Encrypt the password with the configured KMS_KEY_URI",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				kmsKeyURI := ""
				if cmd.Bool("kms") {
					kmsKeyURI = cfg.KMSKeyURI
				}

				return commands.RunCreateCryptoPassword(
					ctx,
					container.KMSService(),
					container.Logger(),
					commands.DefaultIO().Writer,
					commands.CryptoPasswordOptions{
						ProviderID: cmd.String("id"),
						Params: cryptoDomain.ProviderParams{
							Algorithm:  cryptoDomain.Algorithm(cmd.String("algorithm")),
							KDF:        cryptoDomain.KDF(cmd.String("kdf")),
							Iterations: int(cmd.Int("iterations")),
							KeyLength:  cryptoDomain.KeyLengthBits,
						},
						Password:          cmd.String("password"),
						KMSKeyURI:         kmsKeyURI,
						ExistingProviders: cfg.CryptoProviders,
						ExistingPasswords: cfg.CryptoPasswords,
					},
				)
			},
		},
	}
}
