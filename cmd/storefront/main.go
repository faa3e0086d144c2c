package main

import (
	"fmt"
	"os"

	"github.com/cicadacove/storefront/internal/config"
	"github.com/cicadacove/storefront/internal/domain"
	"github.com/cicadacove/storefront/internal/logger"
	"github.com/cicadacove/storefront/internal/repository"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "storefront",
		Usage: "Cicada Cove vintage storefront",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API, gRPC health endpoint and background workers",
				Action: withConfig(serve),
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations",
				Action: withConfig(migrate),
			},
			{
				Name:  "admin",
				Usage: "manage storefront administrators",
				Subcommands: []*cli.Command{
					{
						Name:  "grant",
						Usage: "give a user the admin role",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "user", Usage: "identity provider user id", Required: true},
							&cli.StringFlag{Name: "email", Usage: "contact email"},
						},
						Action: withConfig(grantAdmin),
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type action func(c *cli.Context, cfg *config.Config, log *logrus.Logger) error

func withConfig(fn action) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return err
		}
		return fn(c, cfg, log)
	}
}

func migrate(_ *cli.Context, cfg *config.Config, log *logrus.Logger) error {
	cred := cfg.Credentials()
	repo, err := repository.NewRepository(cred)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.RunMigrations(cred); err != nil {
		return err
	}
	log.WithField("driver", cred.Driver).Info("migrations applied")
	return nil
}

func grantAdmin(c *cli.Context, cfg *config.Config, log *logrus.Logger) error {
	repo, err := repository.NewRepository(cfg.Credentials())
	if err != nil {
		return err
	}
	defer repo.Close()

	profile := &domain.Profile{
		ID:    c.String("user"),
		Email: c.String("email"),
		Role:  domain.RoleAdmin,
	}
	if err := repo.UpsertProfile(c.Context, profile); err != nil {
		return err
	}
	log.WithField("user_id", profile.ID).Info("admin role granted")
	return nil
}
