package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/hablas/internal/app"
	"github.com/dropDatabas3/hablas/internal/auth"
	"github.com/dropDatabas3/hablas/internal/security/password"
)

func newSessionsCmd(c *cli) *cobra.Command {
	sessionsCmd := &cobra.Command{Use: "sessions", Short: "Operaciones sobre sesiones"}

	var retention time.Duration
	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Borrar sesiones terminadas y purgar revocaciones vencidas",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				r := retention
				if r <= 0 {
					r = a.Config.SessionRetention()
				}
				n, err := a.Sessions.Cleanup(ctx, r)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "sesiones borradas: %d\n", n)
				return nil
			})
		},
	}
	cleanupCmd.Flags().DurationVar(&retention, "retention", 0, "Conservar sesiones terminadas por este tiempo (default: config)")

	revokeAllCmd := &cobra.Command{
		Use:   "revoke-all <email>",
		Short: "Revocar todas las sesiones activas de una cuenta",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := lookup(ctx, a, args[0])
				if err != nil {
					return err
				}
				n, err := a.Auth.LogoutAll(ctx, &auth.Identity{PrincipalID: p.ID, Email: p.Email}, cliOrigin)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "sesiones revocadas: %d\n", n)
				return nil
			})
		},
	}

	sessionsCmd.AddCommand(cleanupCmd, revokeAllCmd)
	return sessionsCmd
}

func newMigrateCmd(c *cli) *cobra.Command {
	migrateCmd := &cobra.Command{Use: "migrate", Short: "Migraciones de PostgreSQL"}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Aplicar migraciones pendientes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if a.PG == nil {
					return errDurableRequired
				}
				applied, err := a.PG.Migrate(ctx)
				if err != nil {
					return err
				}
				if len(applied) == 0 {
					fmt.Fprintln(c.out, "nada que aplicar")
					return nil
				}
				fmt.Fprintf(c.out, "aplicadas: %v\n", applied)
				return nil
			})
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Revertir la última migración aplicada",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if a.PG == nil {
					return errDurableRequired
				}
				v, err := a.PG.MigrateDown(ctx)
				if err != nil {
					return err
				}
				if v == 0 {
					fmt.Fprintln(c.out, "no hay migraciones aplicadas")
					return nil
				}
				fmt.Fprintf(c.out, "revertida: %d\n", v)
				return nil
			})
		},
	}

	migrateCmd.AddCommand(upCmd, downCmd)
	return migrateCmd
}

var errDurableRequired = errors.New("DATABASE_URL es requerido para esta operación")

func newHashPasswordCmd(c *cli) *cobra.Command {
	var bcryptCost int
	var useBcrypt bool
	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Generar un hash argon2id (o bcrypt) para cargas manuales",
		RunE: func(cmd *cobra.Command, args []string) error {
			plain, err := c.promptPassword("Contraseña")
			if err != nil {
				return err
			}
			var h string
			if useBcrypt {
				h, err = password.HashBcrypt(plain, bcryptCost)
			} else {
				h, err = password.Hash(password.Default, plain)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, h)
			return nil
		},
	}
	cmd.Flags().BoolVar(&useBcrypt, "bcrypt", false, "Generar bcrypt en lugar de argon2id")
	cmd.Flags().IntVar(&bcryptCost, "cost", password.DefaultBcryptCost, "Costo bcrypt")
	return cmd
}
