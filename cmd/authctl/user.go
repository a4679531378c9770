package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/hablas/internal/app"
	"github.com/dropDatabas3/hablas/internal/auth"
	"github.com/dropDatabas3/hablas/internal/domain/repository"
)

func newUserCmd(c *cli) *cobra.Command {
	userCmd := &cobra.Command{Use: "user", Short: "Operaciones sobre cuentas"}

	var email, name, role, plain string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Crear una cuenta (pide la contraseña si no se pasa --password)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return errors.New("--email es requerido")
			}
			if plain == "" {
				p, err := c.promptPassword("Contraseña")
				if err != nil {
					return err
				}
				plain = p
			}
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := a.Auth.CreatePrincipal(ctx, nil, auth.CreatePrincipalInput{
					Email: email, Name: name, Password: plain, Role: role,
				}, cliOrigin)
				if err != nil {
					return describe(err)
				}
				fmt.Fprintf(c.out, "cuenta creada: id=%s email=%s role=%s\n", p.ID, p.Email, p.Role)
				return nil
			})
		},
	}
	createCmd.Flags().StringVar(&email, "email", "", "Email de la cuenta")
	createCmd.Flags().StringVar(&name, "name", "", "Nombre visible")
	createCmd.Flags().StringVar(&role, "role", "viewer", "Rol: admin|editor|viewer")
	createCmd.Flags().StringVar(&plain, "password", "", "Contraseña (evitar en shells con historial)")

	roleCmd := &cobra.Command{
		Use:   "role <email> <admin|editor|viewer>",
		Short: "Cambiar el rol de una cuenta (revoca sus sesiones)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := lookup(ctx, a, args[0])
				if err != nil {
					return err
				}
				if err := a.Auth.SetRole(ctx, nil, p.ID, args[1], cliOrigin); err != nil {
					return describe(err)
				}
				fmt.Fprintf(c.out, "rol actualizado: %s -> %s\n", p.Email, args[1])
				return nil
			})
		},
	}

	deactivateCmd := &cobra.Command{
		Use:   "deactivate <email>",
		Short: "Desactivar una cuenta (revoca sus sesiones)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := lookup(ctx, a, args[0])
				if err != nil {
					return err
				}
				if err := a.Auth.Deactivate(ctx, nil, p.ID, cliOrigin); err != nil {
					return describe(err)
				}
				fmt.Fprintf(c.out, "cuenta desactivada: %s\n", p.Email)
				return nil
			})
		},
	}

	userCmd.AddCommand(createCmd, roleCmd, deactivateCmd)
	return userCmd
}

func lookup(ctx context.Context, a *app.App, email string) (*repository.Principal, error) {
	p, err := a.Principals.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("no existe una cuenta con email %q", email)
	}
	return p, err
}

// describe traduce los errores del servicio a mensajes de CLI.
func describe(err error) error {
	var pe *auth.PolicyError
	switch {
	case errors.As(err, &pe):
		return fmt.Errorf("contraseña rechazada: %v", pe.Reasons)
	case errors.Is(err, auth.ErrEmailTaken):
		return errors.New("el email ya está registrado")
	case errors.Is(err, auth.ErrInvalidInput):
		return errors.New("datos inválidos (email o rol)")
	case errors.Is(err, auth.ErrNotFound):
		return errors.New("cuenta inexistente")
	default:
		return err
	}
}
