// Package bootstrap crea el primer admin al arrancar un despliegue vacío.
package bootstrap

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// AdminService es lo que bootstrap necesita del servicio de auth.
type AdminService interface {
	HasActiveAdmin(ctx context.Context) (bool, error)
	BootstrapAdmin(ctx context.Context, email, plain string) (bool, error)
}

// AdminConfig configura el bootstrap del admin.
type AdminConfig struct {
	Service AdminService

	// Credenciales precargadas (BOOTSTRAP_ADMIN_EMAIL / _PASSWORD).
	Email    string
	Password string

	// Interactive pide las credenciales por terminal si faltan.
	Interactive bool
	In          io.Reader // default os.Stdin
	Out         io.Writer // default os.Stdout

	// readPassword se reemplaza en tests.
	readPassword func() (string, error)
}

// ErrPasswordMismatch se devuelve si la confirmación no coincide.
var ErrPasswordMismatch = errors.New("passwords do not match")

// CheckAndCreateAdmin crea el admin si no hay ninguno activo. Sin credenciales
// y sin modo interactivo no hace nada.
func CheckAndCreateAdmin(ctx context.Context, cfg AdminConfig) (bool, error) {
	if cfg.Service == nil {
		return false, errors.New("bootstrap: missing admin service")
	}
	has, err := cfg.Service.HasActiveAdmin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check for existing admins: %w", err)
	}
	if has {
		return false, nil
	}

	email, plain := strings.TrimSpace(cfg.Email), cfg.Password
	if email == "" || plain == "" {
		if !cfg.Interactive {
			return false, nil
		}
		email, plain, err = promptAdminCredentials(cfg)
		if err != nil {
			return false, fmt.Errorf("failed to prompt admin credentials: %w", err)
		}
	}
	return cfg.Service.BootstrapAdmin(ctx, email, plain)
}

func promptAdminCredentials(cfg AdminConfig) (email, plain string, err error) {
	in, out := cfg.In, cfg.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	readPassword := cfg.readPassword
	if readPassword == nil {
		readPassword = func() (string, error) {
			b, err := term.ReadPassword(int(os.Stdin.Fd()))
			return string(b), err
		}
	}
	reader := bufio.NewReader(in)

	fmt.Fprint(out, "Admin Email: ")
	email, err = reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", "", err
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return "", "", errors.New("email cannot be empty")
	}
	if !strings.Contains(email, "@") {
		return "", "", errors.New("invalid email format")
	}

	fmt.Fprint(out, "Admin Password: ")
	plain, err = readPassword()
	if err != nil {
		return "", "", err
	}
	fmt.Fprintln(out)

	fmt.Fprint(out, "Confirm Password: ")
	confirm, err := readPassword()
	if err != nil {
		return "", "", err
	}
	fmt.Fprintln(out)

	if plain != confirm {
		return "", "", ErrPasswordMismatch
	}
	return email, plain, nil
}
