// authctl es la CLI operativa del núcleo de auth: cuentas, sesiones,
// migraciones y hashing de contraseñas. Habla directo con el store.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/dropDatabas3/hablas/internal/app"
	"github.com/dropDatabas3/hablas/internal/auth"
	"github.com/dropDatabas3/hablas/internal/config"
	"github.com/dropDatabas3/hablas/internal/observability/logger"
)

// cliOrigin identifica las operaciones de la CLI en la auditoría.
var cliOrigin = auth.Origin{IP: "cli", UserAgent: "authctl"}

type cli struct {
	configPath string
	verbose    bool

	in           io.Reader
	out          io.Writer
	readPassword func() (string, error)

	// open construye el App; los tests lo reemplazan.
	open func(ctx context.Context, c *cli) (*app.App, error)
}

func defaultOpen(ctx context.Context, c *cli) (*app.App, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	lg := zap.NewNop()
	if c.verbose {
		if lg, err = logger.New(logger.Config{Env: cfg.App.Env, Level: "debug"}); err != nil {
			return nil, err
		}
	}
	return app.Build(ctx, cfg, lg, app.Options{})
}

func terminalPassword() (string, error) {
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	return string(b), err
}

// withApp abre el App, corre el writer de auditoría mientras dura fn y lo
// vacía al terminar para que ningún evento se pierda.
func (c *cli) withApp(ctx context.Context, fn func(ctx context.Context, a *app.App) error) error {
	a, err := c.open(ctx, c)
	if err != nil {
		return err
	}
	defer a.Close()

	actx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Audit.Run(actx) }()
	defer func() {
		cancel()
		<-done
	}()
	return fn(ctx, a)
}

// promptPassword pide la contraseña dos veces sin eco.
func (c *cli) promptPassword(label string) (string, error) {
	fmt.Fprintf(c.out, "%s: ", label)
	p, err := c.readPassword()
	fmt.Fprintln(c.out)
	if err != nil {
		return "", err
	}
	fmt.Fprint(c.out, "Confirmar: ")
	confirm, err := c.readPassword()
	fmt.Fprintln(c.out)
	if err != nil {
		return "", err
	}
	if p != confirm {
		return "", errors.New("las contraseñas no coinciden")
	}
	return p, nil
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "authctl",
		Short:         "CLI operativa de autenticación de hablas",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", envOr("HABLAS_CONFIG", ""), "Ruta al YAML de config (env HABLAS_CONFIG)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Loguear a stderr")
	root.SetIn(c.in)
	root.SetOut(c.out)

	root.AddCommand(newUserCmd(c), newSessionsCmd(c), newMigrateCmd(c), newHashPasswordCmd(c), newEncryptSecretCmd(c))
	return root
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "error cargando .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := &cli{
		in:           os.Stdin,
		out:          os.Stdout,
		readPassword: terminalPassword,
		open:         defaultOpen,
	}
	if err := newRootCmd(c).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		stop()
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}
