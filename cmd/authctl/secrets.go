package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/hablas/internal/security/secretbox"
)

// newEncryptSecretCmd cifra un valor para usarlo como "enc:..." en la config.
func newEncryptSecretCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt-secret",
		Short: "Cifrar un secreto de config con " + secretbox.EnvVar,
		RunE: func(cmd *cobra.Command, args []string) error {
			box, err := secretbox.New(os.Getenv(secretbox.EnvVar))
			if err != nil {
				return err
			}
			plain, err := c.promptPassword("Secreto")
			if err != nil {
				return err
			}
			sealed, err := box.Seal(plain)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, secretbox.Prefix+sealed)
			return nil
		},
	}
}
