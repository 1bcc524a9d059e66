package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/passkeep/passkeep/pkg/crypto"
	"github.com/passkeep/passkeep/pkg/security"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new vault",
	Long:  `Creates an empty encrypted vault protected by a master password.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPasswordConfirmed("Master password: ")
		if err != nil {
			return err
		}
		defer crypto.SecureWipe(password)

		strength, err := security.CheckMasterPassword(password)
		if err != nil {
			if errors.Is(err, security.ErrPasswordTooShort) {
				return fmt.Errorf("master password rejected: %w", err)
			}
			return err
		}
		if strength <= security.StrengthFair {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: master password strength is %s. Consider a longer passphrase.\n", strength)
		}

		sess := newSession()
		if err := sess.Create(password); err != nil {
			return err
		}
		if err := sess.Lock(false); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Vault created at %s\n", cfg.VaultPath)
		return nil
	},
}
