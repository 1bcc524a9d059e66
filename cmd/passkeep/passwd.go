package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/passkeep/passkeep/pkg/crypto"
	"github.com/passkeep/passkeep/pkg/security"
	"github.com/passkeep/passkeep/pkg/session"
)

var passwordCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change the master password",
	Long: `Changes the master password. The vault is re-encrypted under a key
derived from the new password and written immediately.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnlocked(func(s *session.Session) error {
			newPassword, err := readPasswordConfirmed("New master password: ")
			if err != nil {
				return err
			}
			defer crypto.SecureWipe(newPassword)

			strength, err := security.CheckMasterPassword(newPassword)
			if err != nil {
				if errors.Is(err, security.ErrPasswordTooShort) {
					return fmt.Errorf("new master password rejected: %w", err)
				}
				return err
			}
			if strength <= security.StrengthFair {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: new master password strength is %s.\n", strength)
			}

			if err := s.ChangePassword(newPassword); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Master password changed.")
			return nil
		})
	},
}
