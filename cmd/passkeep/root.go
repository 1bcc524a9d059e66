package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/passkeep/passkeep/internal/config"
	"github.com/passkeep/passkeep/internal/logger"
	"github.com/passkeep/passkeep/pkg/crypto"
	"github.com/passkeep/passkeep/pkg/session"
)

var (
	flagVault  string
	flagConfig string

	cfg Config
	log *logger.Logger
)

// Config aliases the loaded configuration for the command files.
type Config = config.Config

var rootCmd = &cobra.Command{
	Use:   "passkeep",
	Short: "passkeep is an encrypted password vault",
	Long: `An encrypted password vault stored in a single file.
Entries are sealed with AES-256-GCM under an Argon2id-derived key.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	// PersistentPreRunE loads configuration before every subcommand so
	// flags and PASSKEEP_* variables apply uniformly.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return err
		}
		if flagVault != "" {
			cfg.VaultPath = flagVault
		}
		log = logger.New(os.Stderr, "cli").SetLevel(cfg.LogLevel)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagVault, "vault", "", "Vault file path (default ~/.passkeep/vault.pkv)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default ~/.passkeep/config.yaml)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(passwordCmd)
}

// newSession builds a session from the effective configuration.
func newSession() *session.Session {
	var kdf *crypto.KDFParams
	if cfg.KDF.Memory != 0 || cfg.KDF.Time != 0 || cfg.KDF.Threads != 0 {
		kdf = &crypto.KDFParams{
			Memory:  cfg.KDF.Memory,
			Time:    cfg.KDF.Time,
			Threads: cfg.KDF.Threads,
		}
	}
	return session.New(cfg.VaultPath, session.Options{
		IdleTimeout:   cfg.IdleTimeout,
		KeepBackups:   cfg.KeepBackups,
		DiscardOnLock: cfg.DiscardOnLock,
		KDF:           kdf,
		Logger:        log,
	})
}

// withUnlocked prompts for the master password, unlocks the vault, runs fn,
// then locks again. Changes are flushed by Lock unless discard_on_lock is
// set.
func withUnlocked(fn func(s *session.Session) error) error {
	sess := newSession()

	password, err := readPassword("Master password: ")
	if err != nil {
		return err
	}
	err = sess.Unlock(password)
	crypto.SecureWipe(password)
	if err != nil {
		return err
	}
	defer func() {
		if lockErr := sess.Lock(!cfg.DiscardOnLock); lockErr != nil {
			fmt.Fprintln(os.Stderr, "Warning: failed to flush vault:", lockErr)
		}
	}()

	return fn(sess)
}

// readPassword reads a password without echo when stdin is a terminal.
func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return password, nil
}

// readPasswordConfirmed prompts twice and verifies both entries match.
func readPasswordConfirmed(prompt string) ([]byte, error) {
	first, err := readPassword(prompt)
	if err != nil {
		return nil, err
	}
	second, err := readPassword("Confirm password: ")
	if err != nil {
		crypto.SecureWipe(first)
		return nil, err
	}
	if string(first) != string(second) {
		crypto.SecureWipe(first)
		crypto.SecureWipe(second)
		return nil, fmt.Errorf("passwords do not match")
	}
	crypto.SecureWipe(second)
	return first, nil
}
