package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/passkeep/passkeep/pkg/crypto"
	"github.com/passkeep/passkeep/pkg/security"
)

var (
	genLength    int
	genNoUpper   bool
	genNoLower   bool
	genNoDigits  bool
	genNoSymbols bool
	genExclude   string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a random password",
	Long: `Generates a random password without touching the vault. Useful for
accounts managed elsewhere.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := security.Generate(security.GenerateOptions{
			Length:    genLength,
			NoUpper:   genNoUpper,
			NoLower:   genNoLower,
			NoDigits:  genNoDigits,
			NoSymbols: genNoSymbols,
			Exclude:   genExclude,
		})
		if err != nil {
			return err
		}
		defer crypto.SecureWipe(password)

		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", password)
		return nil
	},
}

func init() {
	generateCmd.Flags().IntVarP(&genLength, "length", "l", security.DefaultGeneratedLength, "Password length")
	generateCmd.Flags().BoolVar(&genNoUpper, "no-upper", false, "Exclude uppercase letters")
	generateCmd.Flags().BoolVar(&genNoLower, "no-lower", false, "Exclude lowercase letters")
	generateCmd.Flags().BoolVar(&genNoDigits, "no-digits", false, "Exclude digits")
	generateCmd.Flags().BoolVar(&genNoSymbols, "no-symbols", false, "Exclude symbols")
	generateCmd.Flags().StringVar(&genExclude, "exclude", "", "Characters to exclude (e.g. \"0O1lI\")")
}
