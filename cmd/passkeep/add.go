package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/passkeep/passkeep/pkg/crypto"
	"github.com/passkeep/passkeep/pkg/security"
	"github.com/passkeep/passkeep/pkg/session"
	"github.com/passkeep/passkeep/pkg/store"
)

var (
	addUsername string
	addNotes    string
	addTags     string
	addGenerate bool
	addGenLen   int
)

var addCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add an entry to the vault",
	Long: `Adds a new entry. The secret is prompted for without echo, or
generated with --generate.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title := args[0]

		var secret []byte
		var err error
		if addGenerate {
			secret, err = security.Generate(security.GenerateOptions{Length: addGenLen})
		} else {
			secret, err = readPassword("Secret: ")
		}
		if err != nil {
			return err
		}
		defer crypto.SecureWipe(secret)

		return withUnlocked(func(s *session.Session) error {
			id, err := s.Add(store.Entry{
				Title:    title,
				Username: addUsername,
				Secret:   secret,
				Notes:    addNotes,
				Tags:     splitTags(addTags),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %q (%s)\n", title, id)
			if addGenerate {
				fmt.Fprintf(cmd.OutOrStdout(), "Generated secret: %s\n", secret)
			}
			return nil
		})
	},
}

func init() {
	addCmd.Flags().StringVar(&addUsername, "username", "", "Account username")
	addCmd.Flags().StringVar(&addNotes, "notes", "", "Free-form notes")
	addCmd.Flags().StringVar(&addTags, "tags", "", "Comma-separated tags (e.g. work,email)")
	addCmd.Flags().BoolVar(&addGenerate, "generate", false, "Generate a random secret instead of prompting")
	addCmd.Flags().IntVar(&addGenLen, "length", security.DefaultGeneratedLength, "Generated secret length")
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}
