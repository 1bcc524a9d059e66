package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/passkeep/passkeep/pkg/crypto"
	"github.com/passkeep/passkeep/pkg/security"
	"github.com/passkeep/passkeep/pkg/session"
	"github.com/passkeep/passkeep/pkg/store"
)

var (
	updateTitle    string
	updateUsername string
	updateNotes    string
	updateTags     string
	updateSecret   bool
	updateGenerate bool
	updateGenLen   int
)

var updateCmd = &cobra.Command{
	Use:   "update <title|id>",
	Short: "Modify an existing entry",
	Long: `Updates the given fields of an entry. Fields without a flag are
left unchanged. --secret prompts for a new secret; --generate creates one.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch store.Patch
		if cmd.Flags().Changed("title") {
			patch.Title = &updateTitle
		}
		if cmd.Flags().Changed("username") {
			patch.Username = &updateUsername
		}
		if cmd.Flags().Changed("notes") {
			patch.Notes = &updateNotes
		}
		if cmd.Flags().Changed("tags") {
			tags := splitTags(updateTags)
			patch.Tags = &tags
		}

		var err error
		switch {
		case updateGenerate:
			patch.Secret, err = security.Generate(security.GenerateOptions{Length: updateGenLen})
		case updateSecret:
			patch.Secret, err = readPassword("New secret: ")
		}
		if err != nil {
			return err
		}
		defer crypto.SecureWipe(patch.Secret)

		if patch.Title == nil && patch.Username == nil && patch.Notes == nil &&
			patch.Tags == nil && patch.Secret == nil {
			return fmt.Errorf("nothing to update: pass at least one field flag")
		}

		return withUnlocked(func(s *session.Session) error {
			e, err := resolveEntry(s, args[0])
			if err != nil {
				return err
			}
			updated, err := s.Update(e.ID, patch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %q (%s)\n", updated.Title, updated.ID)
			if updateGenerate {
				fmt.Fprintf(cmd.OutOrStdout(), "Generated secret: %s\n", patch.Secret)
			}
			return nil
		})
	},
}

func init() {
	updateCmd.Flags().StringVar(&updateTitle, "title", "", "New title")
	updateCmd.Flags().StringVar(&updateUsername, "username", "", "New username")
	updateCmd.Flags().StringVar(&updateNotes, "notes", "", "New notes")
	updateCmd.Flags().StringVar(&updateTags, "tags", "", "New comma-separated tags")
	updateCmd.Flags().BoolVar(&updateSecret, "secret", false, "Prompt for a new secret")
	updateCmd.Flags().BoolVar(&updateGenerate, "generate", false, "Generate a new random secret")
	updateCmd.Flags().IntVar(&updateGenLen, "length", security.DefaultGeneratedLength, "Generated secret length")
}
