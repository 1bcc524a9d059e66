package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/passkeep/passkeep/pkg/session"
	"github.com/passkeep/passkeep/pkg/store"
)

var getShowSecret bool

var getCmd = &cobra.Command{
	Use:   "get <title|id>",
	Short: "Show a single entry",
	Long: `Shows one entry, looked up by title or by entry ID. The secret is
masked unless --show is passed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnlocked(func(s *session.Session) error {
			e, err := resolveEntry(s, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Title:    %s\n", e.Title)
			fmt.Fprintf(out, "ID:       %s\n", e.ID)
			if e.Username != "" {
				fmt.Fprintf(out, "Username: %s\n", e.Username)
			}
			if getShowSecret {
				fmt.Fprintf(out, "Secret:   %s\n", e.Secret)
			} else {
				fmt.Fprintf(out, "Secret:   ******** (use --show)\n")
			}
			if len(e.Tags) > 0 {
				fmt.Fprintf(out, "Tags:     %s\n", strings.Join(e.Tags, ", "))
			}
			if e.Notes != "" {
				fmt.Fprintf(out, "Notes:    %s\n", e.Notes)
			}
			fmt.Fprintf(out, "Updated:  %s\n", e.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
			return nil
		})
	},
}

func init() {
	getCmd.Flags().BoolVar(&getShowSecret, "show", false, "Print the secret in plaintext")
}

// resolveEntry finds an entry by ID, or by exact title match ignoring case.
// Ambiguous titles are an error so the wrong secret is never shown.
func resolveEntry(s *session.Session, arg string) (store.Entry, error) {
	if id, err := uuid.Parse(arg); err == nil {
		return s.Get(id)
	}

	entries, err := s.Entries()
	if err != nil {
		return store.Entry{}, err
	}
	var matches []store.Entry
	for _, e := range entries {
		if strings.EqualFold(e.Title, arg) {
			matches = append(matches, e)
		}
	}
	switch len(matches) {
	case 0:
		return store.Entry{}, fmt.Errorf("no entry titled %q: %w", arg, store.ErrEntryNotFound)
	case 1:
		return matches[0], nil
	default:
		return store.Entry{}, fmt.Errorf("%d entries titled %q, use the entry ID instead", len(matches), arg)
	}
}
