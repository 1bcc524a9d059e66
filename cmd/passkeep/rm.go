package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/passkeep/passkeep/pkg/session"
)

var removeForce bool

var removeCmd = &cobra.Command{
	Use:     "rm <title|id>",
	Aliases: []string{"remove", "delete"},
	Short:   "Delete an entry",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnlocked(func(s *session.Session) error {
			e, err := resolveEntry(s, args[0])
			if err != nil {
				return err
			}

			if !removeForce {
				fmt.Fprintf(cmd.ErrOrStderr(), "Delete %q (%s)? [y/N]: ", e.Title, e.ID)
				reader := bufio.NewReader(os.Stdin)
				answer, _ := reader.ReadString('\n')
				if strings.ToLower(strings.TrimSpace(answer)) != "y" {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			if err := s.Remove(e.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %q\n", e.Title)
			return nil
		})
	},
}

func init() {
	removeCmd.Flags().BoolVarP(&removeForce, "force", "f", false, "Skip the confirmation prompt")
}
