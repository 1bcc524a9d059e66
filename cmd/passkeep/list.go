package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/passkeep/passkeep/pkg/session"
	"github.com/passkeep/passkeep/pkg/store"
)

var (
	listSearch  string
	listTags    string
	listSort    string
	listVerbose bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List vault entries",
	Long: `Lists entries, optionally filtered by a case-insensitive search
term and tags. Sorting is a display concern; vault order is preserved on
disk.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var descending bool
		switch listSort {
		case "", "none":
		case "az":
			descending = false
		case "za":
			descending = true
		default:
			return fmt.Errorf("unknown sort order %q (use az, za or none)", listSort)
		}

		return withUnlocked(func(s *session.Session) error {
			var entries []store.Entry
			var err error

			filtered := listSearch != "" || listTags != ""
			if filtered {
				seq, ferr := s.Find(store.Query{Text: listSearch, Tags: splitTags(listTags)})
				if ferr != nil {
					return ferr
				}
				for e := range seq {
					entries = append(entries, e)
				}
				if listSort != "" && listSort != "none" {
					entries = store.SortByTitle(entries, descending)
				}
			} else if listSort != "" && listSort != "none" {
				entries, err = s.Sorted(descending)
			} else {
				entries, err = s.Entries()
			}
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No entries found.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			if listVerbose {
				fmt.Fprintln(w, "TITLE\tUSERNAME\tTAGS\tID")
				for _, e := range entries {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Title, e.Username, strings.Join(e.Tags, ","), e.ID)
				}
			} else {
				fmt.Fprintln(w, "TITLE\tUSERNAME\tTAGS")
				for _, e := range entries {
					fmt.Fprintf(w, "%s\t%s\t%s\n", e.Title, e.Username, strings.Join(e.Tags, ","))
				}
			}
			return w.Flush()
		})
	},
}

func init() {
	listCmd.Flags().StringVar(&listSearch, "search", "", "Case-insensitive search over title, username, notes and tags")
	listCmd.Flags().StringVar(&listTags, "tags", "", "Only entries carrying all of these comma-separated tags")
	listCmd.Flags().StringVar(&listSort, "sort", "", "Display order: az, za or none")
	listCmd.Flags().BoolVarP(&listVerbose, "verbose", "v", false, "Include entry IDs")
}
