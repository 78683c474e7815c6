package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"example.com/mergington/internal/domain"
)

func newListCmd(opts *options) *cobra.Command {
	var showParticipants bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all activities",
		Long:    `Retrieve every activity with its schedule, capacity, and current participants.`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := opts.client().List(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch opts.format() {
			case "json", "yaml":
				return encode(out, opts.format(), catalog)
			}

			if len(catalog) == 0 {
				fmt.Fprintln(out, "No activities available")
				return nil
			}

			table := tablewriter.NewWriter(out)
			if showParticipants {
				table.Header("Activity", "Schedule", "Enrolled", "Spots Left", "Participants")
			} else {
				table.Header("Activity", "Schedule", "Enrolled", "Spots Left")
			}

			for _, name := range sortedNames(catalog) {
				activity := catalog[name]
				row := []any{
					name,
					activity.Schedule,
					fmt.Sprintf("%d/%d", len(activity.Participants), activity.MaxParticipants),
					spotsLeft(activity),
				}
				if showParticipants {
					row = append(row, strings.Join(activity.Participants, ", "))
				}
				if err := table.Append(row...); err != nil {
					return err
				}
			}
			if err := table.Render(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nTotal activities: %d\n", len(catalog))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&showParticipants, "participants", "p", false, "include participant emails")
	return cmd
}

func sortedNames(catalog domain.Catalog) []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// spotsLeft never goes negative; capacity is advisory and may be exceeded.
func spotsLeft(a domain.Activity) int {
	left := a.MaxParticipants - len(a.Participants)
	if left < 0 {
		return 0
	}
	return left
}
