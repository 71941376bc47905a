package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"helix/internal/api"
	"helix/internal/catalog"
)

func parseKindArg(raw string) (catalog.Kind, error) {
	kind, ok := catalog.ParseKind(raw)
	if !ok {
		return "", fmt.Errorf("unknown kind %q (expected one of %s)", raw, kindList())
	}
	return kind, nil
}

func kindList() string {
	out := ""
	for i, kind := range catalog.AllKinds() {
		if i > 0 {
			out += ", "
		}
		out += string(kind)
	}
	return out
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var kindFlag string
	var statusFlags []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog entities",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKindArg(kindFlag)
			if err != nil {
				return err
			}
			return ctx.withCatalog(func(client *apiClient, store *catalog.Store) error {
				var summaries []api.EntitySummary
				if client != nil {
					resp, err := client.ListEntities(string(kind), statusFlags)
					if err != nil {
						return err
					}
					summaries = resp.Entities
				} else {
					statuses := make([]catalog.Status, 0, len(statusFlags))
					for _, raw := range statusFlags {
						statuses = append(statuses, catalog.Status(raw))
					}
					entities, err := store.List(cmd.Context(), kind, statuses...)
					if err != nil {
						return err
					}
					summaries = api.FromEntities(entities)
				}

				if asJSON {
					return writeJSON(cmd, api.ListResponse{Entities: summaries})
				}
				if len(summaries) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No %s entities\n", kind)
					return nil
				}
				rows := make([][]string, 0, len(summaries))
				for _, entity := range summaries {
					failure := ""
					if entity.Error != nil {
						failure = entity.Error.Kind
					}
					rows = append(rows, []string{
						entity.ID,
						entity.Name,
						displayLabel(entity.Status),
						orDash(entity.ClaimedBy),
						orDash(failure),
						entity.UpdatedAt,
					})
				}
				table := renderTable([]string{"ID", "Name", "Status", "Claimed By", "Error", "Updated"}, rows)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&kindFlag, "kind", "k", "", "Entity kind to list (required)")
	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <kind> <id>",
		Short: "Show one entity in full",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKindArg(args[0])
			if err != nil {
				return err
			}
			id := args[1]
			return ctx.withCatalog(func(client *apiClient, store *catalog.Store) error {
				var detail api.EntityDetail
				if client != nil {
					detail, err = client.Describe(string(kind), id)
					if err != nil {
						return err
					}
				} else {
					entity, err := store.GetByID(cmd.Context(), kind, id)
					if err != nil {
						return err
					}
					detail = api.DetailFromEntity(entity)
				}

				if asJSON {
					return writeJSON(cmd, detail)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:       %s\n", detail.ID)
				fmt.Fprintf(out, "Kind:     %s\n", detail.Kind)
				fmt.Fprintf(out, "Name:     %s\n", orDash(detail.Name))
				fmt.Fprintf(out, "Status:   %s\n", detail.Status)
				fmt.Fprintf(out, "Created:  %s\n", detail.CreatedAt)
				fmt.Fprintf(out, "Updated:  %s\n", detail.UpdatedAt)
				if detail.ClaimedBy != "" {
					fmt.Fprintf(out, "Claimed:  %s at %s\n", detail.ClaimedBy, detail.ClaimedAt)
				}
				if detail.Error != nil {
					fmt.Fprintf(out, "Error:    [%s] %s (%s)\n", detail.Error.Kind, detail.Error.Message, detail.Error.OccurredAt)
				}
				for name, value := range detail.Flags {
					fmt.Fprintf(out, "Flag:     %s=%s\n", name, yesNo(value))
				}
				for _, ref := range detail.Refs {
					fmt.Fprintf(out, "Ref:      %s -> %s\n", ref.Kind, ref.ID)
				}
				if len(detail.Attrs) > 0 {
					fmt.Fprintf(out, "Attrs:    %s\n", string(detail.Attrs))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of text")
	return cmd
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var offset int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history <kind> <id>",
		Short: "Show an entity's event history, oldest first",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKindArg(args[0])
			if err != nil {
				return err
			}
			id := args[1]
			return ctx.withCatalog(func(client *apiClient, store *catalog.Store) error {
				var resp api.HistoryResponse
				if client != nil {
					resp, err = client.History(string(kind), id, limit, offset)
					if err != nil {
						return err
					}
				} else {
					entity, err := store.GetByID(cmd.Context(), kind, id)
					if err != nil {
						return err
					}
					events, err := store.History(cmd.Context(), entity.ID, limit, offset)
					if err != nil {
						return err
					}
					resp = api.HistoryResponse{Events: api.FromEvents(events)}
				}

				if asJSON {
					return writeJSON(cmd, resp)
				}
				if len(resp.Events) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No events")
					return nil
				}
				rows := make([][]string, 0, len(resp.Events))
				for _, event := range resp.Events {
					rows = append(rows, []string{
						fmt.Sprintf("%d", event.ID),
						event.Stamp,
						event.Description,
					})
				}
				table := renderTable([]string{"Seq", "At", "Event"}, rows, 0)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of events")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of events to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var kindFlag string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show entity counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := catalog.AllKinds()
			if kindFlag != "" {
				kind, err := parseKindArg(kindFlag)
				if err != nil {
					return err
				}
				kinds = []catalog.Kind{kind}
			}
			return ctx.withCatalog(func(client *apiClient, store *catalog.Store) error {
				rows := make([][]string, 0)
				for _, kind := range kinds {
					var counts map[string]int
					if client != nil {
						resp, err := client.Stats(string(kind))
						if err != nil {
							return err
						}
						counts = resp.Counts
					} else {
						stats, err := store.Stats(cmd.Context(), kind)
						if err != nil {
							return err
						}
						counts = api.MergeStats(stats)
					}
					for _, status := range api.SortedStatuses(counts) {
						rows = append(rows, []string{
							displayLabel(string(kind)),
							displayLabel(status),
							fmt.Sprintf("%d", counts[status]),
						})
					}
				}
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Catalog is empty")
					return nil
				}
				table := renderTable([]string{"Kind", "Status", "Count"}, rows, 2)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&kindFlag, "kind", "k", "", "Limit to one entity kind")
	return cmd
}
