package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"helix/internal/api"
	"helix/internal/catalog"
)

func newWorkersCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "workers",
		Short: "List registered workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCatalog(func(client *apiClient, store *catalog.Store) error {
				var views []api.WorkerView
				if client != nil {
					resp, err := client.Workers()
					if err != nil {
						return err
					}
					views = resp.Workers
				} else {
					workers, err := store.ListWorkers(cmd.Context())
					if err != nil {
						return err
					}
					views = api.FromWorkers(workers)
				}

				if asJSON {
					return writeJSON(cmd, api.WorkersResponse{Workers: views})
				}
				if len(views) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No workers registered")
					return nil
				}
				rows := make([][]string, 0, len(views))
				for _, worker := range views {
					rows = append(rows, []string{
						worker.Name,
						worker.Host,
						displayLabel(worker.Status),
						orDash(worker.CurrentCommand),
						orDash(worker.LastHeartbeat),
					})
				}
				table := renderTable([]string{"Name", "Host", "Status", "Command", "Last Heartbeat"}, rows)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}
