package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"helix/internal/api"
	"helix/internal/catalog"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and catalog status",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			lines := renderSectionHeader("Daemon", colorize)
			for _, line := range lines {
				fmt.Fprintln(out, line)
			}

			client := ctx.dialClient()
			if client == nil {
				fmt.Fprintln(out, renderStatusLine("Running", statusWarn, "daemon is not reachable", colorize))
			} else {
				status, err := client.Status()
				if err != nil {
					return err
				}
				fmt.Fprintln(out, renderStatusLine("Running", statusOK, fmt.Sprintf("pid %d", status.PID), colorize))
				fmt.Fprintln(out, renderStatusLine("Worker", statusInfo, status.WorkerID, colorize))
				fmt.Fprintln(out, renderStatusLine("API", statusInfo, status.APIAddress, colorize))
				fmt.Fprintln(out, renderStatusLine("Catalog", statusInfo, status.CatalogPath, colorize))
			}

			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Catalog", colorize) {
				fmt.Fprintln(out, line)
			}

			return ctx.withCatalog(func(client *apiClient, store *catalog.Store) error {
				total := 0
				for _, kind := range catalog.AllKinds() {
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
					parts := make([]string, 0, len(counts))
					kindTotal := 0
					for _, status := range api.SortedStatuses(counts) {
						parts = append(parts, fmt.Sprintf("%d %s", counts[status], status))
						kindTotal += counts[status]
					}
					total += kindTotal
					kindState := statusInfo
					message := "empty"
					if kindTotal > 0 {
						message = strings.Join(parts, ", ")
						kindState = statusOK
					}
					fmt.Fprintln(out, renderStatusLine(displayLabel(string(kind)), kindState, message, colorize))
				}
				if total == 0 {
					fmt.Fprintln(out, renderStatusLine("Total", statusWarn, "catalog is empty", colorize))
				} else {
					fmt.Fprintln(out, renderStatusLine("Total", statusOK, fmt.Sprintf("%d entities", total), colorize))
				}
				return nil
			})
		},
	}
}
