package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"helix/internal/catalog"
)

func newCreateCommand(ctx *commandContext) *cobra.Command {
	var attrs string
	var flagPairs []string
	var refPairs []string

	cmd := &cobra.Command{
		Use:   "create <kind> <name>",
		Short: "Create a new entity in its initial status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKindArg(args[0])
			if err != nil {
				return err
			}
			name := strings.TrimSpace(args[1])
			if name == "" {
				return fmt.Errorf("entity name is required")
			}
			if attrs != "" && !json.Valid([]byte(attrs)) {
				return fmt.Errorf("attrs must be valid JSON")
			}

			flags, err := parseFlagPairs(flagPairs)
			if err != nil {
				return err
			}
			refs, err := parseRefPairs(refPairs)
			if err != nil {
				return err
			}

			return ctx.withStore(func(store *catalog.Store) error {
				entity, err := store.CreateEntity(cmd.Context(), catalog.NewEntityParams{
					Kind:  kind,
					Name:  name,
					Flags: flags,
					Attrs: attrs,
					Refs:  refs,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s (%s)\n", kind, name, entity.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&attrs, "attrs", "", "JSON attributes payload")
	cmd.Flags().StringSliceVar(&flagPairs, "flag", nil, "Initial flag as name=true|false (repeatable)")
	cmd.Flags().StringSliceVar(&refPairs, "ref", nil, "Reference as kind=id (repeatable)")
	return cmd
}

func newTransitionCommand(ctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "transition <kind> <id> <status>",
		Short: "Force an entity to a new status",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKindArg(args[0])
			if err != nil {
				return err
			}
			id := args[1]
			target, ok := catalog.ParseStatus(kind, args[2])
			if !ok {
				return fmt.Errorf("unknown status %q for kind %s (expected one of %s)", args[2], kind, statusList(kind))
			}

			description := strings.TrimSpace(reason)
			if description == "" {
				description = fmt.Sprintf("transitioned to %s by operator", target)
			}
			return ctx.withStore(func(store *catalog.Store) error {
				if err := store.Transition(cmd.Context(), kind, id, "", target, nil, description); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Moved %s %s to %s\n", kind, id, target)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Event description to record")
	return cmd
}

func newFlagCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "flag <kind> <id> <name=true|false>",
		Short: "Set or clear an entity flag",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKindArg(args[0])
			if err != nil {
				return err
			}
			id := args[1]
			flags, err := parseFlagPairs([]string{args[2]})
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *catalog.Store) error {
				for name, value := range flags {
					description := fmt.Sprintf("flag %s set to %t by operator", name, value)
					if err := store.SetFlag(cmd.Context(), kind, id, name, value, description); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Set %s=%t on %s %s\n", name, value, kind, id)
				}
				return nil
			})
		},
	}
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <kind> <id>",
		Short: "Clear a recorded failure so agents pick the entity up again",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKindArg(args[0])
			if err != nil {
				return err
			}
			id := args[1]
			return ctx.withStore(func(store *catalog.Store) error {
				if err := store.ClearError(cmd.Context(), kind, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared error on %s %s\n", kind, id)
				return nil
			})
		},
	}
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <kind> <id>",
		Short: "Delete an entity and its history",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKindArg(args[0])
			if err != nil {
				return err
			}
			id := args[1]
			return ctx.withStore(func(store *catalog.Store) error {
				removed, err := store.Remove(cmd.Context(), kind, id)
				if err != nil {
					return err
				}
				if !removed {
					fmt.Fprintf(cmd.OutOrStdout(), "No %s entity with id %s\n", kind, id)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s %s\n", kind, id)
				return nil
			})
		},
	}
}

func statusList(kind catalog.Kind) string {
	parts := make([]string, 0)
	for _, status := range catalog.Statuses(kind) {
		parts = append(parts, string(status))
	}
	return strings.Join(parts, ", ")
}

func parseFlagPairs(pairs []string) (map[string]bool, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	flags := make(map[string]bool, len(pairs))
	for _, pair := range pairs {
		name, raw, found := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !found || name == "" {
			return nil, fmt.Errorf("invalid flag %q (expected name=true|false)", pair)
		}
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "true":
			flags[name] = true
		case "false":
			flags[name] = false
		default:
			return nil, fmt.Errorf("invalid flag value in %q (expected true or false)", pair)
		}
	}
	return flags, nil
}

func parseRefPairs(pairs []string) ([]catalog.Ref, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	refs := make([]catalog.Ref, 0, len(pairs))
	for _, pair := range pairs {
		kind, id, found := strings.Cut(pair, "=")
		kind = strings.TrimSpace(kind)
		id = strings.TrimSpace(id)
		if !found || kind == "" || id == "" {
			return nil, fmt.Errorf("invalid ref %q (expected kind=id)", pair)
		}
		if _, ok := catalog.ParseKind(kind); !ok {
			return nil, fmt.Errorf("invalid ref %q: unknown kind %q", pair, kind)
		}
		refs = append(refs, catalog.Ref{Kind: kind, ID: id})
	}
	return refs, nil
}
