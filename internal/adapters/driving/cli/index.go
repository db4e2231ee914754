package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/boltindex/internal/core/domain"
)

const indexPrefix = "indexes/"

func newIndexCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage vector indexes",
		Long:  `List, inspect, create and delete the vector indexes saved in storage.`,
	}
	cmd.AddCommand(
		newIndexListCommand(a),
		newIndexStatsCommand(a),
		newIndexCreateCommand(a),
		newIndexDeleteCommand(a),
	)
	return cmd
}

func newIndexListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			names, err := savedIndexes(cmd.Context(), svc)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				cmd.Println("No indexes found.")
				return nil
			}
			for _, name := range names {
				cmd.Println(name)
			}
			return nil
		},
	}
}

func newIndexStatsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <name>",
		Short: "Show index statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := a.services(ctx)
			if err != nil {
				return err
			}
			name := args[0]
			if err := openIndex(ctx, svc, name); err != nil {
				return err
			}
			st, err := svc.indexes.Stats(name)
			if err != nil {
				return err
			}
			cmd.Printf("Name:      %s\n", st.Name)
			cmd.Printf("Strategy:  %s\n", st.Strategy.Description())
			cmd.Printf("Metric:    %s\n", st.Metric)
			cmd.Printf("Dimension: %d\n", st.Dimension)
			cmd.Printf("Items:     %d\n", st.Count)
			return nil
		},
	}
}

func newIndexCreateCommand(a *app) *cobra.Command {
	var strategy, metric string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty index",
		Long: `Creates and saves an empty index. Ingest creates missing indexes with the
configured defaults, so this is only needed to pick a different strategy
or metric for one index.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := a.services(ctx)
			if err != nil {
				return err
			}
			name := args[0]

			_, err = svc.storage.blobs.Get(ctx, domain.IndexKey(name))
			switch {
			case err == nil:
				return fmt.Errorf("%w: index %s", domain.ErrAlreadyExists, name)
			case !errors.Is(err, domain.ErrNotFound):
				return err
			}

			cfg := svc.settings.Index
			if strategy != "" {
				cfg.Strategy = domain.IndexStrategy(strategy)
			}
			if metric != "" {
				cfg.Metric = domain.Metric(metric)
			}
			if err := svc.indexes.Create(ctx, name, cfg); err != nil {
				return err
			}
			if err := svc.indexes.Commit(ctx, name); err != nil {
				return err
			}
			if err := svc.indexes.Save(ctx, name, domain.IndexKey(name)); err != nil {
				return err
			}
			cmd.Printf("Created %s index %s (dimension %d).\n", cfg.Strategy, name, cfg.Dimension)
			return nil
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", "", "flat, hnsw or hybrid (default from settings)")
	cmd.Flags().StringVar(&metric, "metric", "", "cosine or euclidean (default from settings)")
	return cmd
}

func newIndexDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an index",
		Long:  `Deletes a saved index. Ingested content is kept.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := a.services(ctx)
			if err != nil {
				return err
			}
			name := args[0]
			if err := svc.indexes.Drop(name); err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			if err := svc.storage.blobs.Delete(ctx, domain.IndexKey(name)); err != nil {
				return fmt.Errorf("deleting index %s: %w", name, err)
			}
			cmd.Printf("Index %s deleted.\n", name)
			return nil
		},
	}
}

// savedIndexes lists the indexes saved in blob storage plus any open ones.
func savedIndexes(ctx context.Context, svc *appServices) ([]string, error) {
	keys, err := svc.storage.blobs.List(ctx, indexPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing indexes: %w", err)
	}
	seen := make(map[string]bool)
	var names []string
	for _, k := range keys {
		name, ok := strings.CutSuffix(strings.TrimPrefix(k, indexPrefix), ".bidx")
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	for _, name := range svc.indexes.Names() {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// openIndex loads a saved index unless it is already open.
func openIndex(ctx context.Context, svc *appServices, name string) error {
	for _, n := range svc.indexes.Names() {
		if n == name {
			return nil
		}
	}
	return svc.indexes.Load(ctx, name, domain.IndexKey(name))
}
