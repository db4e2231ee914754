package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/boltindex/internal/connectors/filesystem"
	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driving"
	"github.com/custodia-labs/boltindex/internal/logger"
)

func newWatchCommand(a *app) *cobra.Command {
	opts := &ingestOptions{}
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Keep an index in sync with a directory",
		Long: `Ingests a directory, then watches it and re-ingests changed files and
removes deleted ones until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, a, opts, debounce, args[0])
		},
	}
	opts.addFlags(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", filesystem.DefaultDebounce, "wait this long for changes to settle")
	return cmd
}

func runWatch(cmd *cobra.Command, a *app, opts *ingestOptions, debounce time.Duration, dir string) error {
	ctx := cmd.Context()
	svc, err := a.services(ctx)
	if err != nil {
		return err
	}
	chunk, err := opts.chunkStrategy(svc.settings.Chunk)
	if err != nil {
		return err
	}

	loader := opts.loader()
	contents, err := loader.Load(ctx, dir)
	if err != nil {
		return fmt.Errorf("loading files: %w", err)
	}
	request := func(contents []*domain.Content) driving.IngestRequest {
		return driving.IngestRequest{Index: opts.index, Contents: contents, Chunk: chunk, Concurrency: opts.concurrency}
	}

	if len(contents) > 0 {
		cmd.Printf("Ingesting %d files into %s...\n", len(contents), opts.index)
		res, err := svc.ingest.Ingest(ctx, request(contents))
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
		printRunResult(cmd, res)
	}

	batches, err := filesystem.NewWatcher(loader, debounce).Watch(ctx, dir)
	if err != nil {
		return err
	}
	cmd.Printf("Watching %s (Ctrl+C to stop)\n", dir)

	for batch := range batches {
		var upserts []*domain.Content
		var removed []string
		for _, ch := range batch {
			switch ch.Kind {
			case filesystem.ChangeUpsert:
				c, err := loader.LoadFile(ctx, ch.Path)
				if err != nil {
					// The file may be gone, binary or malformed by now.
					if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrUnsupportedType) {
						logger.Warn("loading %s: %v", ch.Path, err)
					}
					continue
				}
				upserts = append(upserts, c)
			case filesystem.ChangeRemove:
				id, err := filesystem.ContentID(ch.Path)
				if err != nil {
					logger.Warn("resolving %s: %v", ch.Path, err)
					continue
				}
				removed = append(removed, id)
			}
		}

		if len(removed) > 0 {
			n, err := svc.ingest.Forget(ctx, opts.index, removed...)
			if err != nil {
				logger.Warn("removing %d files: %v", len(removed), err)
			} else {
				cmd.Printf("Removed %d files (%d entries).\n", len(removed), n)
			}
		}
		if len(upserts) > 0 {
			res, err := svc.ingest.Ingest(ctx, request(upserts))
			if err != nil {
				if ctx.Err() != nil {
					break
				}
				logger.Warn("ingesting %d files: %v", len(upserts), err)
				continue
			}
			cmd.Printf("Updated %d files: %s.\n", len(upserts), res.Outcome())
		}
	}
	return nil
}
