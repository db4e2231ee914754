package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/boltindex/internal/connectors/filesystem"
	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driving"
	"github.com/custodia-labs/boltindex/internal/normalisers"
)

type ingestOptions struct {
	index       string
	chunkSize   int
	overlap     int
	boundary    string
	concurrency int
	plain       bool
	maxFileSize int64
	hidden      bool
	extensions  []string
}

func (o *ingestOptions) addFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&o.index, "index", "i", "", "index to add the files to")
	f.IntVar(&o.chunkSize, "chunk-size", 0, "chunk size in bytes (default from settings)")
	f.IntVar(&o.overlap, "overlap", -1, "bytes shared by consecutive chunks (default from settings)")
	f.StringVar(&o.boundary, "boundary", "", "chunk boundary policy: byte or structure")
	f.IntVar(&o.concurrency, "concurrency", 0, "parallel embeddings inside the embed step")
	f.BoolVar(&o.plain, "no-progress", false, "print plain progress instead of the interactive view")
	f.Int64Var(&o.maxFileSize, "max-file-size", filesystem.DefaultMaxFileSize, "skip files larger than this many bytes")
	f.BoolVar(&o.hidden, "hidden", false, "include dotfiles and dot directories")
	f.StringSliceVar(&o.extensions, "ext", nil, "only load files with these extensions")
	cmd.MarkFlagRequired("index") //nolint:errcheck
}

func (o *ingestOptions) loader() *filesystem.Loader {
	return filesystem.NewLoader(filesystem.Options{
		MaxFileSize:   o.maxFileSize,
		IncludeHidden: o.hidden,
		Extensions:    o.extensions,
		Normalisers:   normalisers.Defaults(),
	})
}

// chunkStrategy returns nil when no chunk flag was given.
func (o *ingestOptions) chunkStrategy(defaults domain.ChunkStrategy) (*domain.ChunkStrategy, error) {
	if o.chunkSize == 0 && o.overlap < 0 && o.boundary == "" {
		return nil, nil
	}
	s := defaults
	if o.chunkSize != 0 {
		s.Size = o.chunkSize
	}
	if o.overlap >= 0 {
		s.Overlap = o.overlap
	}
	if o.boundary != "" {
		s.Boundary = domain.BoundaryPolicy(o.boundary)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func newIngestCommand(a *app) *cobra.Command {
	opts := &ingestOptions{}
	cmd := &cobra.Command{
		Use:   "ingest <path>...",
		Short: "Chunk, embed and index files",
		Long: `Loads text, code and structured files from the given paths, stores them,
and runs a checkpointed chunk, embed, index and save plan over them.

Files already in the index are re-embedded and their old entries replaced.
Press p to pause; the execution can be resumed later with 'boltindex resume'.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, a, opts, args)
		},
	}
	opts.addFlags(cmd)
	return cmd
}

func runIngest(cmd *cobra.Command, a *app, opts *ingestOptions, paths []string) error {
	ctx := cmd.Context()
	svc, err := a.services(ctx)
	if err != nil {
		return err
	}

	chunk, err := opts.chunkStrategy(svc.settings.Chunk)
	if err != nil {
		return err
	}

	contents, err := opts.loader().Load(ctx, paths...)
	if err != nil {
		return fmt.Errorf("loading files: %w", err)
	}
	if len(contents) == 0 {
		cmd.Println("No files to ingest.")
		return nil
	}

	state, err := svc.ingest.Prepare(ctx, driving.IngestRequest{
		Index:       opts.index,
		Contents:    contents,
		Chunk:       chunk,
		Concurrency: opts.concurrency,
	})
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	cmd.Printf("Ingesting %d files into %s...\n", len(contents), opts.index)

	res, err := runExecution(cmd, svc.engine, state.ExecutionID, opts.plain)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	printRunResult(cmd, res)
	if res.Outcome() == domain.OutcomeFailed {
		return fmt.Errorf("%w: execution %s failed", domain.ErrStepExecution, res.State.ExecutionID)
	}
	return nil
}
