package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"docstorectl/internal/command"
	"docstorectl/internal/config"
	"docstorectl/internal/docstore"
	"docstorectl/internal/format"
	"docstorectl/internal/qdrant"
)

// qdrantFlags carries the qdrant-wide connection overrides applied on
// top of the loaded profile.
type qdrantFlags struct {
	url    string
	port   int
	apiKey string
	useTLS bool
}

func (f *qdrantFlags) apply(cfg *config.QdrantConfig) {
	if f.url != "" {
		cfg.Connection.URL = f.url
	}
	if f.port != 0 {
		cfg.Connection.Port = f.port
	}
	if f.apiKey != "" {
		cfg.Connection.APIKey = f.apiKey
	}
	if f.useTLS {
		cfg.Connection.UseTLS = true
	}
}

func newQdrantCmd(opts *options) *cobra.Command {
	conn := &qdrantFlags{}

	cmd := &cobra.Command{
		Use:   "qdrant",
		Short: "Manage Qdrant collections and points",
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&conn.url, "url", "", "qdrant host (overrides the profile)")
	flags.IntVar(&conn.port, "port", 0, "qdrant gRPC port (overrides the profile)")
	flags.StringVar(&conn.apiKey, "api-key", "", "qdrant API key (overrides the profile)")
	flags.BoolVar(&conn.useTLS, "use-tls", false, "connect with TLS")

	// runQdrant opens a client for the resolved profile and hands the
	// runner to fn.
	runQdrant := func(ctx context.Context, name, collection string, mutate func(*config.QdrantConfig), fn func(ctx context.Context, client *qdrant.Client, r *command.Runner) error) error {
		return opts.run(ctx, "qdrant", name, collection, func(ctx context.Context, profile *config.Profile, fmtr *format.Formatter) error {
			cfg := profile.Qdrant
			conn.apply(&cfg)
			if mutate != nil {
				mutate(&cfg)
			}
			client, err := qdrant.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer client.Close()
			return fn(ctx, client, command.New(client, fmtr))
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQdrant(cmd.Context(), "list", "", nil, func(ctx context.Context, _ *qdrant.Client, r *command.Runner) error {
				return r.ListCollections(ctx)
			})
		},
	})

	var (
		createSize        uint64
		createDistance    string
		createOnDisk      bool
		createShards      uint32
		createReplication uint32
		createRecreate    bool
	)
	createCmd := &cobra.Command{
		Use:   "create <collection>",
		Short: "Create a collection with the profile's vector schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mutate := func(cfg *config.QdrantConfig) {
				if createSize != 0 {
					cfg.Vectors.Size = createSize
				}
				if createDistance != "" {
					cfg.Vectors.Distance = createDistance
				}
				if createOnDisk {
					cfg.Vectors.OnDiskPayload = true
				}
				if createShards != 0 {
					cfg.Vectors.Shards = createShards
				}
				if createReplication != 0 {
					cfg.Vectors.ReplicationFactor = createReplication
				}
			}
			return runQdrant(cmd.Context(), "create", args[0], mutate, func(ctx context.Context, _ *qdrant.Client, r *command.Runner) error {
				return r.CreateCollection(ctx, args[0], createRecreate)
			})
		},
	}
	createCmd.Flags().Uint64Var(&createSize, "size", 0, "vector dimensionality (overrides the profile)")
	createCmd.Flags().StringVar(&createDistance, "distance", "", "distance metric: cosine, euclid, dot, manhattan")
	createCmd.Flags().BoolVar(&createOnDisk, "on-disk-payload", false, "store payloads on disk")
	createCmd.Flags().Uint32Var(&createShards, "shards", 0, "shard count")
	createCmd.Flags().Uint32Var(&createReplication, "replication-factor", 0, "replication factor")
	createCmd.Flags().BoolVar(&createRecreate, "recreate", false, "drop an existing collection first")
	cmd.AddCommand(createCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <collection>",
		Short: "Delete a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQdrant(cmd.Context(), "delete", args[0], nil, func(ctx context.Context, _ *qdrant.Client, r *command.Runner) error {
				return r.DeleteCollection(ctx, args[0])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "info <collection>",
		Short: "Show collection details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQdrant(cmd.Context(), "info", args[0], nil, func(ctx context.Context, _ *qdrant.Client, r *command.Runner) error {
				return r.CollectionInfo(ctx, args[0])
			})
		},
	})

	var addDocs, addDocsFile string
	addCmd := &cobra.Command{
		Use:   "add-documents <collection>",
		Short: "Upsert documents into a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := loadDocuments(addDocs, addDocsFile)
			if err != nil {
				return err
			}
			return runQdrant(cmd.Context(), "add-documents", args[0], nil, func(ctx context.Context, _ *qdrant.Client, r *command.Runner) error {
				return r.AddDocuments(ctx, args[0], docs)
			})
		},
	}
	addCmd.Flags().StringVar(&addDocs, "documents", "", "documents as an inline JSON array")
	addCmd.Flags().StringVar(&addDocsFile, "documents-file", "", "path to a JSON array of documents")
	cmd.AddCommand(addCmd)

	var getIDs, getIDsFile, getFilter string
	var getWithVectors bool
	getCmd := &cobra.Command{
		Use:   "get <collection>",
		Short: "Retrieve documents by IDs or filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := selector(getIDs, getIDsFile, getFilter)
			if err != nil {
				return err
			}
			return runQdrant(cmd.Context(), "get", args[0], nil, func(ctx context.Context, _ *qdrant.Client, r *command.Runner) error {
				return r.GetDocuments(ctx, args[0], sel, getWithVectors)
			})
		},
	}
	getCmd.Flags().StringVar(&getIDs, "ids", "", "comma-separated document IDs")
	getCmd.Flags().StringVar(&getIDsFile, "ids-file", "", "path to a file with one ID per line")
	getCmd.Flags().StringVar(&getFilter, "filter", "", "JSON object of field/value pairs to match")
	getCmd.Flags().BoolVar(&getWithVectors, "with-vectors", false, "include vector data in the output")
	cmd.AddCommand(getCmd)

	var rmIDs, rmIDsFile, rmFilter string
	rmCmd := &cobra.Command{
		Use:   "remove-documents <collection>",
		Short: "Delete documents by IDs or filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := selector(rmIDs, rmIDsFile, rmFilter)
			if err != nil {
				return err
			}
			return runQdrant(cmd.Context(), "remove-documents", args[0], nil, func(ctx context.Context, _ *qdrant.Client, r *command.Runner) error {
				return r.RemoveDocuments(ctx, args[0], sel)
			})
		},
	}
	rmCmd.Flags().StringVar(&rmIDs, "ids", "", "comma-separated document IDs")
	rmCmd.Flags().StringVar(&rmIDsFile, "ids-file", "", "path to a file with one ID per line")
	rmCmd.Flags().StringVar(&rmFilter, "filter", "", "JSON object of field/value pairs to match")
	cmd.AddCommand(rmCmd)

	var (
		searchVector, searchVectorFile, searchFilter string
		searchLimit                                  uint64
		searchWithVectors                            bool
	)
	searchCmd := &cobra.Command{
		Use:   "search <collection>",
		Short: "Run a nearest-neighbour search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vec, err := loadVector(searchVector, searchVectorFile)
			if err != nil {
				return err
			}
			req := docstore.SearchRequest{
				Vector:      vec,
				Filter:      searchFilter,
				Limit:       searchLimit,
				WithVectors: searchWithVectors,
			}
			return runQdrant(cmd.Context(), "search", args[0], nil, func(ctx context.Context, _ *qdrant.Client, r *command.Runner) error {
				return r.Search(ctx, args[0], req)
			})
		},
	}
	searchCmd.Flags().StringVar(&searchVector, "vector", "", "comma-separated query vector")
	searchCmd.Flags().StringVar(&searchVectorFile, "vector-file", "", "path to a JSON array query vector")
	searchCmd.Flags().StringVar(&searchFilter, "filter", "", "JSON object of field/value pairs to match")
	searchCmd.Flags().Uint64Var(&searchLimit, "limit", 10, "maximum results")
	searchCmd.Flags().BoolVar(&searchWithVectors, "with-vectors", false, "include vector data in the output")
	cmd.AddCommand(searchCmd)

	var (
		scrollLimit       uint32
		scrollOffset      string
		scrollFilter      string
		scrollWithVectors bool
		scrollWithPayload bool
	)
	scrollCmd := &cobra.Command{
		Use:   "scroll <collection>",
		Short: "Page through a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQdrant(cmd.Context(), "scroll", args[0], nil, func(ctx context.Context, client *qdrant.Client, r *command.Runner) error {
				docs, next, err := client.Scroll(ctx, args[0], qdrant.ScrollRequest{
					Limit:       scrollLimit,
					Offset:      scrollOffset,
					Filter:      scrollFilter,
					WithVectors: scrollWithVectors,
					WithPayload: scrollWithPayload,
				})
				if err != nil {
					return err
				}
				if next != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "next offset: %s\n", next)
				}
				return r.WriteDocuments(docs, scrollWithVectors)
			})
		},
	}
	scrollCmd.Flags().Uint32Var(&scrollLimit, "limit", 50, "page size")
	scrollCmd.Flags().StringVar(&scrollOffset, "offset", "", "point ID to resume from")
	scrollCmd.Flags().StringVar(&scrollFilter, "filter", "", "JSON object of field/value pairs to match")
	scrollCmd.Flags().BoolVar(&scrollWithVectors, "with-vectors", false, "include vector data in the output")
	scrollCmd.Flags().BoolVar(&scrollWithPayload, "with-payload", true, "include payload data in the output")
	cmd.AddCommand(scrollCmd)

	var countFilter string
	countCmd := &cobra.Command{
		Use:   "count <collection>",
		Short: "Count documents in a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQdrant(cmd.Context(), "count", args[0], nil, func(ctx context.Context, _ *qdrant.Client, r *command.Runner) error {
				return r.Count(ctx, args[0], countFilter)
			})
		},
	}
	countCmd.Flags().StringVar(&countFilter, "filter", "", "JSON object of field/value pairs to match")
	cmd.AddCommand(countCmd)

	cmd.AddCommand(newBatchCmd(func(ctx context.Context, collection string, sel docstore.Selector, mut docstore.FieldMutation) error {
		return runQdrant(ctx, "batch", collection, nil, func(ctx context.Context, _ *qdrant.Client, r *command.Runner) error {
			return r.MutateFields(ctx, collection, sel, mut)
		})
	}))

	return cmd
}

// newBatchCmd builds the batch field-mutation subcommand. Both backends
// expose the same surface; only the runner wiring differs.
func newBatchCmd(run func(ctx context.Context, collection string, sel docstore.Selector, mut docstore.FieldMutation) error) *cobra.Command {
	var (
		ids, idsFile, filter     string
		addFields, replaceFields string
		deleteFields             []string
	)
	cmd := &cobra.Command{
		Use:   "batch <collection>",
		Short: "Apply a field mutation to matched documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := selector(ids, idsFile, filter)
			if err != nil {
				return err
			}
			add, err := loadFieldsJSON(addFields)
			if err != nil {
				return err
			}
			replace, err := loadFieldsJSON(replaceFields)
			if err != nil {
				return err
			}
			mut := docstore.FieldMutation{Add: add, Delete: deleteFields, Replace: replace}
			return run(cmd.Context(), args[0], sel, mut)
		},
	}
	cmd.Flags().StringVar(&ids, "ids", "", "comma-separated document IDs")
	cmd.Flags().StringVar(&idsFile, "ids-file", "", "path to a file with one ID per line")
	cmd.Flags().StringVar(&filter, "filter", "", "filter expression selecting documents")
	cmd.Flags().StringVar(&addFields, "add-fields", "", "JSON object of fields to add")
	cmd.Flags().StringSliceVar(&deleteFields, "delete-fields", nil, "field names to delete")
	cmd.Flags().StringVar(&replaceFields, "replace-fields", "", "JSON object of fields to overwrite")
	return cmd
}
