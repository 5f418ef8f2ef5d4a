package cli

import (
	"context"

	"github.com/spf13/cobra"

	"docstorectl/internal/command"
	"docstorectl/internal/config"
	"docstorectl/internal/docstore"
	"docstorectl/internal/format"
	"docstorectl/internal/solr"
)

// solrFlags carries the solr-wide connection overrides applied on top
// of the loaded profile.
type solrFlags struct {
	url      string
	username string
	password string
}

func (f *solrFlags) apply(cfg *config.SolrConfig) {
	if f.url != "" {
		cfg.Connection.URL = f.url
	}
	if f.username != "" {
		cfg.Connection.Username = f.username
	}
	if f.password != "" {
		cfg.Connection.Password = f.password
	}
}

func newSolrCmd(opts *options) *cobra.Command {
	conn := &solrFlags{}

	cmd := &cobra.Command{
		Use:   "solr",
		Short: "Manage Solr collections and documents",
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&conn.url, "url", "", "solr base URL (overrides the profile)")
	flags.StringVar(&conn.username, "username", "", "basic auth username (overrides the profile)")
	flags.StringVar(&conn.password, "password", "", "basic auth password (overrides the profile)")

	runSolr := func(ctx context.Context, name, collection string, mutate func(*config.SolrConfig), fn func(ctx context.Context, client *solr.Client, r *command.Runner) error) error {
		return opts.run(ctx, "solr", name, collection, func(ctx context.Context, profile *config.Profile, fmtr *format.Formatter) error {
			cfg := profile.Solr
			conn.apply(&cfg)
			if mutate != nil {
				mutate(&cfg)
			}
			client, err := solr.New(cfg)
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
			return runSolr(cmd.Context(), "list", "", nil, func(ctx context.Context, _ *solr.Client, r *command.Runner) error {
				return r.ListCollections(ctx)
			})
		},
	})

	var (
		createShards      int
		createReplication int
		createConfigName  string
		createRecreate    bool
	)
	createCmd := &cobra.Command{
		Use:   "create <collection>",
		Short: "Create a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mutate := func(cfg *config.SolrConfig) {
				if createShards != 0 {
					cfg.Connection.NumShards = createShards
				}
				if createReplication != 0 {
					cfg.Connection.ReplicationFactor = createReplication
				}
				if createConfigName != "" {
					cfg.Connection.ConfigName = createConfigName
				}
			}
			return runSolr(cmd.Context(), "create", args[0], mutate, func(ctx context.Context, _ *solr.Client, r *command.Runner) error {
				return r.CreateCollection(ctx, args[0], createRecreate)
			})
		},
	}
	createCmd.Flags().IntVar(&createShards, "num-shards", 0, "shard count (overrides the profile)")
	createCmd.Flags().IntVar(&createReplication, "replication-factor", 0, "replication factor (overrides the profile)")
	createCmd.Flags().StringVar(&createConfigName, "config-name", "", "config set to base the collection on")
	createCmd.Flags().BoolVar(&createRecreate, "recreate", false, "drop an existing collection first")
	cmd.AddCommand(createCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <collection>",
		Short: "Delete a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolr(cmd.Context(), "delete", args[0], nil, func(ctx context.Context, _ *solr.Client, r *command.Runner) error {
				return r.DeleteCollection(ctx, args[0])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "info <collection>",
		Short: "Show collection cluster status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolr(cmd.Context(), "info", args[0], nil, func(ctx context.Context, _ *solr.Client, r *command.Runner) error {
				return r.CollectionInfo(ctx, args[0])
			})
		},
	})

	var addDocs, addDocsFile string
	addCmd := &cobra.Command{
		Use:   "add-documents <collection>",
		Short: "Index documents into a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := loadDocuments(addDocs, addDocsFile)
			if err != nil {
				return err
			}
			return runSolr(cmd.Context(), "add-documents", args[0], nil, func(ctx context.Context, _ *solr.Client, r *command.Runner) error {
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
		Short: "Retrieve documents by IDs or filter query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := selector(getIDs, getIDsFile, getFilter)
			if err != nil {
				return err
			}
			return runSolr(cmd.Context(), "get", args[0], nil, func(ctx context.Context, _ *solr.Client, r *command.Runner) error {
				return r.GetDocuments(ctx, args[0], sel, getWithVectors)
			})
		},
	}
	getCmd.Flags().StringVar(&getIDs, "ids", "", "comma-separated document IDs")
	getCmd.Flags().StringVar(&getIDsFile, "ids-file", "", "path to a file with one ID per line")
	getCmd.Flags().StringVar(&getFilter, "filter", "", "solr query selecting documents")
	getCmd.Flags().BoolVar(&getWithVectors, "with-vectors", false, "include stored vector data in the output")
	cmd.AddCommand(getCmd)

	var rmIDs, rmIDsFile, rmFilter string
	rmCmd := &cobra.Command{
		Use:   "remove-documents <collection>",
		Short: "Delete documents by IDs or filter query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := selector(rmIDs, rmIDsFile, rmFilter)
			if err != nil {
				return err
			}
			return runSolr(cmd.Context(), "remove-documents", args[0], nil, func(ctx context.Context, _ *solr.Client, r *command.Runner) error {
				return r.RemoveDocuments(ctx, args[0], sel)
			})
		},
	}
	rmCmd.Flags().StringVar(&rmIDs, "ids", "", "comma-separated document IDs")
	rmCmd.Flags().StringVar(&rmIDsFile, "ids-file", "", "path to a file with one ID per line")
	rmCmd.Flags().StringVar(&rmFilter, "filter", "", "solr query selecting documents")
	cmd.AddCommand(rmCmd)

	var (
		searchQuery, searchFilter string
		searchLimit               uint64
	)
	searchCmd := &cobra.Command{
		Use:   "search <collection>",
		Short: "Run a text query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := docstore.SearchRequest{
				Query:  searchQuery,
				Filter: searchFilter,
				Limit:  searchLimit,
			}
			return runSolr(cmd.Context(), "search", args[0], nil, func(ctx context.Context, _ *solr.Client, r *command.Runner) error {
				return r.Search(ctx, args[0], req)
			})
		},
	}
	searchCmd.Flags().StringVar(&searchQuery, "query", "*:*", "solr query string")
	searchCmd.Flags().StringVar(&searchFilter, "filter", "", "filter query narrowing the result set")
	searchCmd.Flags().Uint64Var(&searchLimit, "limit", 10, "maximum results")
	cmd.AddCommand(searchCmd)

	var countFilter string
	countCmd := &cobra.Command{
		Use:   "count <collection>",
		Short: "Count documents in a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolr(cmd.Context(), "count", args[0], nil, func(ctx context.Context, _ *solr.Client, r *command.Runner) error {
				return r.Count(ctx, args[0], countFilter)
			})
		},
	}
	countCmd.Flags().StringVar(&countFilter, "filter", "", "solr query to count matches for")
	cmd.AddCommand(countCmd)

	cmd.AddCommand(newBatchCmd(func(ctx context.Context, collection string, sel docstore.Selector, mut docstore.FieldMutation) error {
		return runSolr(ctx, "batch", collection, nil, func(ctx context.Context, _ *solr.Client, r *command.Runner) error {
			return r.MutateFields(ctx, collection, sel, mut)
		})
	}))

	configCmd := &cobra.Command{
		Use:   "config [collection]",
		Short: "List config sets, or show a collection's config overlay",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection := ""
			if len(args) == 1 {
				collection = args[0]
			}
			return runSolr(cmd.Context(), "config", collection, nil, func(ctx context.Context, client *solr.Client, r *command.Runner) error {
				if collection == "" {
					sets, err := client.ConfigSets(ctx)
					if err != nil {
						return err
					}
					rows := make([]any, 0, len(sets))
					for _, name := range sets {
						rows = append(rows, map[string]any{"name": name})
					}
					return r.Write(rows)
				}
				overlay, err := client.Config(ctx, collection)
				if err != nil {
					return err
				}
				return r.Write(format.MergeInfo(collection, overlay, nil))
			})
		},
	}
	cmd.AddCommand(configCmd)

	return cmd
}
