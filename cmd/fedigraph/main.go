package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"fedigraph"
	"fedigraph/internal/config"
	"fedigraph/internal/fetch"
	"fedigraph/internal/logging"
	"fedigraph/internal/retry"
	"fedigraph/internal/storage"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "fedigraph",
		Short: "Browse and load the Fediverse interaction graph dataset",
	}
	configPath string
	dataDir    string
	offline    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "", "Local dataset directory (overrides dataset.root)")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "Never download; fail if the dataset is missing")

	fetchCmd.Flags().Bool("force", false, "Delete the local dataset and download it again")
	graphCmd.Flags().Bool("json", false, "Print the graph as JSON")
	exportCmd.Flags().String("db", "", "SQLite database path (overrides store.path)")
	snapshotsCmd.Flags().String("db", "", "SQLite database path (overrides store.path)")

	rootCmd.AddCommand(fetchCmd, softwareCmd, typesCmd, datesCmd, graphCmd, metadataCmd, exportCmd, snapshotsCmd)
}

func loadConfig() *config.Config {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if dataDir != "" {
		cfg.Dataset.Root = dataDir
	}
	return cfg
}

// initLoader builds the fetcher from the configuration and opens the dataset.
func initLoader(ctx context.Context) (*fedigraph.Loader, *config.Config) {
	cfg := loadConfig()

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	var fetcher fetch.Fetcher = fetch.Local{}
	if !offline {
		rc := retry.DefaultConfig()
		rc.MaxAttempts = cfg.Attempts()
		fetcher = fetch.NewHTTPFetcher(cfg.Dataset.URL,
			fetch.WithCredentials(cfg.Dataset.Username, cfg.Dataset.Key),
			fetch.WithStripComponents(cfg.Dataset.StripComponents),
			fetch.WithTimeout(cfg.Dataset.Timeout),
			fetch.WithRetry(rc),
			fetch.WithLogger(logger),
		)
	}

	if !fetch.IsPresent(cfg.Dataset.Root) && !offline {
		fmt.Printf("📥 Dataset not found at %s, downloading...\n", cfg.Dataset.Root)
	}
	l, err := fedigraph.New(ctx, cfg.Dataset.Root,
		fedigraph.WithFetcher(fetcher),
		fedigraph.WithLogger(logger),
	)
	if err != nil {
		log.Fatalf("Failed to open dataset: %v", err)
	}
	return l, cfg
}

func dateArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return ""
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the dataset if it is not present locally",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		start := time.Now()
		if force, _ := cmd.Flags().GetBool("force"); force {
			if offline {
				log.Fatalf("❌ --force needs downloads; drop --offline")
			}
			root := loadConfig().Dataset.Root
			fmt.Printf("🗑️  Removing dataset at %s\n", root)
			if err := fetch.Remove(root); err != nil {
				log.Fatalf("❌ %v", err)
			}
		}
		l, _ := initLoader(context.Background())
		fmt.Printf("✅ Dataset ready at %s (%d snapshots, %v)\n", l.Root(), len(l.Entries()), time.Since(start).Round(time.Millisecond))
	},
}

var softwareCmd = &cobra.Command{
	Use:   "software",
	Short: "List the platforms in the dataset",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		l, _ := initLoader(context.Background())
		for _, s := range l.ListAllSoftware() {
			fmt.Println(s)
		}
	},
}

var typesCmd = &cobra.Command{
	Use:   "types <software>",
	Short: "List the graph types of a platform",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		l, _ := initLoader(context.Background())
		types, err := l.ListGraphTypes(args[0])
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		for _, gt := range types {
			fmt.Println(gt)
		}
	},
}

var datesCmd = &cobra.Command{
	Use:   "dates <software> <graph_type>",
	Short: "List the snapshot dates of a graph type, oldest first",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		l, _ := initLoader(context.Background())
		dates, err := l.ListAvailableDates(args[0], args[1])
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		for _, d := range dates {
			fmt.Println(d)
		}
	},
}

var graphCmd = &cobra.Command{
	Use:   "graph <software> <graph_type> [date]",
	Short: "Load a snapshot (latest by default) and print a summary",
	Args:  cobra.RangeArgs(2, 3),
	Run: func(cmd *cobra.Command, args []string) {
		l, _ := initLoader(context.Background())

		e, err := l.Resolve(args[0], args[1], dateArg(args, 2))
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		g, err := l.GetGraph(e.Platform, e.GraphType, e.Date)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(g); err != nil {
				log.Fatalf("Failed to encode graph: %v", err)
			}
			return
		}

		st := g.Stats()
		fmt.Printf("📊 %s\n", e.Key)
		fmt.Printf("  nodes:    %d (%d isolated)\n", st.Nodes, st.IsolatedNodes)
		fmt.Printf("  edges:    %d\n", st.Edges)
		fmt.Printf("  artifact: %s\n", e.InteractionsPath)
	},
}

var metadataCmd = &cobra.Command{
	Use:   "metadata <software> <graph_type> [date]",
	Short: "Print the node metadata table of a snapshot as TSV",
	Args:  cobra.RangeArgs(2, 3),
	Run: func(cmd *cobra.Command, args []string) {
		l, _ := initLoader(context.Background())
		table, err := l.GetGraphMetadata(args[0], args[1], dateArg(args, 2))
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		if len(table.Columns) == 0 {
			fmt.Println("⚠️  Snapshot has no node metadata")
			return
		}
		fmt.Println(strings.Join(table.Columns, "\t"))
		for _, row := range table.Rows {
			fmt.Println(strings.Join(row, "\t"))
		}
	},
}

func openStore(cmd *cobra.Command, cfg *config.Config) *storage.SQLiteStore {
	path := cfg.Store.Path
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		path = p
	}
	store, err := storage.NewSQLiteStore(path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	return store
}

var exportCmd = &cobra.Command{
	Use:   "export <software> <graph_type> [date]",
	Short: "Save a snapshot into a local SQLite database",
	Args:  cobra.RangeArgs(2, 3),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		l, cfg := initLoader(ctx)

		e, err := l.Resolve(args[0], args[1], dateArg(args, 2))
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		g, err := l.GetGraph(e.Platform, e.GraphType, e.Date)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}

		store := openStore(cmd, cfg)
		defer store.Close()

		fmt.Printf("💾 Saving %s to local database...\n", e.Key)
		if err := store.SaveSnapshot(ctx, e.Key, g); err != nil {
			log.Fatalf("Failed to save snapshot: %v", err)
		}
		fmt.Printf("🎉 Export complete! %d nodes, %d edges\n", len(g.Nodes), len(g.Edges))
	},
}

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List snapshots saved with export",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore(cmd, loadConfig())
		defer store.Close()

		infos, err := store.ListSnapshots(context.Background())
		if err != nil {
			log.Fatalf("Failed to list snapshots: %v", err)
		}
		for _, info := range infos {
			fmt.Printf("%s\t%d nodes\t%d edges\t%s\n", info.Key, info.Nodes, info.Edges, info.StoredAt.Format(time.RFC3339))
		}
	},
}
