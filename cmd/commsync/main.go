package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/christiantansastro/ai-chatbot-sub001/internal/config"
	"github.com/christiantansastro/ai-chatbot-sub001/internal/db"
	"github.com/christiantansastro/ai-chatbot-sub001/internal/openphone"
	"github.com/christiantansastro/ai-chatbot-sub001/internal/store"
	commsync "github.com/christiantansastro/ai-chatbot-sub001/internal/sync"
)

var (
	version    = "dev"
	commit     = "none"
	buildDate  = "unknown"
	jsonOutput bool
)

func main() {
	_ = godotenv.Load()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	rootCmd := &cobra.Command{
		Use:   "commsync",
		Short: "OpenPhone communications synchronizer",
		Long: `Commsync reconciles OpenPhone call and message history with
internal client records, producing a normalized, deduplicated
communications log. It supports bulk polling sync and webhook ingestion.`,
	}

	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOutput {
				printJSON(map[string]string{
					"version": version,
					"commit":  commit,
					"date":    buildDate,
				})
			} else {
				fmt.Printf("commsync %s (%s, %s)\n", version, commit, buildDate)
			}
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Initialize commsync config and database",
		Run: func(cmd *cobra.Command, args []string) {
			type Result struct {
				OK        bool   `json:"ok"`
				Message   string `json:"message,omitempty"`
				ConfigDir string `json:"config_dir,omitempty"`
				DataDir   string `json:"data_dir,omitempty"`
				DBPath    string `json:"db_path,omitempty"`
			}

			result := Result{OK: true}

			configDir, err := config.GetConfigDir()
			if err != nil {
				fail(fmt.Sprintf("Failed to get config directory: %v", err))
			}
			result.ConfigDir = configDir

			dataDir, err := config.GetDataDir()
			if err != nil {
				fail(fmt.Sprintf("Failed to get data directory: %v", err))
			}
			result.DataDir = dataDir

			if err := os.MkdirAll(configDir, 0755); err != nil {
				fail(fmt.Sprintf("Failed to create config directory: %v", err))
			}
			if err := os.MkdirAll(dataDir, 0755); err != nil {
				fail(fmt.Sprintf("Failed to create data directory: %v", err))
			}
			if err := db.Init(); err != nil {
				fail(fmt.Sprintf("Failed to initialize database: %v", err))
			}

			dbPath, err := db.GetPath()
			if err != nil {
				fail(fmt.Sprintf("Failed to get database path: %v", err))
			}
			result.DBPath = dbPath
			result.Message = "Commsync initialized successfully"

			if jsonOutput {
				printJSON(result)
			} else {
				fmt.Printf("✓ Config directory: %s\n", result.ConfigDir)
				fmt.Printf("✓ Data directory: %s\n", result.DataDir)
				fmt.Printf("✓ Database: %s\n", result.DBPath)
				fmt.Println("\nCommsync initialized successfully!")
			}
		},
	})

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a bulk communications sync",
		Run: func(cmd *cobra.Command, args []string) {
			type Result struct {
				OK      bool                 `json:"ok"`
				Message string               `json:"message,omitempty"`
				Sync    *commsync.SyncResult `json:"sync,omitempty"`
			}

			database, svc, err := openService(logger)
			if err != nil {
				fail(err.Error())
			}
			defer database.Close()

			opts := commsync.DefaultOptions()
			if v, _ := cmd.Flags().GetString("start"); v != "" {
				ts, err := parseTimeFlag(v)
				if err != nil {
					fail(fmt.Sprintf("Invalid --start: %v", err))
				}
				opts.StartDate = ts
			}
			if v, _ := cmd.Flags().GetString("end"); v != "" {
				ts, err := parseTimeFlag(v)
				if err != nil {
					fail(fmt.Sprintf("Invalid --end: %v", err))
				}
				opts.EndDate = ts
			}
			opts.IncludeCalls, _ = cmd.Flags().GetBool("calls")
			opts.IncludeMessages, _ = cmd.Flags().GetBool("messages")
			opts.PageSize, _ = cmd.Flags().GetInt("page-size")

			syncResult, err := svc.SyncCommunications(context.Background(), opts)
			if err != nil {
				fail(fmt.Sprintf("Sync failed: %v", err))
			}

			if jsonOutput {
				printJSON(Result{OK: true, Sync: &syncResult})
			} else {
				fmt.Printf("Calls processed:         %d\n", syncResult.CallsProcessed)
				fmt.Printf("Conversations processed: %d\n", syncResult.ConversationsProcessed)
				fmt.Printf("Communications created:  %d\n", syncResult.CommunicationsCreated)
				fmt.Printf("Communications updated:  %d\n", syncResult.CommunicationsUpdated)
				fmt.Printf("Clients created:         %d\n", syncResult.ClientsCreated)
			}
		},
	}
	syncCmd.Flags().String("start", "", "Window start (RFC 3339 or YYYY-MM-DD; default 24h lookback)")
	syncCmd.Flags().String("end", "", "Window end (RFC 3339 or YYYY-MM-DD; default now)")
	syncCmd.Flags().Bool("calls", true, "Include calls")
	syncCmd.Flags().Bool("messages", true, "Include messages")
	syncCmd.Flags().Int("page-size", 100, "Provider page size (1-100)")
	rootCmd.AddCommand(syncCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "webhook [file]",
		Short: "Process one webhook event from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			type Result struct {
				OK      bool   `json:"ok"`
				Message string `json:"message,omitempty"`
			}

			var raw []byte
			var err error
			if len(args) == 1 {
				raw, err = os.ReadFile(args[0])
			} else {
				raw, err = io.ReadAll(os.Stdin)
			}
			if err != nil {
				fail(fmt.Sprintf("Failed to read event: %v", err))
			}

			database, svc, err := openService(logger)
			if err != nil {
				fail(err.Error())
			}
			defer database.Close()

			svc.HandleWebhookEvent(context.Background(), raw)

			if jsonOutput {
				printJSON(Result{OK: true})
			} else {
				fmt.Println("✓ Webhook event processed")
			}
		},
	})

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an HTTP webhook endpoint",
		Run: func(cmd *cobra.Command, args []string) {
			addr, _ := cmd.Flags().GetString("addr")

			database, svc, err := openService(logger)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			defer database.Close()

			mux := http.NewServeMux()
			mux.HandleFunc("/webhooks/openphone", func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
					return
				}
				raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
				if err != nil {
					http.Error(w, "read body", http.StatusBadRequest)
					return
				}
				// Acknowledge regardless of processing outcome; the provider
				// retries on non-2xx and the upsert key makes retries safe.
				svc.HandleWebhookEvent(r.Context(), raw)
				w.WriteHeader(http.StatusOK)
			})

			logger.Info().Str("addr", addr).Msg("webhook server listening")
			server := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}
			if err := server.ListenAndServe(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		},
	}
	serveCmd.Flags().String("addr", ":8790", "Listen address")
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openService opens the database and wires the sync service. A database that
// cannot be opened is fatal for every entry point.
func openService(logger zerolog.Logger) (*sql.DB, *commsync.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.OpenPhone.APIKey == "" {
		return nil, nil, fmt.Errorf("OPENPHONE_API_KEY is not set (env, .env, or config.yaml)")
	}

	database, err := db.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	provider := openphone.NewClient(cfg.OpenPhone.APIKey, cfg.OpenPhone.BaseURL)
	svc := commsync.New(
		store.NewClientStore(database),
		store.NewCommunicationStore(database),
		provider,
		logger,
	)
	return database, svc, nil
}

func parseTimeFlag(v string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, v); err == nil {
		return ts, nil
	}
	return time.Parse("2006-01-02", v)
}

func fail(message string) {
	if jsonOutput {
		printJSON(map[string]any{"ok": false, "message": message})
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	}
	os.Exit(1)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
