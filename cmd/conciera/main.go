package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"conciera/internal/config"
	"conciera/internal/db"
	"conciera/internal/domain"
	"conciera/internal/events"
	"conciera/internal/migrate"
	"conciera/internal/repo"
	"conciera/internal/server"
	"conciera/internal/taskstore"
	"conciera/internal/workflow"
)

var rootCmd = &cobra.Command{
	Use:   "conciera",
	Short: "Conciera CLI",
	Long: `Conciera is the backend for the housekeeping agents' mobile app:
task calendar, verification workflow, and message inbox. Agents record
start/end times, comments, and photos per cleaning; any comment or photo
flags a problem and alerts the zone admin with an urgent message.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("CONCIERA")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().Bool("verbose", false, "debug logging")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(tasksCmd())
	rootCmd.AddCommand(messagesCmd())
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if viper.GetBool("verbose") {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("base-path") {
				cfg.Server.BasePath = basePath
			}
			if secret := viper.GetString("jwt-secret"); secret != "" {
				cfg.Auth.JWTSecret = secret
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			log := newLogger()
			r := repo.Repo{DB: conn}
			ev := events.Writer{DB: conn}
			handler, err := server.New(server.Config{
				Repo: r,
				Engine: func(tasks *taskstore.Store) *workflow.Engine {
					return workflow.NewEngine(r, tasks, ev, log)
				},
				Events:   ev,
				BasePath: cfg.Server.BasePath,
				Auth: server.AuthConfig{
					JWTSecret:             cfg.Auth.JWTSecret,
					AllowLegacyAuthHeader: cfg.Auth.AllowLegacyAuthHeader,
					Logger:                log,
				},
				Logger: log,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			log.Info().Str("addr", cfg.Server.Addr).Str("base_path", cfg.Server.BasePath).Msg("serving")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8470", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				fmt.Println("database up to date")
				return nil
			})
		},
	}
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed a demo zone, residence, users, and today's tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				now := time.Now()
				created := now.UTC().Format(time.RFC3339)

				zone := domain.Zone{ID: uuid.NewString(), Name: "Centre-ville", CreatedAt: created}
				if err := r.InsertZone(ctx, zone); err != nil {
					return err
				}
				res := domain.Residence{ID: uuid.NewString(), Name: "Résidence Les Pins", ShortCode: "LP", ZoneID: zone.ID}
				if err := r.InsertResidence(ctx, res, created); err != nil {
					return err
				}
				apt := domain.Apartment{ID: uuid.NewString(), Name: "LP-101", ShortCode: "101", ResidenceID: res.ID}
				if err := r.InsertApartment(ctx, apt, created); err != nil {
					return err
				}

				admin := domain.User{
					ID: uuid.NewString(), AuthID: "auth-admin", FirstName: "Claire",
					Role: "admin", Active: true, ZoneIDs: []string{zone.ID}, CreatedAt: created,
				}
				agent := domain.User{
					ID: uuid.NewString(), AuthID: "auth-agent", FirstName: "Marie",
					Role: "agent", Active: true, ZoneIDs: []string{zone.ID}, CreatedAt: created,
				}
				for _, u := range []domain.User{admin, agent} {
					if err := r.InsertUser(ctx, u); err != nil {
						return err
					}
				}

				taskType, err := r.GetTaskTypeByCode(ctx, "sortie")
				if err != nil {
					return err
				}
				status, err := r.GetValidationStatusByCode(ctx, domain.StatusToDo)
				if err != nil {
					return err
				}
				task := domain.Task{
					ID:          uuid.NewString(),
					DueDate:     now.Format("2006-01-02"),
					AgentID:     agent.ID,
					ApartmentID: apt.ID,
					TypeID:      taskType.ID,
					StatusID:    status.ID,
					CreatedAt:   created,
					UpdatedAt:   created,
				}
				if err := r.InsertTask(ctx, task); err != nil {
					return err
				}
				fmt.Printf("Seeded zone %s, agent auth id %q, admin auth id %q\n", zone.Name, agent.AuthID, admin.AuthID)
				return nil
			})
		},
	}
	return cmd
}

func tasksCmd() *cobra.Command {
	tasks := &cobra.Command{Use: "tasks", Short: "Inspect tasks"}
	tasks.AddCommand(tasksListCmd())
	return tasks
}

func tasksListCmd() *cobra.Command {
	var authID, date string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List an agent's tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				store := taskstore.New(r, newLogger(), viper.GetString("workspace"))
				store.Load(ctx, authID)
				if msg := store.Err(); msg != "" {
					return fmt.Errorf("%s", msg)
				}
				items := store.Tasks()
				if date != "" {
					items = store.TasksForDay(date)
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				t := table.NewWriter()
				t.SetOutputMirror(os.Stdout)
				t.AppendHeader(table.Row{"Date", "Apt", "Type", "Statut", "Début", "Fin", "Durée"})
				for _, item := range items {
					aptName, typeCode := "", ""
					if item.Apartment != nil {
						aptName = item.Apartment.Name
					}
					if item.Type != nil {
						typeCode = item.Type.Code
					}
					start, end := deref(item.StartTime), deref(item.EndTime)
					t.AppendRow(table.Row{
						item.DueDate,
						aptName,
						workflow.TypeBadge(typeCode),
						workflow.StatusLabel(item.StatusCode()),
						start,
						end,
						workflow.Duration(start, end),
					})
				}
				t.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&authID, "auth-id", "", "agent auth identity")
	cmd.Flags().StringVar(&date, "date", "", "filter to one day (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("auth-id")
	return cmd
}

func messagesCmd() *cobra.Command {
	msgs := &cobra.Command{Use: "messages", Short: "Inspect messages"}
	msgs.AddCommand(messagesListCmd())
	return msgs
}

func messagesListCmd() *cobra.Command {
	var recipientID string
	var archived bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a recipient's messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListMessagesByRecipient(ctx, recipientID, archived)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				now := time.Now()
				t := table.NewWriter()
				t.SetOutputMirror(os.Stdout)
				t.AppendHeader(table.Row{"Reçu", "Sujet", "Priorité", "Lu", "Archivé"})
				for _, m := range items {
					t.AppendRow(table.Row{
						workflow.InboxStamp(m.CreatedAt, now),
						deref(m.Subject),
						m.Priority,
						m.Read,
						m.Archived,
					})
				}
				t.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&recipientID, "recipient-id", "", "recipient user id")
	cmd.Flags().BoolVar(&archived, "archived", false, "include archived messages")
	_ = cmd.MarkFlagRequired("recipient-id")
	return cmd
}

// --- helpers ---

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
