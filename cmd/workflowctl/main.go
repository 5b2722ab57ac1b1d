// Command workflowctl runs maintenance jobs against the workflow database.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"journal-workflow-api/config"
	"journal-workflow-api/middleware"
	"journal-workflow-api/migrations"
	"journal-workflow-api/services"
)

var configPath string

// env carries what every subcommand needs once the config is loaded.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
}

func setup(withDB bool) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := config.NewLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	e := &env{cfg: cfg, logger: logger}
	if withDB {
		if e.db, err = config.InitDB(&cfg.Database, cfg.Environment, logger); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *env) workflow() (*services.Workflow, *services.Dispatcher) {
	rdb, err := config.NewRedisClient(&e.cfg.Redis)
	if err != nil {
		e.logger.Warn("Redis unavailable, event publishing to Redis disabled", zap.Error(err))
		rdb = nil
	}
	dispatcher := services.NewDispatcherFromConfig(e.cfg, e.db, rdb, e.logger)
	return services.NewWorkflow(services.Deps{DB: e.db, Events: dispatcher, Logger: e.logger}), dispatcher
}

func main() {
	root := &cobra.Command{
		Use:           "workflowctl",
		Short:         "Maintenance tool for the journal workflow service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a config file (optional)")

	root.AddCommand(newMigrateCmd(), newReleaseIssueCmd(), newReleaseDueCmd(), newTokenCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back schema migrations",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(true)
			if err != nil {
				return err
			}
			sqlDB, err := e.db.DB()
			if err != nil {
				return err
			}
			return migrations.Up(sqlDB, e.logger)
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(true)
			if err != nil {
				return err
			}
			sqlDB, err := e.db.DB()
			if err != nil {
				return err
			}
			return migrations.Down(sqlDB, steps, e.logger)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(up, down)
	return cmd
}

func newReleaseIssueCmd() *cobra.Command {
	var issueID int
	cmd := &cobra.Command{
		Use:   "release-issue",
		Short: "Publish one issue and every article scheduled in it",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(true)
			if err != nil {
				return err
			}
			wf, dispatcher := e.workflow()
			defer dispatcher.Wait()

			res, err := wf.Production.ReleaseIssue(cmd.Context(), services.SystemActor(), issueID)
			if err != nil {
				return err
			}
			fmt.Printf("Issue %d released: %d published, %d skipped\n", res.IssueID, len(res.Published), len(res.Skipped))
			return nil
		},
	}
	cmd.Flags().IntVar(&issueID, "id", 0, "issue id (required)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newReleaseDueCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "release-due",
		Short: "Release every unpublished issue whose scheduled date has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now().UTC()
			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at must be RFC 3339: %w", err)
				}
				now = parsed
			}

			e, err := setup(true)
			if err != nil {
				return err
			}
			wf, dispatcher := e.workflow()
			defer dispatcher.Wait()

			results, err := wf.Production.ReleaseDueIssues(cmd.Context(), now)
			for _, res := range results {
				fmt.Printf("Issue %d released: %d published, %d skipped\n", res.IssueID, len(res.Published), len(res.Skipped))
			}
			if len(results) == 0 && err == nil {
				fmt.Println("No issues due")
			}
			return err
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "reference time in RFC 3339 (default now)")
	return cmd
}

// newTokenCmd signs a development token; real tokens come from the auth service.
func newTokenCmd() *cobra.Command {
	var (
		userID int
		roles  string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a development access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(false)
			if err != nil {
				return err
			}
			if e.cfg.IsProduction() {
				return fmt.Errorf("token signing is disabled in production")
			}
			var roleList []string
			for _, r := range strings.Split(roles, ",") {
				if r = strings.TrimSpace(r); r != "" {
					roleList = append(roleList, r)
				}
			}
			token, err := middleware.IssueToken(e.cfg.Auth.JWTSecret, e.cfg.Auth.Issuer, userID, roleList, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().IntVar(&userID, "user", 0, "user id (required)")
	cmd.Flags().StringVar(&roles, "roles", "", "comma separated global roles, e.g. admin")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
