package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/internal/worker"
)

var errNoDSN = errors.New("POSTGRES_DSN is required")

// env is the lazily opened runtime shared by subcommands.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	pg     *persistence.Postgres
}

func (e *env) open(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Postgres.DSN == "" {
		return errNoDSN
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return err
	}
	e.cfg, e.logger, e.pg = cfg, logger, pg
	return nil
}

func (e *env) close() {
	e.pg.Close()
	if e.logger != nil {
		_ = e.logger.Sync()
	}
}

func newRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:           "helpdeskctl",
		Short:         "Administer the help-desk service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newMigrateCmd(e),
		newPurgeAttachmentsCmd(e),
		newAddUserCmd(e),
		newIssueTokenCmd(e),
	)
	return root
}

func newMigrateCmd(e *env) *cobra.Command {
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back schema migrations",
	}
	migrate.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.open(cmd.Context()); err != nil {
				return err
			}
			defer e.close()
			return persistence.RunMigrations(e.pg.PoolHandle(), e.logger)
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps <= 0 {
				return fmt.Errorf("--steps must be positive")
			}
			if err := e.open(cmd.Context()); err != nil {
				return err
			}
			defer e.close()
			return persistence.RollbackMigrations(e.pg.PoolHandle(), steps, e.logger)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	migrate.AddCommand(down)
	return migrate
}

func newPurgeAttachmentsCmd(e *env) *cobra.Command {
	var hours int
	cmd := &cobra.Command{
		Use:   "purge-attachments",
		Short: "Delete pending uploads that were never linked to a ticket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.open(cmd.Context()); err != nil {
				return err
			}
			defer e.close()
			if !cmd.Flags().Changed("hours") {
				hours = e.cfg.Workflow.PendingAttachmentMaxAgeHours
			}
			sweeper := worker.NewAttachmentSweeper(repository.NewTicketRepository(e.pg.PoolHandle()), hours, time.Hour, e.logger)
			if sweeper.Sweep(cmd.Context()) {
				fmt.Fprintln(cmd.OutOrStdout(), "derelict attachments removed")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to remove")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&hours, "hours", 24, "minimum age in hours of a pending upload")
	return cmd
}

func newAddUserCmd(e *env) *cobra.Command {
	var displayName, email, roles string
	cmd := &cobra.Command{
		Use:   "add-user <user-name>",
		Short: "Create or update a directory user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseRoles(roles)
			if err != nil {
				return err
			}
			if err := e.open(cmd.Context()); err != nil {
				return err
			}
			defer e.close()
			users := service.NewUserService(repository.NewUserRepository(e.pg.PoolHandle()), nil, nil)
			user, err := users.AddUser(cmd.Context(), args[0], displayName, email, parsed)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%s)\n", user.UserName, roles)
			return nil
		},
	}
	cmd.Flags().StringVar(&displayName, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "notification address")
	cmd.Flags().StringVar(&roles, "roles", string(domain.RoleInternalUser), "comma separated roles (ADMINISTRATOR, HELP_DESK, INTERNAL_USER)")
	return cmd
}

func newIssueTokenCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "issue-token <user-name>",
		Short: "Print a bearer token for a directory user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.open(cmd.Context()); err != nil {
				return err
			}
			defer e.close()
			tokens := auth.NewTokenManager(e.cfg.Auth.JWTSecret, e.cfg.Auth.AccessTokenTTLMinutes)
			users := service.NewUserService(repository.NewUserRepository(e.pg.PoolHandle()), nil, tokens)
			token, expires, err := users.IssueToken(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.UTC().Format(time.RFC3339))
			return nil
		},
	}
}

func parseRoles(raw string) ([]domain.UserRole, error) {
	var roles []domain.UserRole
	for _, part := range strings.Split(raw, ",") {
		role := domain.UserRole(strings.ToUpper(strings.TrimSpace(part)))
		if role == "" {
			continue
		}
		if !role.Valid() {
			return nil, fmt.Errorf("unknown role %q", part)
		}
		roles = append(roles, role)
	}
	if len(roles) == 0 {
		return nil, fmt.Errorf("at least one role is required")
	}
	return roles, nil
}
