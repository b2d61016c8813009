// cmd/loanctl/main.go - operator CLI: schema migrations, dev tokens and
// read-only inspection of loan application history.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"loan-origination-api/config"
	"loan-origination-api/middleware"
	"loan-origination-api/migrations"
	"loan-origination-api/models"
	"loan-origination-api/services"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "loanctl",
		Short:         "Operator tooling for the loan origination API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMigrateCmd(), newTokenCmd(), newHistoryCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the database schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := config.OpenSQL(cfg.Database)
			if err != nil {
				return err
			}
			if err := migrations.Up(db, cfg.Database.Driver); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", cfg.Database.Driver)
			return nil
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := config.OpenSQL(cfg.Database)
			if err != nil {
				return err
			}
			if err := migrations.Down(db, cfg.Database.Driver, steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations rolled back (%s)\n", cfg.Database.Driver)
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back (0 = all)")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := config.OpenSQL(cfg.Database)
			if err != nil {
				return err
			}
			v, dirty, err := migrations.Version(db, cfg.Database.Driver)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d dirty=%t\n", v, dirty)
			return nil
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		userID string
		roleID int
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a signed API token for local testing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.JWTSecret) == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			token, err := middleware.IssueToken([]byte(cfg.JWTSecret), userID, roleID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "user id placed in the token")
	cmd.Flags().IntVar(&roleID, "role-id", middleware.RoleCreditAdmin, "role id (1 admin, 2 credit admin, 3 credit manager)")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <loan-application-id>",
		Short: "Print the audit trail of a loan application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := charmlog.NewWithOptions(cmd.ErrOrStderr(), charmlog.Options{Level: charmlog.WarnLevel})
			db, err := config.OpenDB(cfg, logger)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}

			txm := services.NewTxManager(db)
			entries, err := services.NewAuditTrailRecorder().ListHistory(txm.ReadScope(context.Background()), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), historyTable(entries))
			return nil
		},
	}
}

func historyTable(entries []models.LoanApplicationHistory) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("CREATED AT", "ACTION", "PERFORMED BY", "REMARKS").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})

	for _, e := range entries {
		remarks := "-"
		if e.Remarks != nil {
			remarks = *e.Remarks
		}
		t.Row(e.CreatedAt.UTC().Format(time.RFC3339), string(e.Action), e.PerformedByID, remarks)
	}
	return t.String()
}
