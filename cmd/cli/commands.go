package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/aryan0dhankhar/paymentsportal/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/paymentsportal/internal/repository"
	"github.com/aryan0dhankhar/paymentsportal/internal/security/password"
	"github.com/aryan0dhankhar/paymentsportal/internal/service"
	"github.com/aryan0dhankhar/paymentsportal/pkg/config"
	"github.com/aryan0dhankhar/paymentsportal/pkg/database"
)

// seedAdminCmd talks to the database directly; there is no API for creating
// the first admin.
func seedAdminCmd() *cobra.Command {
	var firstName, surname string
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the initial admin account if it does not exist",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			_ = godotenv.Load()
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw := os.Getenv("PAYMENTS_ADMIN_PASSWORD")
			if pw == "" {
				return errors.New("PAYMENTS_ADMIN_PASSWORD must be set")
			}
			if !password.CheckPolicy(pw).OK {
				return errors.New("PAYMENTS_ADMIN_PASSWORD needs 12+ characters with upper, lower, digit and symbol")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.StoreDriver != "postgres" {
				return fmt.Errorf("seed-admin needs STORE_DRIVER=postgres, got %q", cfg.StoreDriver)
			}
			log := logger.NewLogger(cfg.LogLevel, "text")

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			pool, err := database.NewConnectionPool(ctx, cfg.Database(), log)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := pool.EnsureSchema(ctx); err != nil {
				return err
			}

			hasher, err := password.NewHasher(cfg.PasswordPepper, cfg.BcryptCost, cfg.HashWorkers)
			if err != nil {
				return err
			}
			users := repository.NewPostgresUserRepository(pool.GetDB(), log)
			admin := service.NewAdminService(users, hasher, nil, nil, log)
			user, created, err := admin.SeedAdmin(ctx, firstName, surname, pw)
			if err != nil {
				return err
			}
			if !created {
				fmt.Fprintf(cmd.OutOrStdout(), "admin already exists (id %s)\n", user.ID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %q (id %s)\n", user.Username, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&firstName, "first-name", "System", "admin first name")
	cmd.Flags().StringVar(&surname, "surname", "Admin", "admin surname")
	return cmd
}

func csrfCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "csrf",
		Short: "Fetch a fresh CSRF token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.sess.CSRFToken = ""
			if err := a.client.ensureCSRF(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.sess.CSRFToken)
			return a.save()
		},
	}
}

func loginCmd(a *app) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw := os.Getenv("PAYMENTS_PASSWORD")
			if pw == "" {
				return errors.New("PAYMENTS_PASSWORD must be set")
			}
			ctx := cmd.Context()
			if err := a.client.ensureCSRF(ctx); err != nil {
				return err
			}
			var out struct {
				AccessToken string `json:"accessToken"`
				Role        string `json:"role"`
			}
			err := a.client.do(ctx, http.MethodPost, "/auth/login", map[string]string{"username": username, "password": pw}, &out)
			if err != nil {
				return err
			}
			a.sess.AccessToken = out.AccessToken
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (%s)\n", username, out.Role)
			return a.save()
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the refresh token and forget the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.client.ensureCSRF(cmd.Context()); err != nil {
				return err
			}
			if err := a.client.do(cmd.Context(), http.MethodPost, "/auth/logout", nil, nil); err != nil {
				return err
			}
			a.sess.AccessToken = ""
			return a.save()
		},
	}
}

type queueItem struct {
	ID        string    `json:"id"`
	Reference string    `json:"reference"`
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
	SwiftBIC  string    `json:"swiftBic"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

func queueCmd(a *app) *cobra.Command {
	var (
		status string
		limit  int
		cursor string
	)
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "List the international payment queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := url.Values{}
			q.Set("status", status)
			q.Set("limit", strconv.Itoa(limit))
			if cursor != "" {
				q.Set("cursor", cursor)
			}
			var page struct {
				Items      []queueItem `json:"items"`
				NextCursor *string     `json:"nextCursor"`
			}
			if err := a.client.do(cmd.Context(), http.MethodGet, "/intl/queue?"+q.Encode(), nil, &page); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tREFERENCE\tAMOUNT\tSWIFT\tSTATUS\tCREATED")
			for _, it := range page.Items {
				fmt.Fprintf(tw, "%s\t%s\t%s %s\t%s\t%s\t%s\n",
					it.ID, it.Reference, it.Amount, it.Currency, it.SwiftBIC, it.Status, it.CreatedAt.Format(time.RFC3339))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if page.NextCursor != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "\nnext page: --cursor %s\n", *page.NextCursor)
			}
			return a.save()
		},
	}
	cmd.Flags().StringVar(&status, "status", "pending", "pending, verified, queued, forwarded or failed")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "page size (max 100)")
	cmd.Flags().StringVar(&cursor, "cursor", "", "createdAt of the last item on the previous page")
	return cmd
}

func verifyCmd(a *app) *cobra.Command {
	var swift string
	cmd := &cobra.Command{
		Use:   "verify <id>",
		Short: "Verify a pending payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{}
			if swift != "" {
				body["swiftBic"] = swift
			}
			var out queueItem
			if err := a.client.do(cmd.Context(), http.MethodPost, "/intl/"+url.PathEscape(args[0])+"/verify", body, &out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", out.Reference, out.Status)
			return a.save()
		},
	}
	cmd.Flags().StringVar(&swift, "swift", "", "expected SWIFT/BIC; the payment must match")
	return cmd
}

func submitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <id>...",
		Short: "Queue verified payments for SWIFT",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) == 1 {
				var out queueItem
				if err := a.client.do(ctx, http.MethodPost, "/intl/"+url.PathEscape(args[0])+"/submit", nil, &out); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", out.Reference, out.Status)
				return a.save()
			}
			var out struct {
				Matched  int `json:"matched"`
				Modified int `json:"modified"`
			}
			if err := a.client.do(ctx, http.MethodPost, "/intl/submit-bulk", map[string][]string{"ids": args}, &out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "matched %d, queued %d\n", out.Matched, out.Modified)
			return a.save()
		},
	}
}
