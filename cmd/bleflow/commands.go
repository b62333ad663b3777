package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nerrad567/bleflow/internal/auth"
	"github.com/nerrad567/bleflow/internal/entry"
	"github.com/nerrad567/bleflow/internal/infrastructure/config"
)

func (a *App) buildConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Load the configuration file, apply BLEFLOW_* environment overrides and
print the result as YAML. Secrets are masked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return printConfig(cmd.OutOrStdout(), cfg)
		},
	}
}

func printConfig(w io.Writer, cfg *config.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg.Masked()); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return enc.Close()
}

func (a *App) buildEntriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "Inspect and remove config entries",
	}

	var domain string
	list := &cobra.Command{
		Use:   "list",
		Short: "List config entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withRegistry(cmd.Context(), func(ctx context.Context, r *entry.Registry) error {
				var entries []entry.Entry
				var err error
				if domain != "" {
					entries, err = r.ListByDomain(ctx, domain)
				} else {
					entries, err = r.ListEntries(ctx)
				}
				if err != nil {
					return err
				}
				return printEntries(cmd.OutOrStdout(), entries)
			})
		},
	}
	list.Flags().StringVar(&domain, "domain", "", "only show entries of this integration domain")

	del := &cobra.Command{
		Use:   "delete <entry-id>",
		Short: "Delete a config entry",
		Long: `Delete a config entry. The device is offered for setup again the next
time it advertises.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRegistry(cmd.Context(), func(ctx context.Context, r *entry.Registry) error {
				if err := r.DeleteEntry(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(list, del)
	return cmd
}

// withRegistry opens the configured database and runs fn against a
// registry loaded from it.
func (a *App) withRegistry(ctx context.Context, fn func(context.Context, *entry.Registry) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(a.configPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // read-mostly CLI

	r := entry.NewRegistry(entry.NewSQLiteRepository(db.DB))
	if err := r.RefreshCache(ctx); err != nil {
		return fmt.Errorf("loading entries: %w", err)
	}
	return fn(ctx, r)
}

func printEntries(w io.Writer, entries []entry.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "no entries")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDOMAIN\tUNIQUE ID\tTITLE\tSOURCE\tSTATE\tCREATED")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.Domain, e.UniqueID, e.Title, e.Source, e.State, e.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func (a *App) buildHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Hash an admin password for the config file",
		Long: `Print the Argon2id hash of a password, for use as security.admin.password_hash.
The password is read from stdin when not given as an argument.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("reading password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
