// Package cli holds the quanlyctl command tree.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/quanly-erp/quanly/internal/catalog"
	"github.com/quanly-erp/quanly/internal/permctx"
	"github.com/quanly-erp/quanly/jobs"
)

// Options are the persistent flags shared by every command.
type Options struct {
	BaseURL     string
	AccessToken string
	RedisAddr   string
	CatalogFile string
	Output      string
	Timeout     time.Duration
}

// Deps lets tests replace the network-facing collaborators.
type Deps struct {
	Fetcher func(opts *Options) permctx.Fetcher
	Jobs    func(opts *Options) *JobsCLI
}

func defaultDeps() Deps {
	return Deps{
		Fetcher: func(opts *Options) permctx.Fetcher {
			return &permctx.HTTPFetcher{
				BaseURL:     opts.BaseURL,
				AccessToken: opts.AccessToken,
				Client:      &http.Client{Timeout: opts.Timeout},
			}
		},
		Jobs: func(opts *Options) *JobsCLI { return NewJobsCLI(opts.RedisAddr) },
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// NewRootCommand builds quanlyctl. A zero Deps uses the live HTTP and Redis
// clients.
func NewRootCommand(out io.Writer, deps Deps) *cobra.Command {
	if deps.Fetcher == nil || deps.Jobs == nil {
		def := defaultDeps()
		if deps.Fetcher == nil {
			deps.Fetcher = def.Fetcher
		}
		if deps.Jobs == nil {
			deps.Jobs = def.Jobs
		}
	}
	opts := &Options{
		BaseURL:     envOr("QUANLY_URL", "http://localhost:8080"),
		AccessToken: envOr("QUANLY_TOKEN", ""),
		RedisAddr:   envOr("REDIS_ADDR", "127.0.0.1:6379"),
		CatalogFile: envOr("CATALOG_FILE", ""),
		Output:      "text",
		Timeout:     10 * time.Second,
	}

	root := &cobra.Command{
		Use:           "quanlyctl",
		Short:         "Operator tooling for QuanLy ERP access control",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&opts.BaseURL, "url", opts.BaseURL, "server base URL (env QUANLY_URL)")
	root.PersistentFlags().StringVar(&opts.AccessToken, "token", opts.AccessToken, "access token (env QUANLY_TOKEN)")
	root.PersistentFlags().StringVar(&opts.RedisAddr, "redis", opts.RedisAddr, "redis address for job commands (env REDIS_ADDR)")
	root.PersistentFlags().StringVar(&opts.CatalogFile, "catalog", opts.CatalogFile, "role catalog file, embedded catalog when empty (env CATALOG_FILE)")
	root.PersistentFlags().StringVarP(&opts.Output, "out", "o", opts.Output, "output format: text|json")
	root.PersistentFlags().DurationVar(&opts.Timeout, "timeout", opts.Timeout, "request timeout")

	root.AddCommand(
		newWhoamiCommand(opts, deps),
		newNavCommand(opts, deps),
		newCatalogCommand(opts),
		newJobsCommand(opts, deps),
	)
	return root
}

func loadCatalog(opts *Options) (*catalog.Catalog, error) {
	if opts.CatalogFile != "" {
		return catalog.Load(opts.CatalogFile)
	}
	return catalog.Default()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newWhoamiCommand(opts *Options, deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the caller's role and permissions as the server resolves them",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
			defer cancel()
			pc := permctx.New(deps.Fetcher(opts), nil, permctx.Options{})
			if err := pc.Load(ctx); err != nil {
				return fmt.Errorf("whoami: %w", err)
			}
			user := pc.User()
			w := cmd.OutOrStdout()
			if opts.Output == "json" {
				return printJSON(w, user)
			}
			fmt.Fprintf(w, "id:          %s\n", user.ID)
			fmt.Fprintf(w, "email:       %s\n", user.Email)
			fmt.Fprintf(w, "role:        %s\n", pc.Role())
			fmt.Fprintf(w, "permissions: %s\n", strings.Join(pc.Permissions(), ", "))
			return nil
		},
	}
}

func newNavCommand(opts *Options, deps Deps) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "nav",
		Short: "Print the sidebar a role sees",
		Long: "Print the sidebar a role sees. With --role the catalog permissions " +
			"of that role are used; otherwise the caller is loaded from the server.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(opts)
			if err != nil {
				return err
			}
			nav, err := permctx.NewNavigator(cat, 0)
			if err != nil {
				return err
			}
			var items []catalog.NavItem
			if role != "" {
				items = nav.Filter(role, cat.Permissions(role))
			} else {
				ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
				defer cancel()
				pc := permctx.New(deps.Fetcher(opts), nav, permctx.Options{})
				if err := pc.Load(ctx); err != nil {
					return fmt.Errorf("nav: %w", err)
				}
				items = pc.Navigation()
			}
			w := cmd.OutOrStdout()
			if opts.Output == "json" {
				return printJSON(w, items)
			}
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TITLE\tHREF\tICON\tPERMISSION")
			for _, it := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", it.Title, it.Href, it.Icon.Component(), it.Permission)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "role name from the catalog")
	return cmd
}

func newCatalogCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the role catalog",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load the catalog and report every role",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(opts)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, name := range cat.Roles() {
				fmt.Fprintf(w, "%s: %d permissions, %d pages, %d nav items\n",
					name, len(cat.Permissions(name)), len(cat.AllowedPages(name)), len(cat.Navigation(name)))
			}
			fmt.Fprintln(w, "ok")
			return nil
		},
	})
	return cmd
}

func newJobsCommand(opts *Options, deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage background jobs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "stats [queue]",
		Short: "Show queue statistics (default: audit)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queue := jobs.QueueAudit
			if len(args) == 1 {
				queue = args[0]
			}
			j := deps.Jobs(opts)
			defer j.Close()
			stats, err := j.InspectQueue(queue)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if opts.Output == "json" {
				return printJSON(w, stats)
			}
			fmt.Fprintf(w, "queue=%s pending=%d active=%d scheduled=%d retry=%d failed=%d\n",
				stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Failed)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "trigger <task>",
		Short: "Enqueue a job now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j := deps.Jobs(opts)
			defer j.Close()
			info, err := j.Trigger(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s queue=%s\n", args[0], info.ID, info.Queue)
			return nil
		},
	})
	return cmd
}
