package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/catcommon"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/config"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/server"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/services"
	"github.com/practiceops/servicecatalog/internal/common/httpclient"
)

const remoteTimeout = 30 * time.Second

// catalogFlags select where a read command gets its data: the configured
// store directly, or a running server with --remote.
type catalogFlags struct {
	tenant string
	remote bool
	server string
	apiKey string
}

func (f *catalogFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.tenant, "tenant", "", "Tenant to read; defaults to the configured tenant")
	cmd.Flags().BoolVar(&f.remote, "remote", false, "Read from a running server instead of the database")
	cmd.Flags().StringVar(&f.server, "server", "", "Server URL for --remote; overrides the client config")
	cmd.Flags().StringVar(&f.apiKey, "api-key", "", "API key for --remote; overrides the client config")
}

// remoteSource is a catalog server reached over HTTP.
type remoteSource struct {
	client *httpclient.HTTPClient
	tenant string
}

func (f *catalogFlags) remoteSource() (*remoteSource, error) {
	cfg := &ClientConfig{}
	path, err := clientConfigPath()
	if err != nil {
		return nil, err
	}
	if loaded, err := LoadClientConfig(path); err == nil {
		cfg = loaded
	} else if f.server == "" || !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w; configure the client with \"catalogsrv config --server <host:port>\"", err)
	}
	if f.server != "" {
		cfg.ServerURL = MorphServer(f.server)
	}
	if f.apiKey != "" {
		cfg.APIKey = f.apiKey
	}
	if err := cfg.ValidateConfig(); err != nil {
		return nil, err
	}
	tenant := cfg.Tenant
	if f.tenant != "" {
		tenant = f.tenant
	}
	return &remoteSource{
		client: httpclient.NewClient(cfg, httpclient.ClientOptions{Timeout: remoteTimeout}),
		tenant: tenant,
	}, nil
}

func (r *remoteSource) headers() map[string]string {
	h := map[string]string{server.HeaderApiVersion: catcommon.ApiVersion}
	if r.tenant != "" {
		h[server.HeaderTenantID] = r.tenant
	}
	return h
}

func (r *remoteSource) export(ctx context.Context, opts services.ExportOptions) (string, error) {
	query := map[string]string{
		"format":          opts.Format,
		"includeInactive": strconv.FormatBool(opts.IncludeInactive),
	}
	body, err := r.client.Get(ctx, "/services/export", query, r.headers())
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (r *remoteSource) stats(ctx context.Context) (*services.Stats, error) {
	body, err := r.client.Get(ctx, "/services/stats", nil, r.headers())
	if err != nil {
		return nil, err
	}
	var st services.Stats
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, fmt.Errorf("unable to parse stats response: %w", err)
	}
	return &st, nil
}

// withLocalCatalog opens the configured store, runs fn against a catalog
// service without a read cache and closes the store.
func (f *catalogFlags) withLocalCatalog(ctx context.Context, fn func(context.Context, *services.CatalogService, catcommon.TenantId) error) error {
	if err := loadServerConfig(); err != nil {
		return err
	}
	cfg := config.Config()
	tenant := catcommon.TenantId(f.tenant)
	if tenant.IsNull() && cfg.SingleTenantMode {
		tenant = catcommon.TenantId(cfg.DefaultTenantID)
	}
	if tenant.IsNull() {
		return errors.New("a tenant is required; pass --tenant")
	}

	store, err := db.Open(ctx)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()
	return fn(ctx, services.New(services.Options{Store: store}), tenant)
}

func newExportCmd() *cobra.Command {
	var (
		flags           catalogFlags
		format          string
		includeInactive bool
		output          string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a tenant's services as CSV or JSON",
		Long: `Export the services of a tenant ordered by name. Only active services are
exported unless --include-inactive is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(format)
			if format != services.ExportCSV && format != services.ExportJSON {
				return fmt.Errorf("unsupported format %q; use csv or json", format)
			}
			opts := services.ExportOptions{Format: format, IncludeInactive: includeInactive}

			var out string
			if flags.remote {
				src, err := flags.remoteSource()
				if err != nil {
					return err
				}
				if out, err = src.export(cmd.Context(), opts); err != nil {
					return err
				}
			} else {
				err := flags.withLocalCatalog(cmd.Context(), func(ctx context.Context, svc *services.CatalogService, tenant catcommon.TenantId) error {
					var err error
					out, err = svc.Export(ctx, tenant, opts)
					return err
				})
				if err != nil {
					return err
				}
			}
			return writeOutput(output, out)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&format, "format", services.ExportCSV, "Output format: csv or json")
	cmd.Flags().BoolVar(&includeInactive, "include-inactive", false, "Include inactive and draft services")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	return cmd
}

// writeOutput writes body to path, or to stdout when path is empty.
func writeOutput(path, body string) error {
	if path == "" {
		fmt.Println(body)
		return nil
	}
	if !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("unable to write %s: %w", path, err)
	}
	if !jsonOutput {
		okLabel.Fprintf(os.Stderr, "Wrote %s\n", path)
	}
	return nil
}

func newStatsCmd() *cobra.Command {
	var flags catalogFlags
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show catalog statistics and booking analytics for a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			var st *services.Stats
			if flags.remote {
				src, err := flags.remoteSource()
				if err != nil {
					return err
				}
				if st, err = src.stats(cmd.Context()); err != nil {
					return err
				}
			} else {
				err := flags.withLocalCatalog(cmd.Context(), func(ctx context.Context, svc *services.CatalogService, tenant catcommon.TenantId) error {
					var err error
					st, err = svc.GetStats(ctx, tenant)
					return err
				})
				if err != nil {
					return err
				}
			}
			if jsonOutput {
				printJSON(st)
				return nil
			}
			printStats(st)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

var headingLabel = color.New(color.Bold)

func printStats(st *services.Stats) {
	headingLabel.Println("Services")
	fmt.Printf("  Total:          %d\n", st.Total)
	fmt.Printf("  Active:         %d\n", st.Active)
	fmt.Printf("  Featured:       %d\n", st.Featured)
	fmt.Printf("  Categories:     %d\n", st.CategoryCount)
	fmt.Printf("  Average price:  %.2f\n", st.AveragePrice)
	fmt.Printf("  Total revenue:  %.2f\n", st.TotalRevenue)

	headingLabel.Println("Monthly bookings")
	for _, m := range st.Analytics.MonthlyBookings {
		fmt.Printf("  %s  %5d  %10.2f\n", m.Month, m.Bookings, m.Revenue)
	}

	if len(st.Analytics.PopularServices) > 0 {
		headingLabel.Println("Popular services")
		for _, p := range st.Analytics.PopularServices {
			fmt.Printf("  %5d  %s\n", p.Bookings, p.Service)
		}
	}

	headingLabel.Println("Completion rate")
	for _, c := range st.Analytics.CompletionRates {
		fmt.Printf("  %s  %d/%d  %.2f%%\n", c.Month, c.Completed, c.Total, c.Rate)
	}
}

func init() {
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newStatsCmd())
}
