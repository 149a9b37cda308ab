package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"poscraper/pkg/auth"
	"poscraper/pkg/browser"
	"poscraper/pkg/config"
	"poscraper/pkg/extract"
	"poscraper/pkg/logger"
	"poscraper/pkg/metrics"
	"poscraper/pkg/scraper"
	"poscraper/pkg/storage"
	"poscraper/pkg/ui"
)

var (
	// Scrape command flags
	docTypes     []string
	startID      int
	endID        int
	outputDir    string
	outputFormat string
	accountName  string
	origin       string
	remoteURL    string
	headful      bool
	recycleEvery int
	metricsAddr  string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Export a range of documents",
	Long: `Log in once, then visit every document ID from --start to --end (inclusive)
for each selected type and write the extracted rows to the output directory.

Credentials are taken from, in order:
  - the stored account named by --account
  - site.username / site.password in the config file or POSCRAPER_USERNAME /
    POSCRAPER_PASSWORD (CPS_USERNAME / CPS_PASSWORD are also accepted)
  - the most recently stored account ('poscraper auth login')

Interrupting the run (Ctrl+C) finishes the current document, then writes what
was collected so far.`,
	Example: `  # Export purchase-order receipts 100 to 200
  poscraper scrape --type po_receive --start 100 --end 200

  # Two types over the same range as JSON lines
  poscraper scrape -t po -t tl --start 1 --end 500 --format json

  # Watch the browser and expose Prometheus metrics
  poscraper scrape -t inventory --start 40 --end 60 --headful --metrics-addr :9090`,
	Args: cobra.NoArgs,
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringSliceVarP(&docTypes, "type", "t", nil, "document type to export (repeatable; see 'poscraper types')")
	scrapeCmd.Flags().IntVar(&startID, "start", 0, "first document ID")
	scrapeCmd.Flags().IntVar(&endID, "end", 0, "last document ID (inclusive)")
	scrapeCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default ./downloads)")
	scrapeCmd.Flags().StringVar(&outputFormat, "format", "", "output format: csv or json")
	scrapeCmd.Flags().StringVarP(&accountName, "account", "a", "", "use a specific stored account")
	scrapeCmd.Flags().StringVar(&origin, "origin", "", "site origin, e.g. https://maa-m.onlinepo.com")
	scrapeCmd.Flags().StringVar(&remoteURL, "remote", "", "DevTools WebSocket URL of a running Chrome")
	scrapeCmd.Flags().BoolVar(&headful, "headful", false, "show the browser window")
	scrapeCmd.Flags().IntVar(&recycleEvery, "recycle-every", 0, "documents per browser surface before it is replaced (default 50)")
	scrapeCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
}

func scrapeFlags(cmd *cobra.Command) map[string]interface{} {
	flags := globalFlags()
	if len(docTypes) > 0 {
		flags["types"] = docTypes
	}
	if cmd.Flags().Changed("start") {
		flags["start"] = startID
	}
	if cmd.Flags().Changed("end") {
		flags["end"] = endID
	}
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if outputFormat != "" {
		flags["format"] = outputFormat
	}
	if origin != "" {
		flags["origin"] = origin
	}
	if remoteURL != "" {
		flags["remote"] = remoteURL
	}
	if headful {
		flags["headful"] = true
	}
	if recycleEvery > 0 {
		flags["recycle-every"] = recycleEvery
	}
	if metricsAddr != "" {
		flags["metrics-addr"] = metricsAddr
	}
	return flags
}

func runScrape(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, scrapeFlags(cmd))
	if err != nil {
		return err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("poscraper starting")

	types, err := resolveTypes(cfg.Scrape.Types)
	if err != nil {
		return err
	}
	start, end, ok := cfg.Scrape.Range()
	if !ok {
		return errors.New("--start and --end are required")
	}

	creds, source, err := resolveCredentials(cfg)
	if err != nil {
		return err
	}

	ui.PrintBanner()
	if creds.Username == "" {
		ui.PrintWarning("No credentials configured; relying on an existing browser session")
	} else {
		ui.PrintInfo("Account", creds.Username+" ("+source+")")
	}
	ui.PrintInfo("Origin", cfg.Site.Origin)
	ui.PrintInfo("Range", fmt.Sprintf("%d..%d", start, end))
	ui.PrintInfo("Recycle every", strconv.Itoa(cfg.Scrape.RecycleEvery))

	store, err := storage.NewManager(cfg.Output.BaseDirectory, cfg.Output.Format, cfg.Output.Timestamped)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bm := browser.NewManager(browser.ConfigFrom(&cfg.Browser, log))
	logger.LogComponentStart("browser", map[string]interface{}{
		"headless": cfg.Browser.Headless,
		"remote":   cfg.Browser.RemoteURL != "",
	})
	if err := bm.Start(ctx); err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() {
		if err := bm.Close(); err != nil {
			log.WithError(err).Warn("Failed to close browser")
		}
		logger.LogComponentStop("browser", "run finished")
	}()

	s := scraper.New(bm, scraper.OptionsFromConfig(cfg), log)

	tracker := ui.NewStatusTracker()
	tracker.Verbose = verbose
	s.SetObserver(tracker)

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		s.SetMetrics(metrics.NewRecorder(reg))

		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, reg, log); err != nil {
				log.WithError(err).Error("Metrics endpoint stopped")
			}
		}()
	}

	ui.PrintHighlight("[LOGGING IN]")
	datasets, runErr := s.Run(ctx, creds, types, start, end)

	for _, ds := range datasets {
		path, err := store.SaveDataset(ds)
		if err != nil {
			log.WithError(err).WithField("doc_type", ds.Type).Error("Failed to write dataset")
			ui.PrintError("Failed to write "+ds.Type, err)
			continue
		}
		summary := ds.Summary()
		log.WithFields(map[string]interface{}{
			"doc_type": ds.Type,
			"path":     path,
			"records":  summary.Records,
		}).Info("Dataset written")
		ui.PrintInfo(ds.Type, path)

		if failed := (&scraper.Result{Outcomes: ds.Outcomes}).FailedIDs(); len(failed) > 0 {
			ui.PrintWarning(fmt.Sprintf("%d documents failed", len(failed)), failed)
		}
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			ui.PrintWarning("Interrupted; partial results were written")
			return runErr
		}
		log.WithError(runErr).Error("Scrape failed")
		return runErr
	}

	ui.PrintSuccess("[EXPORT COMPLETED]")
	return nil
}

func resolveTypes(names []string) ([]*extract.DocType, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("at least one --type is required (one of %v)", extract.Names())
	}

	types := make([]*extract.DocType, 0, len(names))
	seen := make(map[string]bool)
	for _, name := range names {
		dt, err := extract.Lookup(name)
		if err != nil {
			return nil, err
		}
		if seen[dt.Name] {
			continue
		}
		seen[dt.Name] = true
		types = append(types, dt)
	}
	return types, nil
}

// resolveCredentials returns the login for the run and where it came from
func resolveCredentials(cfg *config.Config) (scraper.Credentials, string, error) {
	if accountName == "" && cfg.Site.Username != "" && cfg.Site.Password != "" {
		return scraper.Credentials{Username: cfg.Site.Username, Password: cfg.Site.Password}, "config", nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		return scraper.Credentials{}, "", fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	account, err := manager.Resolve(accountName)
	if err != nil {
		if accountName != "" {
			return scraper.Credentials{}, "", fmt.Errorf("account %q not found; see 'poscraper auth list'", accountName)
		}
		if errors.Is(err, auth.ErrCredentialsNotFound) {
			return scraper.Credentials{}, "", nil
		}
		return scraper.Credentials{}, "", err
	}
	return scraper.Credentials{Username: account.Username, Password: account.Password}, "stored account", nil
}
