package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/shoplatch/latchbot/internal/extract"
	"github.com/shoplatch/latchbot/internal/models"
	"github.com/shoplatch/latchbot/internal/shutdown"
	"github.com/shoplatch/latchbot/internal/state"
	"github.com/shoplatch/latchbot/pkg/latchbot"
)

var (
	version = "1.0.0"

	// Global flags
	configFile string
	verbose    bool
	debug      bool

	// Browser flags
	headless   bool
	controlURL string

	// Scrape flags
	advanced   bool
	maxPages   int
	siteURL    string
	outputFile string
	format     string
	imagesFile string

	// State flags
	stateFile string

	// Pacing flags
	navRate float64
	settle  int

	// Latch flags
	portalURL        string
	failureThreshold int
	skuPrefix        string
	autoSubmit       bool
	clearSession     bool

	// Serve flags
	listenAddr string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "latchbot",
		Short: "LatchBot - Marketplace listing automation",
		Long: `LatchBot - Scrape marketplace search results and replay the products
as listings through the seller portal.

Scraping walks paginated search results in a real browser and stores
product records. Latching searches each stored product on the seller
portal, fills the listing form, and records the per-item outcome.
Interrupted latching runs resume from where they stopped.`,
		Version: version,
	}

	// Scrape command
	scrapeCmd := &cobra.Command{
		Use:   "scrape [search-url]",
		Short: "Scrape products from search results",
		Long:  "Scrape product listings from a paginated search results page.",
		Args:  cobra.ExactArgs(1),
		RunE:  runScrape,
	}

	// Product command
	productCmd := &cobra.Command{
		Use:   "product [product-url]",
		Short: "Scrape a single product page",
		Long:  "Scrape the full detail record of a single product page.",
		Args:  cobra.ExactArgs(1),
		RunE:  runProduct,
	}

	// Latch command
	latchCmd := &cobra.Command{
		Use:   "latch [portal-url]",
		Short: "Replay scraped products into the seller portal",
		Long: `Replay the stored products into the seller portal. An unfinished
previous run resumes from its cursor unless --clear is given.`,
		Args: cobra.ExactArgs(1),
		RunE: runLatch,
	}

	// Resume command
	resumeCmd := &cobra.Command{
		Use:   "resume [portal-url]",
		Short: "Resume an interrupted latching run",
		Long:  "Resume a previously interrupted latching run from its saved cursor.",
		Args:  cobra.ExactArgs(1),
		RunE:  runResume,
	}

	// Serve command
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the WebSocket control server",
		Long:  "Run the WebSocket control server and wait for commands from a client.",
		RunE:  runServe,
	}

	// Status command
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show stored products and session state",
		RunE:  runStatus,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Debug mode")
	rootCmd.PersistentFlags().StringVar(&stateFile, "state-file", "latchbot.db", "State database file")
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", true, "Run the browser headless")
	rootCmd.PersistentFlags().StringVar(&controlURL, "browser-url", "", "Attach to a running browser (DevTools URL)")

	// Scrape flags
	scrapeCmd.Flags().BoolVarP(&advanced, "advanced", "a", false, "Advanced extraction with image and price fields")
	scrapeCmd.Flags().IntVarP(&maxPages, "max-pages", "m", 0, "Maximum result pages (0 = no cap)")
	scrapeCmd.Flags().StringVar(&siteURL, "site", "", "Storefront base URL (default: derived from the search URL)")
	scrapeCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	scrapeCmd.Flags().StringVarP(&format, "format", "f", "json", "Output format (json, csv)")
	scrapeCmd.Flags().Float64VarP(&navRate, "rate", "r", 1, "Navigations per second")
	scrapeCmd.Flags().IntVar(&settle, "settle", 3, "Seconds to wait after each pagination")

	// Product flags
	productCmd.Flags().StringVar(&siteURL, "site", "", "Storefront base URL (default: derived from the product URL)")
	productCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	productCmd.Flags().StringVarP(&format, "format", "f", "json", "Output format (json, csv)")
	productCmd.Flags().StringVar(&imagesFile, "images", "", "Write an image download manifest (JSON) to this file")

	// Latch flags
	for _, cmd := range []*cobra.Command{latchCmd, resumeCmd} {
		cmd.Flags().IntVar(&failureThreshold, "failure-threshold", 5, "Halt after this many consecutive errors (0 = never)")
		cmd.Flags().StringVar(&skuPrefix, "sku-prefix", "", "Prefix for generated SKU identifiers")
		cmd.Flags().BoolVar(&autoSubmit, "auto-submit", false, "Submit each listing form after filling it")
		cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Results output file (default: stdout)")
		cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format (json, csv)")
	}
	latchCmd.Flags().BoolVar(&clearSession, "clear", false, "Discard any previous session and start fresh")

	// Serve flags
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", "127.0.0.1:8844", "Control server listen address")
	serveCmd.Flags().StringVar(&siteURL, "site", "", "Storefront base URL")
	serveCmd.Flags().StringVar(&portalURL, "portal", "", "Seller portal search page URL")

	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(productCmd)
	rootCmd.AddCommand(latchCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// baseOptions builds the option set shared by every command.
func baseOptions() []latchbot.Option {
	opts := []latchbot.Option{}
	if configFile != "" {
		opts = append(opts, latchbot.WithConfigFile(configFile))
	}
	opts = append(opts,
		latchbot.WithStateFile(stateFile),
		latchbot.WithHeadless(headless),
		latchbot.WithVerbose(verbose),
		latchbot.WithDebug(debug),
	)
	if controlURL != "" {
		opts = append(opts, latchbot.WithControlURL(controlURL))
	}
	return opts
}

func runScrape(cmd *cobra.Command, args []string) error {
	searchURL := args[0]

	site := siteURL
	if site == "" {
		site = baseOf(searchURL)
	}

	opts := append(baseOptions(),
		latchbot.WithSiteURL(site),
		latchbot.WithSearchURL(searchURL),
		latchbot.WithMaxPages(maxPages),
		latchbot.WithOutput(format, true),
		latchbot.WithPacing(navRate, time.Duration(settle)*time.Second, 500*time.Millisecond),
	)

	bot, err := latchbot.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	handler := installShutdown(bot)
	defer handler.Shutdown()

	printBanner("Scrape", searchURL)

	start := time.Now()
	if advanced {
		err = bot.StartAdvancedScraping(maxPages)
	} else {
		err = bot.StartSearchScraping()
	}
	if err != nil {
		return fmt.Errorf("scrape failed to start: %w", err)
	}

	watchScrapeEvents(bot)
	bot.Wait()

	if err := writeOutput(bot.ExportProducts); err != nil {
		return err
	}
	printScrapeSummary(bot, time.Since(start))
	return nil
}

func runProduct(cmd *cobra.Command, args []string) error {
	productURL := args[0]

	site := siteURL
	if site == "" {
		site = baseOf(productURL)
	}

	opts := append(baseOptions(),
		latchbot.WithSiteURL(site),
		latchbot.WithOutput(format, true),
	)

	bot, err := latchbot.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	handler := installShutdown(bot)
	defer handler.Shutdown()

	detail, err := bot.ScrapeProduct(handler.Context(), productURL)
	if err != nil {
		return fmt.Errorf("product scrape failed: %w", err)
	}

	if imagesFile != "" {
		if err := writeImageManifest(imagesFile, detail); err != nil {
			return err
		}
	}

	return writeOutput(func(w io.Writer) error {
		return bot.ExportDetail(w, detail)
	})
}

// writeImageManifest emits the product's high-res image list with
// generated download filenames.
func writeImageManifest(path string, detail *models.ProductDetail) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image manifest: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(extract.ImageManifest(detail.Title, detail.Images))
}

func runLatch(cmd *cobra.Command, args []string) error {
	return latchRun(args[0], clearSession)
}

func runResume(cmd *cobra.Command, args []string) error {
	return latchRun(args[0], false)
}

func latchRun(portal string, clear bool) error {
	settings := models.DefaultFormSettings()
	settings.SKUPrefix = skuPrefix
	settings.AutoSubmit = autoSubmit

	opts := append(baseOptions(),
		latchbot.WithSiteURL(baseOf(portal)),
		latchbot.WithPortalURL(portal),
		latchbot.WithFormSettings(settings),
		latchbot.WithFailureThreshold(failureThreshold),
	)

	bot, err := latchbot.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	handler := installShutdown(bot)
	defer handler.Shutdown()

	if clear {
		if err := bot.ClearSession(); err != nil {
			return fmt.Errorf("failed to clear session: %w", err)
		}
	}

	printBanner("Latch", portal)

	start := time.Now()
	if err := bot.StartLatching(); err != nil {
		return fmt.Errorf("latching failed to start: %w", err)
	}

	watchLatchEvents(bot)
	bot.Wait()

	if err := writeOutput(bot.ExportResults); err != nil {
		return err
	}
	printLatchSummary(bot, time.Since(start))
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	opts := append(baseOptions(),
		latchbot.WithControlServer(listenAddr),
	)
	if siteURL != "" {
		opts = append(opts, latchbot.WithSiteURL(siteURL))
	}
	if portalURL != "" {
		opts = append(opts, latchbot.WithPortalURL(portalURL))
	}

	bot, err := latchbot.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	handler := installShutdown(bot)
	defer handler.Shutdown()

	fmt.Printf("Control server listening on ws://%s/ws\n", listenAddr)
	fmt.Println("Press Ctrl+C to stop")

	return bot.ServeControl(handler.Context())
}

func runStatus(cmd *cobra.Command, args []string) error {
	store, err := state.NewBoltStore(stateFile)
	if err != nil {
		return fmt.Errorf("failed to open state: %w", err)
	}
	mgr := state.NewManager(store)
	defer mgr.Close()

	products, err := mgr.LoadProducts()
	if err != nil {
		return err
	}
	fmt.Printf("State file:       %s\n", stateFile)
	fmt.Printf("Stored products:  %d\n", len(products))

	detail, err := mgr.LoadDetail()
	if err != nil {
		return err
	}
	if detail != nil {
		fmt.Printf("Scraped detail:   %s (%s)\n", detail.Title, detail.Price)
	}

	session, err := mgr.LoadSession()
	if err != nil {
		return err
	}
	if session == nil {
		fmt.Println("Latching session: none")
		return nil
	}

	fmt.Printf("Latching session: %d/%d items", session.Cursor, len(session.Items))
	if session.Done() {
		fmt.Print(" (finished)")
	} else if session.Active {
		fmt.Print(" (active)")
	} else {
		fmt.Print(" (resumable)")
	}
	fmt.Println()

	results, err := mgr.Results()
	if err != nil {
		return err
	}
	counts := map[models.ReplayStatus]int{}
	for _, r := range results {
		counts[r.Status]++
	}
	for _, status := range []models.ReplayStatus{
		models.StatusListed,
		models.StatusAlreadySelling,
		models.StatusNeedsApproval,
		models.StatusSkipped,
		models.StatusError,
	} {
		if counts[status] > 0 {
			fmt.Printf("  %-16s %d\n", status, counts[status])
		}
	}
	return nil
}

// installShutdown wires Ctrl+C to a graceful stop: the active run halts
// after the current step, the session stays resumable, and the browser
// and state store are released.
func installShutdown(bot *latchbot.Bot) *shutdown.Handler {
	handler := shutdown.New(shutdown.Config{Timeout: 20 * time.Second})
	handler.Register("bot", func(ctx context.Context) error {
		return bot.Close()
	})
	return handler
}

func watchScrapeEvents(bot *latchbot.Bot) {
	go func() {
		for ev := range bot.Events() {
			switch ev.Type {
			case latchbot.EventUpdateCount, latchbot.EventAdvancedUpdate:
				fmt.Printf("  page %d: %d products\n", ev.Page, ev.Count)
			case latchbot.EventSearchFinished, latchbot.EventAdvancedFinished:
				return
			}
		}
	}()
}

func watchLatchEvents(bot *latchbot.Bot) {
	go func() {
		for ev := range bot.Events() {
			switch ev.Type {
			case latchbot.EventLatchProgress:
				fmt.Printf("  [%d/%d] %s: %s\n", ev.Index+1, ev.Total, ev.Status, ev.Message)
			case latchbot.EventLatchFinished:
				return
			}
		}
	}()
}

// writeOutput runs the export against the output file, or stdout when
// none was given.
func writeOutput(export func(io.Writer) error) error {
	if outputFile == "" {
		return export(os.Stdout)
	}

	f, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	if err := export(f); err != nil {
		return err
	}
	fmt.Printf("Output written to %s\n", outputFile)
	return nil
}

// baseOf reduces a URL to its scheme and host.
func baseOf(rawURL string) string {
	for i := 0; i < len(rawURL); i++ {
		if rawURL[i] == '/' && i >= 2 && rawURL[i-1] == '/' {
			for j := i + 1; j < len(rawURL); j++ {
				if rawURL[j] == '/' || rawURL[j] == '?' || rawURL[j] == '#' {
					return rawURL[:j]
				}
			}
			return rawURL
		}
	}
	return rawURL
}

func printBanner(mode, target string) {
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                        LatchBot v1.0                         ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("Mode:   %s\n", mode)
	fmt.Printf("Target: %s\n", target)
	fmt.Println()
}

func printScrapeSummary(bot *latchbot.Bot, duration time.Duration) {
	snap := bot.Metrics()
	fmt.Println()
	fmt.Printf("Duration:        %v\n", duration.Round(time.Second))
	fmt.Printf("Pages Visited:   %d\n", snap.PagesVisited)
	fmt.Printf("Products Found:  %d\n", snap.ProductsFound)
	fmt.Printf("Duplicates:      %d\n", snap.Duplicates)
	fmt.Printf("Errors:          %d\n", snap.ErrorsTotal)
	fmt.Println()
}

func printLatchSummary(bot *latchbot.Bot, duration time.Duration) {
	snap := bot.Metrics()
	fmt.Println()
	fmt.Printf("Duration:        %v\n", duration.Round(time.Second))
	fmt.Printf("Items Processed: %d\n", snap.ItemsProcessed)
	fmt.Printf("Items Listed:    %d\n", snap.ItemsListed)
	fmt.Printf("Items Skipped:   %d\n", snap.ItemsSkipped)
	fmt.Printf("Errors:          %d\n", snap.ErrorsTotal)
	fmt.Println()
}
