package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	settingsFile string
	headlessMode bool
	debugMode    bool
	batchLimit   int
)

var rootCmd = &cobra.Command{
	Use:   "weitoutiao-auto [settings-file]",
	Short: "Polls a news API and republishes new items as micro-posts",
	Long: `A long-running publisher that polls an upstream news API and pushes each
new item through the weitoutiao composer, reusing a persisted cookie session
to skip interactive login.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; absence is not an error.
		_ = godotenv.Load()

		if len(args) > 0 {
			settingsFile = args[0]
		} else {
			settingsFile = getConfigPath("settings.yaml")
		}

		if debugMode {
			SetDebugMode(true)
		}

		if err := ensureConfigExists(); err != nil {
			return fmt.Errorf("ensuring config exists: %w", err)
		}

		settings, err := loadSettings(settingsFile)
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}
		applyEnvOverrides(settings)

		if cmd.Flags().Changed("headless") {
			settings.Browser.Headless = headlessMode
		}
		if cmd.Flags().Changed("limit") {
			settings.Feed.Limit = batchLimit
		}

		return run(settings)
	},
}

func run(settings *Settings) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stepTimeout := float64(settings.StepTimeout().Milliseconds())

	browser, err := NewBrowser(BrowserOptions{
		Headless:     settings.Browser.Headless,
		WindowWidth:  settings.Browser.WindowWidth,
		WindowHeight: settings.Browser.WindowHeight,
		StepTimeout:  stepTimeout,
	})
	if err != nil {
		return fmt.Errorf("starting browser: %w", err)
	}
	defer browser.Close()

	store := NewSessionStore(settings.State.CookieFile)
	surface := NewBrowserSurface(browser, settings.Publish.Origin, settings.Publish.LoginMarker, stepTimeout)
	broker := NewSessionBroker(store, surface, settings.Publish.LoginMarker)

	feed := NewFeedClient(settings.Feed.APIURL, settings.Feed.Params, settings.Feed.Language)
	ledger := NewLedger(settings.State.MarkerFile)
	publisher := NewPublisher(browser, PublishConfig{
		ComposeURL:      settings.Publish.ComposeURL,
		ListURL:         settings.Publish.ListURL,
		EditorSelector:  settings.Publish.EditorSelector,
		SubmitSelector:  settings.Publish.SubmitSelector,
		OverlaySelector: settings.Publish.OverlaySelector,
		Language:        settings.Feed.Language,
		Tags:            settings.Publish.Tags,
		StepTimeout:     stepTimeout,
	})

	runner := NewRunner(feed, publisher, ledger, broker, settings.Feed.Limit, settings.PollInterval())

	if err := runner.Run(ctx); err != nil {
		log.Printf("[fatal] %v", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.Flags().BoolVar(&headlessMode, "headless", false, "Run the browser without a visible window (interactive login needs a window)")
	rootCmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.Flags().IntVar(&batchLimit, "limit", 10, "Maximum items fetched per polling cycle")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
