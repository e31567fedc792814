package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"docmirror/internal/config"
	"docmirror/internal/detect"
	"docmirror/internal/generate"
	"docmirror/internal/state"
	"docmirror/pkg/types"
)

var version = "0.1.0"

func main() {
	var (
		sourcesDir string
		logLevel   string
		logJSON    bool
	)

	rootCmd := &cobra.Command{
		Use:   "docmirror",
		Short: "Documentation site mirroring and change detection",
		Long: `Docmirror crawls configured documentation sites into local markdown
mirrors and detects drift on both sides: local edits to the mirrored
files, and upstream changes to the site itself.

Each source lives under the sources directory as <name>/config.yaml,
with its markdown tree in <name>/output/ and its crawl state in
<name>/` + state.FileName + `.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&sourcesDir, "sources-dir", "sources", "Directory holding per-source configurations")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit structured JSON logs")

	env := &cliEnv{sourcesDir: &sourcesDir, logLevel: &logLevel, logJSON: &logJSON}

	rootCmd.AddCommand(crawlCmd(env))
	rootCmd.AddCommand(checkCmd(env))
	rootCmd.AddCommand(checkRemoteCmd(env))
	rootCmd.AddCommand(listCmd(env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func crawlCmd(env *cliEnv) *cobra.Command {
	var (
		discoverOnly  bool
		skipDiscovery bool
		maxConcurrent int
	)

	cmd := &cobra.Command{
		Use:   "crawl <source>",
		Short: "Crawl a source and regenerate its markdown mirror",
		Long: `Crawl a configured source: discover in-scope URLs, fetch every page,
write the markdown mirror plus index, and persist the crawl state.

Examples:
  docmirror crawl golang-docs
  docmirror crawl golang-docs --discover-only
  docmirror crawl golang-docs --skip-discovery --max-concurrent 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := env.open(args[0], maxConcurrent)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if discoverOnly {
				result, err := app.discoverer.Run(ctx)
				if err != nil {
					return err
				}
				for _, u := range result.URLs {
					fmt.Println(u)
				}
				if len(result.Errors) > 0 {
					fmt.Fprintf(os.Stderr, "%d discovery fetches failed\n", len(result.Errors))
				}
				return nil
			}

			var urls []string
			if skipDiscovery {
				urls = app.stateURLs()
				if len(urls) == 0 {
					return fmt.Errorf("no previous crawl state for %q; run without --skip-discovery first", app.name)
				}
				app.logger.Info("skipping discovery", "source", app.name, "pages", len(urls))
			} else {
				result, err := app.discoverer.Run(ctx)
				if err != nil {
					return err
				}
				urls = result.URLs
				app.logger.Info("discovery complete",
					"source", app.name, "urls", len(urls), "errors", len(result.Errors))
			}

			results := app.scheduler.Run(ctx, urls)
			summary := types.Summarize(results)

			written, entries, err := generate.Files(results, app.state, app.genOptions())
			if err != nil {
				return fmt.Errorf("generate markdown: %w", err)
			}
			if written > 0 {
				if err := generate.Index(app.outputDir, entries, generate.IndexOptions{
					Title:       app.src.Output.IndexTitle,
					Description: app.src.Output.IndexDescription,
				}); err != nil {
					return err
				}
			}

			if err := app.state.Save(app.statePath); err != nil {
				return fmt.Errorf("persist state: %w", err)
			}

			fmt.Printf("%s: %s (%d crawled, %d failed, %d files written)\n",
				app.name, summary.Verdict, summary.Crawled, summary.Failed, written)
			for _, r := range results {
				if !r.OK() {
					fmt.Printf("  failed: %s (%s)\n", r.URL, r.Reason)
				}
			}
			if summary.Verdict == types.VerdictFailure {
				return fmt.Errorf("crawl failed: no page could be fetched")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&discoverOnly, "discover-only", false, "Print discovered URLs without crawling")
	cmd.Flags().BoolVar(&skipDiscovery, "skip-discovery", false, "Re-crawl only pages already in the state")
	cmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 0, "Override the source's fetch concurrency")

	return cmd
}

func checkCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "check <source>",
		Short: "Compare the local markdown mirror against the crawl state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := env.open(args[0], 0)
			if err != nil {
				return err
			}
			diff, err := detect.Local(app.state, app.outputDir)
			if err != nil {
				return err
			}
			printDiff(app.name, diff)
			return nil
		},
	}
}

func checkRemoteCmd(env *cliEnv) *cobra.Command {
	var maxConcurrent int

	cmd := &cobra.Command{
		Use:   "check-remote <source>",
		Short: "Compare the upstream site against the crawl state",
		Long: `Re-discover and re-fetch the source without touching the local mirror
or the crawl state, and report which pages changed, appeared, or
disappeared upstream. Pages whose stored ETag or Last-Modified still
matches are verified with a HEAD request instead of a full fetch.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := env.open(args[0], maxConcurrent)
			if err != nil {
				return err
			}
			// Link rewriting targets the discovered set, so the hash function
			// needs it before any page is hashed.
			var crawled map[string]string
			diff, err := detect.Remote(cmd.Context(), app.state, detect.RemoteOptions{
				Discover: func(ctx context.Context) ([]string, error) {
					result, err := app.discoverer.Run(ctx)
					if err != nil {
						return nil, err
					}
					crawled = generate.CrawledPaths(result.URLs)
					return result.URLs, nil
				},
				Crawl: app.scheduler.Run,
				Head:  app.httpFetcher.Head,
				HashFor: func(r types.PageResult) string {
					return generate.DocumentHash(r, app.genOptions(), crawled)
				},
			})
			if err != nil {
				return err
			}
			printDiff(app.name, diff)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 0, "Override the source's fetch concurrency")

	return cmd
}

func listCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			infos, err := config.ListSources(*env.sourcesDir)
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				fmt.Printf("No sources configured under %s/\n", *env.sourcesDir)
				return nil
			}
			for _, info := range infos {
				title := info.Title
				if title == "" {
					title = info.Name
				}
				statePath := filepath.Join(*env.sourcesDir, info.Name, state.FileName)
				status := "never crawled"
				if st, err := state.Load(statePath); err == nil && st.Len() > 0 {
					status = fmt.Sprintf("%d pages, last run %s",
						st.Len(), st.LastRun.Format("2006-01-02 15:04"))
				}
				fmt.Printf("%-20s %-40s %s\n", info.Name, title+" ("+info.BaseURL+")", status)
			}
			return nil
		},
	}
}

// printDiff renders a change report sorted by path, changed entries first
// grouped by kind, with an aggregate count line at the end.
func printDiff(source string, diff types.Diff) {
	paths := make([]string, 0, len(diff))
	for p := range diff {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		c := diff[p]
		if c.Kind == types.ChangeUnchanged {
			continue
		}
		fmt.Printf("%-14s %s (%s)\n", c.Kind, p, c.Reason)
	}

	counts := diff.Counts()
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	fmt.Printf("%s: %d pages checked", source, len(diff))
	for _, k := range kinds {
		fmt.Printf(", %d %s", counts[types.ChangeKind(k)], k)
	}
	fmt.Println()
	if !diff.Dirty() {
		fmt.Println("No changes detected.")
	}
}

// stateURLs returns the URLs recorded in the crawl state, sorted.
func (a *app) stateURLs() []string {
	urls := make([]string, 0, a.state.Len())
	for _, rec := range a.state.Pages {
		if rec.URL != "" {
			urls = append(urls, rec.URL)
		}
	}
	sort.Strings(urls)
	return urls
}
