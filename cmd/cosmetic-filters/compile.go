package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"time"

	"github.com/bnema/cosmetic-filters/internal/compiler"
	"github.com/bnema/cosmetic-filters/internal/fetcher"
	"github.com/bnema/cosmetic-filters/internal/models"
	"github.com/bnema/cosmetic-filters/internal/parser"
	"github.com/bnema/cosmetic-filters/internal/resolver"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Fetch filter lists and compile the cosmetic rule table",
	RunE:  runCompile,
}

func init() {
	compileCmd.Flags().StringP("output", "o", "", "rule table path, .json or .yaml (default: output.path)")
	compileCmd.Flags().String("top-domains", "", "rank,domain CSV restricting the table to top domains (lite)")
	compileCmd.Flags().Int("top-count", 0, "number of top domains to read (default: output.top_count)")
	compileCmd.Flags().Bool("dry-run", false, "fetch and compile without writing files")
}

// ListResult contains compile results for a single list
type ListResult struct {
	Name         string `json:"name"`
	URL          string `json:"source_url"`
	FilterCount  int    `json:"filter_count"`
	SkippedCount int    `json:"skipped_count"`
	Error        string `json:"error,omitempty"`
}

// Manifest contains metadata about the compiled table
type Manifest struct {
	Version     string                `json:"version"`
	GeneratedAt string                `json:"generated_at"`
	Lite        bool                  `json:"lite"`
	Statistics  string                `json:"statistics"`
	Table       string                `json:"table"`
	Lists       map[string]ListResult `json:"lists"`
}

func runCompile(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	topPath, _ := cmd.Flags().GetString("top-domains")
	topCount, _ := cmd.Flags().GetInt("top-count")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	if output == "" {
		output = cfg.Output.Path
	}
	if topPath == "" {
		topPath = cfg.Output.TopDomains
	}
	if topCount == 0 {
		topCount = cfg.Output.TopCount
	}

	enabledLists := cfg.EnabledLists()
	if len(enabledLists) == 0 {
		return errors.New("no enabled filter lists found in config")
	}

	version := cfg.Engine.Version
	if version == "" {
		version = time.Now().Format("2006.01.02")
	}
	opts := []compiler.Option{compiler.WithVersion(version)}
	if topPath != "" {
		td, err := compiler.LoadTopDomains(appFs, topPath, topCount)
		if err != nil {
			return err
		}
		fmt.Printf("Read %d top domains\n", td.Len())
		opts = append(opts, compiler.WithTopDomains(td))
	}

	fmt.Printf("Fetching %d filter lists...\n", len(enabledLists))
	if dryRun {
		fmt.Println("[DRY RUN] No files will be written")
	}

	f := fetcher.New(cfg.HTTP)
	results := make(map[string]ListResult)
	totalSkips := make(map[string]int)
	var filters []models.Filter

	for _, res := range f.FetchAll(cmd.Context(), enabledLists) {
		list := res.List
		fmt.Printf("\n  Processing %s...\n", list.Name)
		result := ListResult{Name: list.Name, URL: list.URL}

		if res.Err != nil {
			fmt.Printf("    ERROR: %v\n", res.Err)
			result.Error = res.Err.Error()
			results[list.Name] = result
			continue
		}
		fmt.Printf("    Downloaded: %d bytes\n", len(res.Data))

		// Fresh parser per list for accurate stats
		p := parser.New()
		parsed, err := p.Parse(bytes.NewReader(res.Data))
		if err != nil {
			fmt.Printf("    ERROR parsing: %v\n", err)
			result.Error = err.Error()
			results[list.Name] = result
			continue
		}
		stats := p.Stats()
		fmt.Printf("    Parsed: %d cosmetic filters (skipped: %d)\n", len(parsed), stats.Unsupported)
		log.Debugf("%s: %d total, %d hide, %d exceptions, %d injections",
			list.Name, stats.Total, stats.Cosmetic, stats.Exception, stats.Injection)
		for reason, count := range stats.SkipReasons {
			totalSkips[reason] += count
		}

		result.FilterCount = len(parsed)
		result.SkippedCount = stats.Unsupported
		results[list.Name] = result
		filters = append(filters, parsed...)
	}

	if len(totalSkips) > 0 {
		fmt.Printf("\nSkipped filters summary:\n")
		for _, reason := range slices.Sorted(maps.Keys(totalSkips)) {
			fmt.Printf("  %s: %d\n", reason, totalSkips[reason])
		}
	}
	if len(filters) == 0 {
		return errors.New("no cosmetic filters found in any list")
	}

	c := compiler.New(opts...)
	table := c.Compile(compiler.Combine(filters))
	cStats := c.Stats()
	fmt.Printf("\nCombined %d filters into %d domain groups (%d kept)\n", len(filters), cStats.Groups, cStats.Kept)
	fmt.Printf("  %s\n", table.Statistics)
	fmt.Printf("  Deduplicated strings: %d\n", cStats.Deduplicated)

	if !dryRun {
		if err := resolver.SaveFile(appFs, output, table); err != nil {
			return err
		}
		manifest := Manifest{
			Version:     table.Version,
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
			Lite:        table.Lite,
			Statistics:  table.Statistics,
			Table:       filepath.Base(output),
			Lists:       results,
		}
		if err := writeJSON(appFs, filepath.Join(filepath.Dir(output), "manifest.json"), manifest); err != nil {
			fmt.Printf("  ERROR writing manifest: %v\n", err)
		}
		fmt.Printf("\nWrote %s\n", output)
	}

	fmt.Println("\nDone!")
	return nil
}

func writeJSON(fs afero.Fs, path string, data any) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := fs.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
