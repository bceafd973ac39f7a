package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <path|glob>...",
	Short: "Upload and index local PDF or CSV files",
	Long: `Upload each matching file to the document store under a new file id, then
extract, chunk, embed and index it.

Examples:
  ragledger ingest statement.pdf
  ragledger ingest "exports/**/*.csv" statements/*.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

type ingestSummary struct {
	Path   string
	FileID string
	Chunks int
	Err    error
}

// expandPaths resolves literal paths and doublestar globs to a sorted, unique file list.
func expandPaths(args []string) ([]string, error) {
	seen := map[string]bool{}
	var files []string
	for _, arg := range args {
		if info, err := os.Stat(arg); err == nil {
			if info.IsDir() {
				return nil, fmt.Errorf("path is a directory: %s", arg)
			}
			if !seen[arg] {
				seen[arg] = true
				files = append(files, arg)
			}
			continue
		}

		matches, err := doublestar.FilepathGlob(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", arg, err)
		}
		found := false
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || info.IsDir() {
				continue
			}
			found = true
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
		if !found {
			return nil, fmt.Errorf("no files match %q", arg)
		}
	}
	sort.Strings(files)
	return files, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	files, err := expandPaths(args)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)

	results := make([]ingestSummary, 0, len(files))
	for _, f := range files {
		bar.Describe("[cyan]Ingesting[reset] " + filepath.Base(f))
		results = append(results, ingestFile(cmd, app, f))
		_ = bar.Add(1)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nIngestion complete:\n")
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(out, "  %s: failed: %v\n", r.Path, r.Err)
			continue
		}
		fmt.Fprintf(out, "  %s: file_id=%s chunks=%d\n", r.Path, r.FileID, r.Chunks)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(results))
	}
	return nil
}

func ingestFile(cmd *cobra.Command, app *App, path string) ingestSummary {
	ctx := commandContext(cmd)
	res := ingestSummary{Path: path}

	body, err := os.ReadFile(path)
	if err != nil {
		res.Err = fmt.Errorf("failed to read file: %w", err)
		return res
	}
	up, err := app.Uploader.Upload(ctx, filepath.Base(path), body)
	if err != nil {
		res.Err = err
		return res
	}
	res.FileID = up.FileID

	res.Chunks, res.Err = app.Ingestor.Ingest(ctx, up.FileID)
	return res
}
