package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dhcgn/mbox-ediscovery/extract"
	"github.com/dhcgn/mbox-ediscovery/locate"
	"github.com/dhcgn/mbox-ediscovery/matcher"
	"github.com/dhcgn/mbox-ediscovery/mbox"
	"github.com/dhcgn/mbox-ediscovery/model"
	"github.com/dhcgn/mbox-ediscovery/stats"
)

var headersToTrack = []string{"From", "To", "Subject"}

// ScanOptions configures a read-only survey of a directory tree.
type ScanOptions struct {
	Root      string
	Terms     []string
	TopN      int
	ReportDir string
}

// ContainerInfo describes one container found during a scan.
type ContainerInfo struct {
	Path     string
	Messages int
	Err      error
}

// ScanResult is what Scan collected.
type ScanResult struct {
	Containers []ContainerInfo
	Counter    map[string]map[string]int
	Matches    int
	TermStats  *matcher.Stats
}

// NewScanCommand returns the scan sub-command, which lists the containers
// below a directory without exporting anything.
func NewScanCommand() *cobra.Command {
	opts := ScanOptions{}

	cmd := &cobra.Command{
		Use:   "scan [directory]",
		Short: "List mbox containers below a directory and show message statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Root = args[0]
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "Scanning directory:", opts.Root)

			res, err := Scan(cmd.Context(), opts)
			if err != nil {
				return err
			}
			printScan(out, opts, res)

			if opts.ReportDir != "" {
				if err := saveCSVReports(res.Counter, headersToTrack, opts.ReportDir, 1000); err != nil {
					return fmt.Errorf("error saving CSV reports: %w", err)
				}
				fmt.Fprintf(out, "\nReports saved to directory: %s\n", opts.ReportDir)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.ReportDir, "output", "o", "", "Output directory for CSV reports (optional)")
	cmd.Flags().IntVarP(&opts.TopN, "top", "t", 10, "Number of top items to display in statistics")
	cmd.Flags().StringArrayVar(&opts.Terms, "term", nil, "Count messages containing this term (repeatable)")
	return cmd
}

// Scan walks opts.Root and gathers per-container message counts plus header
// frequencies. When terms are given it also counts matching messages.
func Scan(ctx context.Context, opts ScanOptions) (ScanResult, error) {
	if err := locate.CheckRoot(opts.Root); err != nil {
		return ScanResult{}, err
	}

	var m *matcher.Matcher
	if len(opts.Terms) > 0 {
		var err error
		m, err = matcher.New(matcher.Options{Terms: opts.Terms})
		if err != nil {
			return ScanResult{}, err
		}
	}

	res := ScanResult{Counter: make(map[string]map[string]int)}
	for _, h := range headersToTrack {
		res.Counter[h] = make(map[string]int)
	}

	for path, err := range locate.Containers(opts.Root) {
		if err != nil {
			res.Containers = append(res.Containers, ContainerInfo{Path: path, Err: err})
			continue
		}

		info := ContainerInfo{Path: path}
		info.Err = mbox.Read(ctx, path, func(msg model.Message) error {
			info.Messages++
			fields := extract.Extract(msg, nil)
			for _, h := range headersToTrack {
				var value string
				switch h {
				case "From":
					value = fields.From
				case "To":
					value = fields.To
				case "Subject":
					value = fields.Subject
				}
				if value != "" {
					res.Counter[h][value]++
				}
			}
			if m != nil && m.Match(fields.Corpus()) {
				res.Matches++
			}
			return nil
		})
		res.Containers = append(res.Containers, info)
	}

	if m != nil {
		s := m.GetStats()
		res.TermStats = &s
	}
	return res, nil
}

func printScan(out io.Writer, opts ScanOptions, res ScanResult) {
	total := 0
	fmt.Fprintln(out)
	for _, c := range res.Containers {
		rel, err := filepath.Rel(opts.Root, c.Path)
		if err != nil {
			rel = c.Path
		}
		if c.Err != nil {
			fmt.Fprintf(out, "  ✗ %s: %v\n", rel, c.Err)
			continue
		}
		total += c.Messages
		fmt.Fprintf(out, "  ✓ %s: %d messages\n", rel, c.Messages)
	}
	fmt.Fprintf(out, "\n%d containers, %d messages\n\n", len(res.Containers), total)

	if res.TermStats != nil {
		fmt.Fprintf(out, "Matching messages: %d\n", res.Matches)
		for _, term := range res.TermStats.Terms {
			fmt.Fprintf(out, "  %s: %d hits\n", term, res.TermStats.Hits[term])
		}
		fmt.Fprintln(out)
	}

	for _, header := range headersToTrack {
		fmt.Fprintf(out, "Top %d %s:\n", opts.TopN, header)
		for i, p := range stats.Top(res.Counter[header], opts.TopN) {
			fmt.Fprintf(out, "%d. %s (%d)\n", i+1, p.Key, p.Value)
		}
		fmt.Fprintln(out)
	}
}

func saveCSVReports(counter map[string]map[string]int, headers []string, dir string, limit int) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	// Write data for each header category to a separate file
	for _, header := range headers {
		filename := fmt.Sprintf("report_%s.csv", normalizeHeaderName(header))
		file, err := os.Create(filepath.Join(dir, filename))
		if err != nil {
			return err
		}

		writer := csv.NewWriter(file)

		if err := writer.Write([]string{"Value", "Count"}); err != nil {
			file.Close()
			return err
		}

		for _, p := range stats.Top(counter[header], limit) {
			if err := writer.Write([]string{p.Key, strconv.Itoa(p.Value)}); err != nil {
				file.Close()
				return err
			}
		}

		writer.Flush()
		file.Close()

		if err := writer.Error(); err != nil {
			return err
		}
	}

	return nil
}

func normalizeHeaderName(header string) string {
	// Convert to lowercase and replace invalid filename chars
	name := strings.ToLower(header)
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, " ", "_")
	return name
}
