// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/media-extractor/internal/preview"
	"github.com/jonathan/media-extractor/internal/resolver"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines on a rune boundary
		if runes := []rune(line); len(runes) > boxWidth-4 {
			line = string(runes[:boxWidth-7]) + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintResolution outputs every candidate with its score and marks the chosen one.
func (p *Printer) PrintResolution(res *resolver.Resolution) {
	if res == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Page:       %s\n", res.PageURL))
	sb.WriteString(fmt.Sprintf("Candidates: %d\n", len(res.Candidates)))

	if len(res.Candidates) > 0 {
		sb.WriteString("\n")
		for i, c := range res.Candidates {
			marker := " "
			if i == res.Chosen {
				marker = "*"
			}
			sb.WriteString(fmt.Sprintf("%s %d. [%s] score=%d\n", marker, i+1, c.SourceType, c.Score))
			sb.WriteString(fmt.Sprintf("     %s\n", c.Src))
		}
	}

	sb.WriteString("\n")
	if res.Found {
		sb.WriteString(fmt.Sprintf("Image: %s", res.ImageURL))
	} else {
		sb.WriteString("Image: (none)")
	}

	p.printBox("IMAGE RESOLUTION", sb.String())
}

// PrintPreview outputs a human-readable summary of a fetched preview.
func (p *Printer) PrintPreview(pv *preview.Preview) {
	if pv == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Page:      %s\n", pv.PageURL))
	if pv.FinalURL != "" && pv.FinalURL != pv.PageURL {
		sb.WriteString(fmt.Sprintf("Final URL: %s\n", pv.FinalURL))
	}
	if pv.Found {
		sb.WriteString(fmt.Sprintf("Image:     %s\n", pv.ImageURL))
		sb.WriteString(fmt.Sprintf("Source:    %s\n", pv.Source))
	} else {
		sb.WriteString("Image:     (none)\n")
	}
	sb.WriteString(fmt.Sprintf("Cached:    %t\n", pv.FromCache))
	sb.WriteString(fmt.Sprintf("Rendered:  %t", pv.Rendered))

	if len(pv.Candidates) > 0 {
		sb.WriteString(fmt.Sprintf("\n\nCandidates (%d):\n", len(pv.Candidates)))
		count := min(len(pv.Candidates), maxItemsToShow)
		for i := 0; i < count; i++ {
			c := pv.Candidates[i]
			sb.WriteString(fmt.Sprintf("  • [%s] %d %s\n", c.SourceType, c.Score, c.Src))
		}
		if len(pv.Candidates) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(pv.Candidates)-maxItemsToShow))
		}
	}

	p.printBox("LINK PREVIEW", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintBatchSummary outputs batch totals and the first failures.
func (p *Printer) PrintBatchSummary(items []preview.BatchItem) {
	if len(items) == 0 {
		return
	}

	summary := preview.Summarize(items)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Pages:    %d\n", summary.Total))
	sb.WriteString(fmt.Sprintf("Found:    %d\n", summary.Found))
	sb.WriteString(fmt.Sprintf("No image: %d\n", summary.Total-summary.Found-summary.Failed))
	sb.WriteString(fmt.Sprintf("Failed:   %d", summary.Failed))

	if summary.Failed > 0 {
		sb.WriteString("\n\nFailures:\n")
		shown := 0
		for _, item := range items {
			if item.Error == "" {
				continue
			}
			if shown == maxItemsToShow {
				sb.WriteString(fmt.Sprintf("  ... and %d more\n", summary.Failed-maxItemsToShow))
				break
			}
			sb.WriteString(fmt.Sprintf("  • %s\n", item.URL))
			shown++
		}
	}

	p.printBox("BATCH SUMMARY", strings.TrimSuffix(sb.String(), "\n"))
}
