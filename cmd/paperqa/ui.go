package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/xhad/paperqa/internal/models"
)

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// printEvidence lists the passages an answer was grounded on.
func printEvidence(w io.Writer, evidence []models.Evidence) {
	if len(evidence) == 0 {
		return
	}
	heading := color.New(color.FgYellow, color.Bold).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	fmt.Fprintln(w)
	fmt.Fprintln(w, heading("Evidence:"))
	for i, ev := range evidence {
		score := fmt.Sprintf("%.3f", ev.Score)
		if ev.RerankScore != nil {
			score += fmt.Sprintf(", rerank %.1f", *ev.RerankScore)
		}
		fmt.Fprintf(w, "%d. %s %s\n", i+1, heading(ev.Section), faint("("+score+")"))
		fmt.Fprintf(w, "   %s\n", faint(snippet(ev.Text, 200)))
	}
}

func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "…"
}

func printOverview(w io.Writer, ov models.Overview) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(w, "%s %d pages, %d words, %d characters\n", bold("Document:"), ov.Pages, ov.Words, ov.Characters)
	fmt.Fprintf(w, "%s %d passages embedded with %s\n", bold("Index:"), ov.Records, ov.Model)
	fmt.Fprintln(w, bold("Sections:"))
	for _, s := range ov.Sections {
		fmt.Fprintf(w, "  %-40s %5d words  %3d paragraphs\n", s.Heading, s.Words, s.Paragraphs)
	}
}
