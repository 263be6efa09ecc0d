package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"
	"golang.org/x/term"

	"reelscrape/internal/caption"
	"reelscrape/internal/media"
	"reelscrape/internal/provider"
)

var (
	accentColor = lipgloss.Color("#f5c2e7")
	faintColor  = lipgloss.Color("#6c7086")
	greenColor  = lipgloss.Color("#a6e3a1")
	redColor    = lipgloss.Color("#f38ba8")

	labelStyle    = lipgloss.NewStyle().Foreground(faintColor)
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	tagStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#1e1e2e")).Background(accentColor).Padding(0, 1)
	okStyle       = lipgloss.NewStyle().Foreground(greenColor)
	disabledStyle = lipgloss.NewStyle().Foreground(redColor).Strikethrough(true)
)

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// render applies s only when styling is wanted.
func render(styled bool, s lipgloss.Style, text string) string {
	if !styled {
		return text
	}
	return s.Render(text)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type resolveOutput struct {
	Source  string                 `json:"source"`
	Embed   string                 `json:"embed,omitempty"`
	Stream  media.StreamDescriptor `json:"stream"`
	Caption *media.CaptionTrack    `json:"caption,omitempty"`
}

// printStream writes the resolved stream in a human-readable form.
func printStream(w io.Writer, styled bool, out *provider.RunOutput, lang string) {
	s := out.Stream
	via := out.SourceID
	if out.EmbedID != "" {
		via += " → " + out.EmbedID
	}

	fmt.Fprintf(w, "%s %s\n", render(styled, tagStyle, string(s.Kind)), render(styled, titleStyle, via))
	fmt.Fprintf(w, "%s %s\n", render(styled, labelStyle, "url:"), s.URL())

	if s.Kind == media.KindFile && len(s.Qualities) > 1 {
		for _, q := range media.QualityOrder {
			if v, ok := s.Qualities[q]; ok {
				fmt.Fprintf(w, "%s %s\n", render(styled, labelStyle, q+":"), v.URL)
			}
		}
	}

	if len(s.Headers) > 0 {
		for _, k := range slices.Sorted(maps.Keys(s.Headers)) {
			fmt.Fprintf(w, "%s %s: %s\n", render(styled, labelStyle, "header:"), k, s.Headers[k])
		}
	}

	if len(s.Flags) > 0 {
		flags := lo.Map(s.Flags, func(f media.Flag, _ int) string { return string(f) })
		fmt.Fprintf(w, "%s %s\n", render(styled, labelStyle, "flags:"), strings.Join(flags, ", "))
	}

	if best := caption.BestMatch(s.Captions, lang); best != nil {
		fmt.Fprintf(w, "%s %s (%s) %s\n", render(styled, labelStyle, "subtitles:"), best.Language, best.Type, best.URL)
	} else if len(s.Captions) > 0 {
		fmt.Fprintf(w, "%s %d tracks, none in %s\n", render(styled, labelStyle, "subtitles:"), len(s.Captions), lang)
	}
}
