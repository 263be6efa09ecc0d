package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"reelscrape/internal/media"
	"reelscrape/internal/provider"
)

var providersCmd = &cobra.Command{
	Use:     "providers",
	Aliases: []string{"ls"},
	Short:   "List source and embed providers",
	RunE:    providersRun,
}

type providerEntry struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Kind     string   `json:"kind"`
	Rank     int      `json:"rank"`
	Flags    []string `json:"flags"`
	Disabled bool     `json:"disabled,omitempty"`
}

func providersRun(cmd *cobra.Command, args []string) error {
	_, registry, closer, err := newRunner(cmd.Context())
	if err != nil {
		return err
	}
	defer closer.Close()

	entries := append(
		toEntries(registry, registry.List(), "source"),
		toEntries(registry, registry.ListEmbeds(), "embed")...,
	)
	if flagJSON {
		return writeJSON(os.Stdout, entries)
	}
	printProviders(os.Stdout, isTerminal(os.Stdout), entries)
	return nil
}

func toEntries(r *provider.Registry, regs []media.ProviderRegistration, kind string) []providerEntry {
	return lo.Map(regs, func(reg media.ProviderRegistration, _ int) providerEntry {
		return providerEntry{
			ID:       reg.ID,
			Name:     reg.Name,
			Kind:     kind,
			Rank:     reg.Rank,
			Flags:    lo.Map(reg.Flags, func(f media.Flag, _ int) string { return string(f) }),
			Disabled: r.Disabled(reg.ID),
		}
	})
}

func printProviders(w io.Writer, styled bool, entries []providerEntry) {
	kind := ""
	for _, e := range entries {
		if e.Kind != kind {
			kind = e.Kind
			fmt.Fprintln(w, render(styled, titleStyle, kind+"s"))
		}
		state := render(styled, okStyle, "enabled")
		if e.Disabled {
			state = render(styled, disabledStyle, "disabled")
		}
		line := fmt.Sprintf("  %4d  %-14s %-14s %s", e.Rank, e.ID, e.Name, state)
		if len(e.Flags) > 0 {
			line += "  " + render(styled, tagStyle, strings.Join(e.Flags, ","))
		}
		fmt.Fprintln(w, line)
	}
}
