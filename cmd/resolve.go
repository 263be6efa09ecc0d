package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"reelscrape/internal/caption"
	"reelscrape/internal/media"
	"reelscrape/internal/provider"
)

var (
	flagType      string
	flagTitle     string
	flagYear      int
	flagTMDB      string
	flagSeason    int
	flagEpisode   int
	flagProviders []string
	flagLanguage  string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [title]",
	Short: "Resolve a movie or episode to a playable stream",
	Example: `  reelscrape resolve "The Thing" --year 1982
  reelscrape resolve --type show --title Severance -s 2 -e 3 --tmdb 95396
  reelscrape resolve --tmdb 603 --provider uira32 --json`,
	Args: cobra.ArbitraryArgs,
	RunE: resolveRun,
}

func init() {
	resolveCmd.Flags().StringVarP(&flagType, "type", "t", "movie", "Media type: movie | show")
	resolveCmd.Flags().StringVar(&flagTitle, "title", "", "Title to search for")
	resolveCmd.Flags().IntVarP(&flagYear, "year", "y", 0, "Release year")
	resolveCmd.Flags().StringVar(&flagTMDB, "tmdb", "", "TMDB id")
	resolveCmd.Flags().IntVarP(&flagSeason, "season", "s", 0, "Season number (shows)")
	resolveCmd.Flags().IntVarP(&flagEpisode, "episode", "e", 0, "Episode number (shows)")
	resolveCmd.Flags().StringSliceVarP(&flagProviders, "provider", "p", nil, "Only try these providers (see 'reelscrape providers')")
	resolveCmd.Flags().StringVarP(&flagLanguage, "language", "l", "", "Subtitle language (default: english)")
}

func resolveRun(cmd *cobra.Command, args []string) error {
	q, err := buildQuery(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	runner, _, closer, err := newRunner(ctx)
	if err != nil {
		return err
	}
	defer closer.Close()

	lang := flagLanguage
	if lang == "" {
		lang = cfg.SubsLanguage
	}

	styled := !flagJSON && isTerminal(os.Stdout)
	showProgress := !flagJSON && isTerminal(os.Stderr)

	out, err := runner.Run(ctx, q, provider.RunOptions{
		SourceIDs:        flagProviders,
		HeadersSupported: cfg.HeadersSupported,
		Progress: func(id string, percent int) {
			log.WithField("provider", id).WithField("percent", percent).Debug("progress")
			if showProgress {
				fmt.Fprintf(os.Stderr, "\r\033[K%s %3d%%", id, percent)
			}
		},
	})
	if showProgress {
		fmt.Fprint(os.Stderr, "\r\033[K")
	}
	if err != nil {
		if media.IsExpected(err) {
			return fmt.Errorf("nothing playable found for %s", describe(q))
		}
		return fmt.Errorf("resolving %s: %w", describe(q), err)
	}

	if flagJSON {
		return writeJSON(os.Stdout, resolveOutput{
			Source:  out.SourceID,
			Embed:   out.EmbedID,
			Stream:  out.Stream,
			Caption: caption.BestMatch(out.Stream.Captions, lang),
		})
	}
	printStream(os.Stdout, styled, out, lang)
	return nil
}

// buildQuery assembles the media query from flags and positional args.
func buildQuery(args []string) (media.MediaQuery, error) {
	mt, err := media.ParseMediaType(flagType)
	if err != nil {
		return media.MediaQuery{}, err
	}
	// Season and episode imply a show.
	if flagSeason > 0 || flagEpisode > 0 {
		mt = media.Show
	}

	title := flagTitle
	if title == "" {
		title = strings.Join(args, " ")
	}

	q := media.MediaQuery{
		Type:        mt,
		Title:       strings.TrimSpace(title),
		ReleaseYear: flagYear,
		TMDBID:      flagTMDB,
	}
	if mt == media.Show {
		q.Season, q.Episode = flagSeason, flagEpisode
	}
	if err := q.Validate(); err != nil {
		return media.MediaQuery{}, err
	}
	return q, nil
}

func describe(q media.MediaQuery) string {
	name := q.Title
	if name == "" {
		name = "tmdb:" + q.TMDBID
	}
	if q.Type == media.Show {
		return fmt.Sprintf("%q S%02dE%02d", name, q.Season, q.Episode)
	}
	if q.ReleaseYear > 0 {
		return fmt.Sprintf("%q (%d)", name, q.ReleaseYear)
	}
	return fmt.Sprintf("%q", name)
}
