package cmd

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Inspect or clear cached challenge tokens",
}

var tokenListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached token keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closer, err := openTokenStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closer.Close()

		keys, err := store.Keys(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing tokens: %w", err)
		}
		slices.Sort(keys)
		if flagJSON {
			return writeJSON(os.Stdout, keys)
		}
		if len(keys) == 0 {
			fmt.Println("No cached tokens.")
			return nil
		}
		for _, k := range keys {
			fmt.Println(k)
		}
		return nil
	},
}

var tokenClearCmd = &cobra.Command{
	Use:   "clear [key]",
	Short: "Remove one cached token, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closer, err := openTokenStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closer.Close()

		if len(args) == 1 {
			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("removing token %q: %w", args[0], err)
			}
			fmt.Printf("Removed %s.\n", args[0])
			return nil
		}
		if err := store.Clear(cmd.Context()); err != nil {
			return fmt.Errorf("clearing tokens: %w", err)
		}
		fmt.Println("Token cache cleared.")
		return nil
	},
}

func init() {
	tokenCmd.AddCommand(tokenListCmd)
	tokenCmd.AddCommand(tokenClearCmd)
}
