package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mr-Dark-debug/pulse/internal/dataset"
)

func (c *cli) seedCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the sample client dataset",
		Long: `Loads the embedded sample dataset. An existing database is left alone
unless --force is given, which upserts every sample client.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.cfg.Database.Seed = false
			store, err := c.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			var n int
			if force {
				n, err = dataset.Seed(store)
			} else {
				n, err = dataset.SeedIfEmpty(store)
			}
			if err != nil {
				return err
			}

			total, err := store.CountClients()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d clients (%d in %s)\n", n, total, c.cfg.Database.Path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "upsert sample clients even when the database has data")
	return cmd
}
