package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/Mr-Dark-debug/pulse/internal/places"
)

func (c *cli) placesCmd() *cobra.Command {
	var (
		lat, lng float64
		radius   int
	)

	cmd := &cobra.Command{
		Use:   "places",
		Short: "Search nearby places through the configured upstream",
		Long: `Queries the same upstream places search as the dashboard's
/api/places route and prints {"places": [...]}.

Requires places.api_key (or PULSE_PLACES_API_KEY).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := places.NewClient(c.cfg.Places, nil)
			found, err := client.Search(cmd.Context(), places.Query{Lat: lat, Lng: lng, Radius: radius})
			if err != nil {
				return err
			}
			if found == nil {
				found = []places.Place{}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(places.Response{Places: found})
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude (required)")
	cmd.Flags().Float64Var(&lng, "lng", 0, "longitude (required)")
	cmd.Flags().IntVar(&radius, "radius", 0, "search radius in meters (default from config)")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")
	return cmd
}
