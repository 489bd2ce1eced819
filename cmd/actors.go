package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/seclog-dev/seclog/gen/population"
)

var actorsOutput string // Destination parquet file for the built population

// actorsCmd builds the actor population from the config and persists it, so
// repeated generation runs share one identical population.
var actorsCmd = &cobra.Command{
	Use:   "actors",
	Short: "Build the actor population and write it to a parquet file",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		cfg, err := LoadConfig(configPath)
		if err != nil {
			logrus.Fatalf("Could not load config: %v", err)
		}

		start, err := trafficStart(cfg)
		if err != nil {
			logrus.Fatalf("Invalid traffic.start_time: %v", err)
		}
		pop, err := population.Build(cfg.Population, cfg.Seed, start)
		if err != nil {
			logrus.Fatalf("Could not build population: %v", err)
		}

		humans, services := 0, 0
		for _, a := range pop.Actors {
			if a.Kind == population.KindService {
				services++
			} else {
				humans++
			}
		}
		if err := population.WriteFile(actorsOutput, pop); err != nil {
			logrus.Fatalf("Could not write %s: %v", actorsOutput, err)
		}
		logrus.Infof("Wrote %d actors (%d human, %d service) to %s",
			pop.Len(), humans, services, actorsOutput)
	},
}

func init() {
	actorsCmd.Flags().StringVar(&actorsOutput, "output", "actors.parquet", "Destination parquet file")
}
