package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/surveyload/internal/dataset"
	"github.com/wesleyorama2/surveyload/internal/loadgen"
)

func newPartitionCmd() *cobra.Command {
	var (
		records  int
		workers  int
		dataFile string
	)

	cmd := &cobra.Command{
		Use:   "partition",
		Short: "Print the record range each worker would own",
		Long: `Partition prints one "<worker>  <first>...<last>" line per worker, the
same assignment lines a run starts with. The record count is taken from
--records or from the number of records in --data-file.

  surveyload partition --records 10 --workers 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if workers < 1 {
				return fmt.Errorf("--workers must be >= 1, got %d", workers)
			}

			total := records
			if dataFile != "" {
				recs, err := dataset.Load(dataFile)
				if err != nil {
					return err
				}
				total = len(recs)
			}
			if total < 0 {
				return fmt.Errorf("--records must be >= 0, got %d", total)
			}

			out := cmd.OutOrStdout()
			for i, r := range loadgen.Partition(total, workers) {
				fmt.Fprintf(out, "%d  %s\n", i, r)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&records, "records", "n", 0, "Number of records")
	cmd.Flags().IntVarP(&workers, "workers", "w", 1, "Number of workers")
	cmd.Flags().StringVarP(&dataFile, "data-file", "f", "", "Count the records of this dataset instead of --records")
	cmd.MarkFlagsMutuallyExclusive("records", "data-file")

	return cmd
}
