package cli

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
)

// NewStatsCmd создаёт команду просмотра статистики балансировщика.
func NewStatsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show worker pool statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			stats, err := client.Stats()
			if err != nil {
				return err
			}

			// Стабильный порядок строк
			types := make([]string, 0, len(stats.Pools))
			for wt := range stats.Pools {
				types = append(types, wt)
			}
			sort.Strings(types)

			headers := []string{"WORKER_TYPE", "ACTIVE", "CAPACITY", "LOAD", "LOAD_RATIO", "SUCCESS_RATE"}
			rows := make([][]string, len(types))
			for i, wt := range types {
				p := stats.Pools[wt]
				rows[i] = []string{
					wt,
					strconv.Itoa(p.ActiveWorkers),
					strconv.Itoa(p.TotalCapacity),
					strconv.Itoa(p.CurrentLoad),
					fmt.Sprintf("%.2f", p.LoadRatio),
					fmt.Sprintf("%.2f", p.AvgSuccessRate),
				}
			}

			out.Print(headers, rows, stats)
			return nil
		},
	}
}

// NewWorkersCmd создаёт группу команд для управления воркерами.
func NewWorkersCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "Manage worker pools",
	}

	cmd.AddCommand(
		newWorkersListCmd(clientFn, outputFn),
		newWorkersRebalanceCmd(clientFn, outputFn),
	)

	return cmd
}

func newWorkersListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workers in all pools",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			pools, err := client.ListWorkers()
			if err != nil {
				return err
			}

			types := make([]string, 0, len(pools))
			for wt := range pools {
				types = append(types, wt)
			}
			sort.Strings(types)

			headers := []string{"WORKER_ID", "LOAD", "CAPACITY", "AVG_EXEC_SEC", "SUCCESS_RATE", "ACTIVE"}
			var rows [][]string
			for _, wt := range types {
				for _, w := range pools[wt] {
					rows = append(rows, []string{
						w.WorkerID,
						strconv.Itoa(w.CurrentLoad),
						strconv.Itoa(w.MaxCapacity),
						fmt.Sprintf("%.1f", w.AvgExecutionTime),
						fmt.Sprintf("%.2f", w.SuccessRate),
						strconv.FormatBool(w.IsActive),
					})
				}
			}

			out.Print(headers, rows, pools)
			return nil
		},
	}
}

func newWorkersRebalanceCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "rebalance",
		Short: "Trigger manual pool rebalancing",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			stats, err := client.Rebalance()
			if err != nil {
				return err
			}

			out.Success("Rebalance completed")
			out.JSON(stats)
			return nil
		},
	}
}
