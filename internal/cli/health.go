package cli

import (
	"sort"
	"strconv"

	"github.com/spf13/cobra"
)

// NewHealthCmd создаёт команду просмотра здоровья зависимостей.
func NewHealthCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show dependency health and circuit breaker states",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			health, err := client.Health()
			if err != nil {
				return err
			}

			names := make([]string, 0, len(health.BreakerStates))
			for name := range health.BreakerStates {
				names = append(names, name)
			}
			sort.Strings(names)

			headers := []string{"OPERATION", "BREAKER_STATE"}
			rows := make([][]string, len(names))
			for i, name := range names {
				rows[i] = []string{name, health.BreakerStates[name]}
			}

			out.Success("Overall: " + health.OverallHealth +
				" (open breakers: " + strconv.Itoa(health.OpenCircuitBreakers) + ")")
			out.Print(headers, rows, health)
			return nil
		},
	}
}
