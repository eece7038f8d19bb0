package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// NewSubmitCmd создаёт команду отправки батча подзадач.
func NewSubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var mainTaskID string
	var file string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a subtask batch for distribution",
		Long: `Submit a subtask batch for distribution.

The batch is read from --file (or stdin with --file -) as JSON:

  [
    {"id": "st-1", "type": "SQL_QUERY", "priority": 5,
     "payload": {"query": "SELECT ..."}},
    {"id": "st-2", "type": "PLACEHOLDER_ANALYSIS", "priority": 9,
     "payload": {"prompt": "..."}}
  ]`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := readInput(file)
			if err != nil {
				return err
			}

			var subtasks []SubtaskRequest
			if err := json.Unmarshal(data, &subtasks); err != nil {
				return fmt.Errorf("parse subtasks: %w", err)
			}

			result, err := client.SubmitTask(SubmitTaskRequest{
				MainTaskID: mainTaskID,
				Subtasks:   subtasks,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Batch accepted: %s (allocated %d, rejected %d, est %ds, balance %.2f)",
				result.MainTaskID,
				len(result.Result.Allocations),
				len(result.Result.RejectedSubtaskIDs),
				result.Result.TotalEstimatedTime,
				result.Result.LoadBalanceScore,
			))

			headers := []string{"SUBTASK_ID", "WORKER_ID", "PRIORITY", "EST_SEC"}
			rows := make([][]string, len(result.Result.Allocations))
			for i, a := range result.Result.Allocations {
				rows[i] = []string{
					a.SubtaskID,
					a.WorkerID,
					strconv.Itoa(a.Priority),
					strconv.Itoa(a.EstimatedDuration),
				}
			}

			out.Print(headers, rows, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&mainTaskID, "task-id", "", "Main task ID (generated if empty)")
	cmd.Flags().StringVar(&file, "file", "-", "JSON file with subtasks (- for stdin)")

	return cmd
}

// readInput читает данные из файла или stdin.
func readInput(file string) ([]byte, error) {
	if file == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(file)
}
