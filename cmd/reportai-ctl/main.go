// ReportAI CTL — инструмент командной строки для управления
// диспетчером подзадач через HTTP API.
//
// Использование:
//
//	reportai-ctl [--api-url URL] [--json] <command> [flags]
//
// Команды:
//
//	submit    Отправка батча подзадач
//	stats     Статистика пулов воркеров
//	workers   Управление воркерами
//	health    Здоровье зависимостей
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kongusen/AutoReportAI-sub016/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "reportai-ctl",
		Short:         "ReportAI CTL — subtask dispatcher tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewSubmitCmd(clientFn, outputFn),
		cli.NewStatsCmd(clientFn, outputFn),
		cli.NewWorkersCmd(clientFn, outputFn),
		cli.NewHealthCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
