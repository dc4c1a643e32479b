package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cellstore/internal/core/domain"
)

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Execution trace history",
}

var traceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List execution traces, newest first",
	Args:  cobra.NoArgs,
	RunE:  runTraceList,
}

var traceShowCmd = &cobra.Command{
	Use:   "show [trace-id]",
	Short: "Show one trace with its log",
	Args:  cobra.ExactArgs(1),
	RunE:  runTraceShow,
}

var traceRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record an execution trace",
	Long:  `Record a trace produced by an execution engine. --log is a JSON file.`,
	Args:  cobra.NoArgs,
	RunE:  runTraceRecord,
}

func init() {
	traceListCmd.Flags().IntP("limit", "l", 20, "maximum traces (0 = all)")

	traceRecordCmd.Flags().StringP("mode", "m", string(domain.ExecutionAll), "all, from_cell or single")
	traceRecordCmd.Flags().StringP("start", "s", "", "start cell")
	traceRecordCmd.Flags().String("log", "", "JSON log file")

	traceCmd.AddCommand(traceListCmd)
	traceCmd.AddCommand(traceShowCmd)
	traceCmd.AddCommand(traceRecordCmd)
	rootCmd.AddCommand(traceCmd)
}

func runTraceList(cmd *cobra.Command, _ []string) error {
	if traceService == nil {
		return errNotConfigured("trace")
	}
	limit, _ := cmd.Flags().GetInt("limit")

	traces, err := traceService.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(traces) == 0 {
		cmd.Println("No traces.")
		return nil
	}
	for _, t := range traces {
		start := "-"
		if t.StartCell != nil {
			start = displayRef(*t.StartCell)
		}
		cmd.Printf("  %s  %s  %-9s %s\n", t.ID, t.Timestamp.Format("2006-01-02 15:04:05"), t.Mode, start)
	}
	return nil
}

func runTraceShow(cmd *cobra.Command, args []string) error {
	if traceService == nil {
		return errNotConfigured("trace")
	}
	t, err := traceService.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(data))
	return nil
}

func runTraceRecord(cmd *cobra.Command, _ []string) error {
	if traceService == nil {
		return errNotConfigured("trace")
	}
	mode, _ := cmd.Flags().GetString("mode")
	startRef, _ := cmd.Flags().GetString("start")
	logPath, _ := cmd.Flags().GetString("log")

	var start *domain.CellID
	if startRef != "" {
		if cellService == nil {
			return errNotConfigured("cell")
		}
		ids, err := resolveRefs(cmd, startRef)
		if err != nil {
			return err
		}
		start = &ids[0]
	}
	var log json.RawMessage
	if logPath != "" {
		data, err := os.ReadFile(logPath)
		if err != nil {
			return fmt.Errorf("reading %s: %w", logPath, err)
		}
		log = data
	}

	t, err := traceService.Record(cmd.Context(), domain.ExecutionMode(mode), start, log)
	if err != nil {
		return fmt.Errorf("failed to record trace: %w", err)
	}
	cmd.Printf("Recorded trace %s\n", t.ID)
	return nil
}
