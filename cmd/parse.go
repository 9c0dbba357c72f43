package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kris-hansen/analyst/utils/fileutil"
	"github.com/kris-hansen/analyst/utils/parser"
)

var parseJSON bool

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Parse saved persona replies",
}

var parseTasksCmd = &cobra.Command{
	Use:   "tasks <file|->",
	Short: "List the analysis tasks proposed in Associate guidance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}
		tasks := parser.ParseAssociateTasks(text)
		if parseJSON {
			return writeIndented(cmd.OutOrStdout(), tasks)
		}
		for i, task := range tasks {
			fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, task)
		}
		return nil
	},
}

var parseAnalystCmd = &cobra.Command{
	Use:   "analyst <file|->",
	Short: "Split an Analyst task reply into approach, code, results and insights",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}
		sections := parser.ParseAnalystTaskResponse(text)
		if parseJSON {
			return writeIndented(cmd.OutOrStdout(), sections)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Approach:\n%s\n\nCode:\n%s\n\nResults:\n%s\n\nInsights:\n%s\n",
			sections.Approach, sections.Code, sections.ResultsText, sections.Insights)
		return nil
	},
}

// readInput reads a file, or stdin when name is "-"
func readInput(stdin io.Reader, name string) (string, error) {
	if name == "-" {
		data, err := fileutil.ReadAll("stdin", stdin, fileutil.MaxFileSize)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	data, err := fileutil.SafeReadFile(name, fileutil.MaxFileSize)
	if err != nil {
		return "", fmt.Errorf("error reading %s: %w", name, err)
	}
	return string(data), nil
}

func writeIndented(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	parseCmd.PersistentFlags().BoolVar(&parseJSON, "json", false, "print JSON")
	parseCmd.AddCommand(parseTasksCmd)
	parseCmd.AddCommand(parseAnalystCmd)
	rootCmd.AddCommand(parseCmd)
}
