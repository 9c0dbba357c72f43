package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kris-hansen/analyst/utils/config"
	"github.com/kris-hansen/analyst/utils/executor"
	"github.com/kris-hansen/analyst/utils/export"
	"github.com/kris-hansen/analyst/utils/fileutil"
	"github.com/kris-hansen/analyst/utils/parser"
	"github.com/kris-hansen/analyst/utils/session"
	"github.com/kris-hansen/analyst/utils/workflow"
)

// runOptions configure a headless run
type runOptions struct {
	Name        string
	Problem     string
	DataContext string
	URLs        []string
	Model       string
	Tasks       int
	Execute     bool
	Review      bool
	Out         string
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run <files...>",
	Short: "Run a whole analysis without the API",
	Long: `Run every stage of an analysis over local files: plan, data summary,
guidance, the first suggested tasks and the final report. The artifacts of the
run are written to a zip bundle.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		envConfig, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		engine := workflow.NewEngine(envConfig, config.Verbose)
		spinner := workflow.NewSpinner(os.Stderr)
		if config.Verbose {
			spinner.Disable()
		}
		engine.SetProgressWriter(spinner)

		return runAnalysis(ctx, cmd.OutOrStdout(), engine, args, runOpts)
	},
}

// runAnalysis drives one session through every stage and writes the bundle
func runAnalysis(ctx context.Context, w io.Writer, engine *workflow.Engine, paths []string, opts runOptions) error {
	uploads, err := readUploads(paths, engine.Handler().MaxSize())
	if err != nil {
		return err
	}

	s := engine.NewSession(session.Settings{Model: opts.Model})
	batch, err := engine.Setup(ctx, s, workflow.ProjectInput{
		Name:             opts.Name,
		ProblemStatement: opts.Problem,
		DataContext:      opts.DataContext,
	}, uploads, opts.URLs)
	if batch != nil {
		for _, fe := range batch.Errors {
			fmt.Fprintf(w, "Skipped %s: %v\n", fe.Name, fe.Err)
		}
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Project %q: %d files loaded, model %s\n", s.Project.Name, len(s.Files), engine.Model(s))

	stages := []struct {
		step session.Step
		run  func(context.Context, *session.Session) (string, error)
	}{
		{session.StepPlanning, engine.GenerateManagerPlan},
		{session.StepUnderstanding, engine.GenerateAnalystSummary},
		{session.StepGuidance, engine.GenerateGuidance},
	}
	for _, st := range stages {
		if err := engine.Navigate(s, st.step); err != nil {
			return err
		}
		if _, err := st.run(ctx, s); err != nil {
			return fmt.Errorf("%s: %w", st.step, err)
		}
		fmt.Fprintf(w, "%s done\n", st.step)
	}

	if err := engine.Navigate(s, session.StepExecution); err != nil {
		return err
	}
	tasks, err := engine.SuggestedTasks(s)
	if err != nil {
		return err
	}
	var files []string
	for _, f := range s.TabularFiles() {
		files = append(files, f.Name)
	}
	if len(files) == 0 {
		return fmt.Errorf("analysis tasks need at least one CSV or Excel file")
	}
	ran := 0
	for _, task := range tasks {
		if ran >= opts.Tasks {
			break
		}
		if task == parser.ManualTask || task == parser.FallbackTask {
			continue
		}
		if _, err := engine.RunAnalysisTask(ctx, s, task, files); err != nil {
			return fmt.Errorf("task %q: %w", task, err)
		}
		ran++
		fmt.Fprintf(w, "Task %d done: %s\n", ran, task)

		if opts.Execute {
			res, err := engine.ExecuteCode(ctx, s, "")
			switch {
			case errors.Is(err, executor.ErrSandboxDisabled), errors.Is(err, executor.ErrEmptyCode):
				fmt.Fprintf(w, "Skipping execution: %v\n", err)
			case err != nil:
				return fmt.Errorf("executing task %q: %w", task, err)
			default:
				if _, err := engine.InsightsFromOutput(ctx, s, res.Code, res.Output); err != nil {
					return fmt.Errorf("insights for task %q: %w", task, err)
				}
			}
		}
	}
	if ran == 0 {
		return fmt.Errorf("the Associate's guidance did not suggest any runnable task")
	}

	if opts.Review {
		if _, err := engine.ReviewAnalysis(ctx, s); err != nil {
			return fmt.Errorf("review: %w", err)
		}
	}

	if err := engine.Navigate(s, session.StepReport); err != nil {
		return err
	}
	if _, err := engine.GenerateFinalReport(ctx, s); err != nil {
		return fmt.Errorf("%s: %w", session.StepReport, err)
	}

	arts, err := export.All(s, s.CurrentStep)
	if err != nil {
		return err
	}
	data, err := export.Bundle(arts)
	if err != nil {
		return err
	}
	out := opts.Out
	if out == "" {
		out = fileutil.SafeName(s.Project.Name) + "_artifacts.zip"
	}
	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating output directory: %w", err)
		}
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return fmt.Errorf("error writing bundle: %w", err)
	}
	fmt.Fprintf(w, "Wrote %d artifacts to %s\n", len(arts), out)
	return nil
}

func init() {
	runCmd.Flags().StringVarP(&runOpts.Name, "name", "n", "", "project name (required)")
	runCmd.Flags().StringVarP(&runOpts.Problem, "problem", "p", "", "problem statement (required)")
	runCmd.Flags().StringVar(&runOpts.DataContext, "context", "", "background on the data")
	runCmd.Flags().StringSliceVar(&runOpts.URLs, "url", nil, "web page to scrape as a text source (repeatable)")
	runCmd.Flags().StringVarP(&runOpts.Model, "model", "m", "", "model to use (defaults to the configured default)")
	runCmd.Flags().IntVar(&runOpts.Tasks, "tasks", 1, "number of suggested tasks to run")
	runCmd.Flags().BoolVar(&runOpts.Execute, "execute", false, "run each task's code in the local sandbox and ask for insights on its output")
	runCmd.Flags().BoolVar(&runOpts.Review, "review", false, "have the Associate review the results before the report")
	runCmd.Flags().StringVarP(&runOpts.Out, "out", "o", "", "path of the artifact bundle")
	runCmd.MarkFlagRequired("name")
	runCmd.MarkFlagRequired("problem")
	rootCmd.AddCommand(runCmd)
}
