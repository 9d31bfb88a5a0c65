package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/recall/internal/core/domain"
)

var (
	jobsKind   string
	jobsStatus string
	jobsLimit  int
	jobsJSON   bool
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and run background jobs",
	Long: `Background jobs persist ranking feedback, detect duplicates, merge
high-confidence duplicates and clean up old records.

Jobs are queued durably and run by 'recall jobs work' or 'recall jobs drain'.`,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs",
	Args:  cobra.NoArgs,
	RunE:  runJobsList,
}

var jobsShowCmd = &cobra.Command{
	Use:   "show [job-id]",
	Short: "Show a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsShow,
}

var jobsDrainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Run all due jobs and exit",
	Args:  cobra.NoArgs,
	RunE:  runJobsDrain,
}

var jobsWorkCmd = &cobra.Command{
	Use:   "work",
	Short: "Run workers and the scheduler until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runJobsWork,
}

var jobsTriggerCmd = &cobra.Command{
	Use:   "trigger [task-id]",
	Short: "Queue a scheduled task now",
	Long: `Queue the job behind a scheduled task immediately.

Tasks: cleanup, duplicate-scan, auto-merge.`,
	Args: cobra.ExactArgs(1),
	RunE: runJobsTrigger,
}

func init() {
	jobsListCmd.Flags().StringVar(&jobsKind, "kind", "", "filter by job kind")
	jobsListCmd.Flags().StringVar(&jobsStatus, "status", "", "filter by status: pending, running, completed or failed")
	jobsListCmd.Flags().IntVarP(&jobsLimit, "limit", "n", 20, "maximum number of jobs")
	jobsListCmd.Flags().BoolVar(&jobsJSON, "json", false, "output as JSON")
	jobsShowCmd.Flags().BoolVar(&jobsJSON, "json", false, "output as JSON")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsShowCmd)
	jobsCmd.AddCommand(jobsDrainCmd)
	jobsCmd.AddCommand(jobsWorkCmd)
	jobsCmd.AddCommand(jobsTriggerCmd)
	rootCmd.AddCommand(jobsCmd)
}

func runJobsList(cmd *cobra.Command, _ []string) error {
	if jobOrchestrator == nil {
		return errors.New("job orchestrator not configured")
	}

	jobs, err := jobOrchestrator.ListJobs(cmd.Context(), domain.JobFilter{
		Kind:   domain.JobKind(jobsKind),
		Status: domain.JobStatus(jobsStatus),
		Limit:  jobsLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	if jobsJSON {
		return writeJSON(cmd, jobs)
	}

	if len(jobs) == 0 {
		cmd.Println("No jobs found.")
		return nil
	}

	for i := range jobs {
		j := &jobs[i]
		cmd.Printf("  %s  %-28s %s  %s\n",
			mutedStyle.Render(j.ID),
			j.Kind,
			statusStyle(j.Status).Render(fmt.Sprintf("%-9s", j.Status)),
			mutedStyle.Render(fmt.Sprintf("attempt %d/%d", j.Attempts, j.MaxAttempts)))
	}
	return nil
}

func runJobsShow(cmd *cobra.Command, args []string) error {
	if jobOrchestrator == nil {
		return errors.New("job orchestrator not configured")
	}

	job, err := jobOrchestrator.Job(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	if jobsJSON {
		return writeJSON(cmd, job)
	}

	cmd.Printf("ID:       %s\n", job.ID)
	cmd.Printf("Kind:     %s\n", job.Kind)
	cmd.Printf("Status:   %s\n", statusStyle(job.Status).Render(string(job.Status)))
	cmd.Printf("Attempts: %d/%d\n", job.Attempts, job.MaxAttempts)
	cmd.Printf("Progress: %d%%\n", job.Progress)
	cmd.Printf("Created:  %s\n", job.CreatedAt.Format("2006-01-02 15:04:05"))
	if !job.FinishedAt.IsZero() {
		cmd.Printf("Finished: %s\n", job.FinishedAt.Format("2006-01-02 15:04:05"))
	} else if job.Status == domain.JobPending {
		cmd.Printf("Run at:   %s\n", job.RunAt.Format("2006-01-02 15:04:05"))
	}
	if len(job.Payload) > 0 {
		cmd.Printf("Payload:  %s\n", job.Payload)
	}
	if len(job.Result) > 0 {
		cmd.Printf("Result:   %s\n", job.Result)
	}
	if job.LastError != "" {
		cmd.Println(errorStyle.Render("Error:    " + job.LastError))
	}
	return nil
}

func runJobsDrain(cmd *cobra.Command, _ []string) error {
	if jobOrchestrator == nil {
		return errors.New("job orchestrator not configured")
	}
	return drainJobs(cmd)
}

func drainJobs(cmd *cobra.Command) error {
	n, err := jobOrchestrator.Drain(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to run jobs: %w", err)
	}
	cmd.Printf("Ran %d jobs\n", n)
	return nil
}

func runJobsWork(cmd *cobra.Command, _ []string) error {
	if jobOrchestrator == nil {
		return errors.New("job orchestrator not configured")
	}

	jobOrchestrator.OnCompleted(func(job domain.Job) {
		cmd.Println(successStyle.Render(fmt.Sprintf("done    %s %s", job.Kind, job.ID)))
	})
	jobOrchestrator.OnFailed(func(job domain.Job, err error, willRetry bool) {
		msg := fmt.Sprintf("failed  %s %s: %v", job.Kind, job.ID, err)
		if willRetry {
			msg += " (will retry)"
		}
		cmd.Println(errorStyle.Render(msg))
	})

	cmd.Println("Workers running. Press Ctrl+C to stop.")
	return runBackground(cmd, nil)
}

// runBackground runs the job workers and scheduler until the command's
// context is cancelled or fg returns. A nil fg waits for cancellation.
func runBackground(cmd *cobra.Command, fg func(ctx context.Context) error) error {
	g, ctx := errgroup.WithContext(cmd.Context())

	g.Go(func() error {
		return ignoreCanceled(jobOrchestrator.Start(ctx))
	})
	if scheduler != nil {
		g.Go(func() error {
			return ignoreCanceled(scheduler.Start(ctx))
		})
	}
	g.Go(func() error {
		var err error
		if fg != nil {
			err = fg(ctx)
		} else {
			<-ctx.Done()
		}
		jobOrchestrator.Stop() //nolint:errcheck // shutdown
		if scheduler != nil {
			scheduler.Stop() //nolint:errcheck // shutdown
		}
		return ignoreCanceled(err)
	})

	return g.Wait()
}

func runJobsTrigger(cmd *cobra.Command, args []string) error {
	if scheduler == nil {
		return errors.New("scheduler not configured")
	}

	taskID := args[0]
	if _, ok := domain.TaskJobKind(taskID); !ok {
		return fmt.Errorf("unknown task %q (expected one of: %s)", taskID,
			strings.Join([]string{domain.TaskIDCleanup, domain.TaskIDDuplicateScan, domain.TaskIDAutoMerge}, ", "))
	}

	result, err := scheduler.RunTask(cmd.Context(), taskID)
	if err != nil {
		return fmt.Errorf("failed to run task: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("task %s failed: %s", taskID, result.Error)
	}
	cmd.Printf("Queued job %s for task %s\n", result.JobID, taskID)
	return nil
}
