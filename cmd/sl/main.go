package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"siteline/internal/app"
	"siteline/internal/config"
	"siteline/internal/db"
	"siteline/internal/domain"
	"siteline/internal/engine"
	"siteline/internal/migrate"
	"siteline/internal/repo"
	"siteline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "sl",
	Short: "Siteline CLI",
	Long: `Siteline schedules workers and equipment across construction projects.
Core concepts:
- Workspace: the .siteline directory holding the database; siteline.yml holds config.
- Project: a construction project broken into main tasks and subtasks.
- Availability: a worker or machine declares one free window per calendar date;
  assignments carve windows into fragments, removals merge them back.
- Assignments: a worker (or machine) booked to a subtask for a half-open time
  range. Double-booking and out-of-window requests are rejected as conflicts.
- Maintenance: blocks equipment for a range; equipment status (available,
  in_use, under_maintenance, decommissioned) is resolved live, never cached.
- Progress: completion percentages roll up from subtask statuses; view with
  'sl progress'. The event log is the diary of changes ('sl log tail').`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("SITELINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("project", "", "project id (overrides config default)")
	rootCmd.PersistentFlags().Bool("force", false, "skip overwrite checks")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("force", rootCmd.PersistentFlags().Lookup("force"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("project", rootCmd.PersistentFlags().Lookup("project"))
}

func registerCommands() {
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(subtaskCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(equipmentCmd())
	rootCmd.AddCommand(availCmd())
	rootCmd.AddCommand(assignCmd())
	rootCmd.AddCommand(progressCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectUseCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var id, name, desc, plannedStart, plannedEnd string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreateProject(ctx, domain.Project{
					ID:           id,
					Name:         name,
					Description:  desc,
					PlannedStart: plannedStart,
					PlannedEnd:   plannedEnd,
				}, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "project id (generated when empty)")
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&plannedStart, "planned-start", "", "planned start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&plannedEnd, "planned-end", "", "planned end date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func projectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListProjects(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Status", "Planned End"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Name, p.Status, p.PlannedEnd})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func projectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.Repo.GetProject(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
}

func projectUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <id>",
		Short: "Set current project for this workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := strings.TrimSpace(args[0])
			if projectID == "" {
				return fmt.Errorf("project id is required")
			}
			workspace := viper.GetString("workspace")
			if err := setEnvValue(filepath.Join(workspace, ".env"), "SITELINE_DEFAULT_PROJECT", projectID); err != nil {
				return err
			}
			fmt.Printf("Set SITELINE_DEFAULT_PROJECT=%s in %s/.env\n", projectID, workspace)
			return nil
		},
	}
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage main tasks",
		Long:  "Main tasks are the big phases of a project (foundations, framing, roofing). Their completion is the mean of their subtasks; with no subtasks the task's own status counts.",
	}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskStatusCmd())
	return task
}

func taskCreateCmd() *cobra.Command {
	var name, plannedStart, plannedEnd string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a main task",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateMainTask(ctx, domain.MainTask{
					ProjectID:    e.Config.Project.ID,
					Name:         name,
					PlannedStart: plannedStart,
					PlannedEnd:   plannedEnd,
				}, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "task name")
	cmd.Flags().StringVar(&plannedStart, "planned-start", "", "planned start date")
	cmd.Flags().StringVar(&plannedEnd, "planned-end", "", "planned end date")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func taskListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List main tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListMainTasks(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Status", "Planned End"})
				for _, t := range items {
					tw.AppendRow(table.Row{t.ID, t.Name, t.Status, t.PlannedEnd})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func taskStatusCmd() *cobra.Command {
	var id, status string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Update main task status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" || status == "" {
				return fmt.Errorf("--id and --status required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.SetMainTaskStatus(ctx, id, status, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "main task id")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	return cmd
}

func subtaskCmd() *cobra.Command {
	sub := &cobra.Command{Use: "subtask", Short: "Manage subtasks"}
	sub.AddCommand(subtaskCreateCmd())
	sub.AddCommand(subtaskListCmd())
	sub.AddCommand(subtaskStatusCmd())
	return sub
}

func subtaskCreateCmd() *cobra.Command {
	var taskID, name, plannedStart, plannedEnd string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a subtask",
		RunE: func(cmd *cobra.Command, args []string) error {
			if taskID == "" || name == "" {
				return fmt.Errorf("--task and --name required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.CreateSubtask(ctx, domain.Subtask{
					MainTaskID:   taskID,
					Name:         name,
					PlannedStart: plannedStart,
					PlannedEnd:   plannedEnd,
				}, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&taskID, "task", "", "main task id")
	cmd.Flags().StringVar(&name, "name", "", "subtask name")
	cmd.Flags().StringVar(&plannedStart, "planned-start", "", "planned start date")
	cmd.Flags().StringVar(&plannedEnd, "planned-end", "", "planned end date")
	return cmd
}

func subtaskListCmd() *cobra.Command {
	var taskID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List subtasks of a main task",
		RunE: func(cmd *cobra.Command, args []string) error {
			if taskID == "" {
				return fmt.Errorf("--task required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListSubtasks(ctx, taskID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Status", "Planned End"})
				for _, s := range items {
					tw.AppendRow(table.Row{s.ID, s.Name, s.Status, s.PlannedEnd})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&taskID, "task", "", "main task id")
	return cmd
}

func subtaskStatusCmd() *cobra.Command {
	var id, status string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Update subtask status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" || status == "" {
				return fmt.Errorf("--id and --status required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.SetSubtaskStatus(ctx, id, status, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "subtask id")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	return cmd
}

func workerCmd() *cobra.Command {
	w := &cobra.Command{Use: "worker", Short: "Manage workers"}
	w.AddCommand(workerCreateCmd())
	w.AddCommand(workerListCmd())
	w.AddCommand(workerShowCmd())
	w.AddCommand(workerSkillsCmd())
	w.AddCommand(workerInboxCmd())
	return w
}

func workerCreateCmd() *cobra.Command {
	var name, trade string
	var skills []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				w, err := e.CreateWorker(ctx, domain.Worker{Name: name, Trade: trade, Skills: skills}, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "worker name")
	cmd.Flags().StringVar(&trade, "trade", "", "trade (e.g. electrician)")
	cmd.Flags().StringSliceVar(&skills, "skill", nil, "skill (repeatable)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func workerListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListWorkers(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Trade", "Status", "Skills"})
				for _, w := range items {
					tw.AppendRow(table.Row{w.ID, w.Name, w.Trade, w.Status, strings.Join(w.Skills, ", ")})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func workerShowCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a worker with assignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				w, err := r.GetWorker(ctx, id)
				if err != nil {
					return err
				}
				assigns, err := r.ListWorkerAssignments(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"worker": w, "assignments": assigns})
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "worker id")
	return cmd
}

func workerSkillsCmd() *cobra.Command {
	var id string
	var skills []string
	cmd := &cobra.Command{
		Use:   "skills",
		Short: "Replace a worker's skills",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				w, err := e.SetWorkerSkills(ctx, id, skills, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "worker id")
	cmd.Flags().StringSliceVar(&skills, "skill", nil, "skill (repeatable)")
	return cmd
}

func workerInboxCmd() *cobra.Command {
	var id string
	var unreadOnly bool
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List a worker's notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListNotifications(ctx, id, unreadOnly)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "worker id")
	cmd.Flags().BoolVar(&unreadOnly, "unread", false, "only unread notifications")
	return cmd
}

func equipmentCmd() *cobra.Command {
	eq := &cobra.Command{Use: "equipment", Short: "Manage equipment"}
	eq.AddCommand(equipmentCreateCmd())
	eq.AddCommand(equipmentListCmd())
	eq.AddCommand(equipmentStatusCmd())
	eq.AddCommand(equipmentMaintainCmd())
	eq.AddCommand(equipmentCancelMaintCmd())
	eq.AddCommand(equipmentDecommissionCmd())
	return eq
}

func equipmentCreateCmd() *cobra.Command {
	var name, category string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create equipment",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				eq, err := e.CreateEquipment(ctx, domain.Equipment{Name: name, Category: category}, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(eq)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "equipment name")
	cmd.Flags().StringVar(&category, "category", "", "category (crane, excavator, ...)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func equipmentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List equipment with resolved status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListEquipment(ctx)
				if err != nil {
					return err
				}
				type row struct {
					domain.Equipment
					Resolved string `json:"resolved_status"`
				}
				rows := make([]row, 0, len(items))
				for _, eq := range items {
					status, err := e.EquipmentStatus(ctx, eq.ID)
					if err != nil {
						return err
					}
					rows = append(rows, row{Equipment: eq, Resolved: status})
				}
				if viper.GetBool("json") {
					return printJSON(rows)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Category", "Status"})
				for _, r := range rows {
					tw.AppendRow(table.Row{r.ID, r.Name, r.Category, r.Resolved})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func equipmentStatusCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Resolved status of one piece of equipment",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				status, err := e.EquipmentStatus(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]string{"equipment_id": id, "status": status})
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "equipment id")
	return cmd
}

func equipmentMaintainCmd() *cobra.Command {
	var id, from, to string
	cmd := &cobra.Command{
		Use:   "maintain",
		Short: "Schedule a maintenance window",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" || from == "" || to == "" {
				return fmt.Errorf("--id, --from and --to required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				slot, err := e.ScheduleMaintenance(ctx, id, from, to, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(slot)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "equipment id")
	cmd.Flags().StringVar(&from, "from", "", "start (RFC3339)")
	cmd.Flags().StringVar(&to, "to", "", "end (RFC3339)")
	return cmd
}

func equipmentCancelMaintCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "cancel-maintenance",
		Short: "Cancel a scheduled maintenance window",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.CancelMaintenance(ctx, id, viper.GetString("actor-id"))
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "maintenance slot id")
	return cmd
}

func equipmentDecommissionCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "decommission",
		Short: "Decommission equipment (terminal)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				eq, err := e.SetEquipmentBaselineStatus(ctx, id, domain.EquipmentDecommissioned, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(eq)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "equipment id")
	return cmd
}

func availCmd() *cobra.Command {
	avail := &cobra.Command{
		Use:   "avail",
		Short: "Manage availability windows",
	}
	avail.AddCommand(availDeclareCmd())
	avail.AddCommand(availListCmd())
	avail.AddCommand(availRemoveCmd())
	return avail
}

func availDeclareCmd() *cobra.Command {
	var kind, subject, day, from, to string
	cmd := &cobra.Command{
		Use:   "declare",
		Short: "Declare a free window for one date",
		RunE: func(cmd *cobra.Command, args []string) error {
			if subject == "" || day == "" || from == "" || to == "" {
				return fmt.Errorf("--subject, --day, --from and --to required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				w, err := e.DeclareAvailability(ctx, kind, subject, day, from, to, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", domain.SubjectWorker, "subject kind (worker or equipment)")
	cmd.Flags().StringVar(&subject, "subject", "", "worker or equipment id")
	cmd.Flags().StringVar(&day, "day", "", "date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&from, "from", "", "start time (HH:MM)")
	cmd.Flags().StringVar(&to, "to", "", "end time (HH:MM)")
	return cmd
}

func availListCmd() *cobra.Command {
	var kind, subject string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List windows for a subject",
		RunE: func(cmd *cobra.Command, args []string) error {
			if subject == "" {
				return fmt.Errorf("--subject required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListAvailabilityWindows(ctx, kind, subject)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Day", "From", "To"})
				for _, w := range items {
					tw.AppendRow(table.Row{w.ID, w.Day, w.StartTime, w.EndTime})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", domain.SubjectWorker, "subject kind")
	cmd.Flags().StringVar(&subject, "subject", "", "worker or equipment id")
	return cmd
}

func availRemoveCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a window",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.RemoveAvailability(ctx, id, viper.GetString("actor-id"))
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "window id")
	return cmd
}

func assignCmd() *cobra.Command {
	assign := &cobra.Command{
		Use:   "assign",
		Short: "Manage assignments",
		Long:  "Book a worker or a piece of equipment to a subtask for a half-open time range. Worker bookings must fit one availability window; removals give the time back.",
	}
	assign.AddCommand(assignWorkerCmd())
	assign.AddCommand(assignEquipmentCmd())
	assign.AddCommand(assignRemoveCmd())
	assign.AddCommand(assignStatusCmd())
	return assign
}

func assignWorkerCmd() *cobra.Command {
	var workerID, subtaskID, from, to string
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Assign a worker to a subtask",
		RunE: func(cmd *cobra.Command, args []string) error {
			if workerID == "" || subtaskID == "" || from == "" || to == "" {
				return fmt.Errorf("--worker, --subtask, --from and --to required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.AssignWorker(ctx, engine.AssignWorkerOptions{
					WorkerID:  workerID,
					SubtaskID: subtaskID,
					StartsAt:  from,
					EndsAt:    to,
					ActorID:   viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&workerID, "worker", "", "worker id")
	cmd.Flags().StringVar(&subtaskID, "subtask", "", "subtask id")
	cmd.Flags().StringVar(&from, "from", "", "start (RFC3339)")
	cmd.Flags().StringVar(&to, "to", "", "end (RFC3339)")
	return cmd
}

func assignEquipmentCmd() *cobra.Command {
	var equipmentID, subtaskID, from, to string
	cmd := &cobra.Command{
		Use:   "equipment",
		Short: "Assign equipment to a subtask",
		RunE: func(cmd *cobra.Command, args []string) error {
			if equipmentID == "" || subtaskID == "" || from == "" || to == "" {
				return fmt.Errorf("--equipment, --subtask, --from and --to required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.AssignEquipment(ctx, engine.AssignEquipmentOptions{
					EquipmentID: equipmentID,
					SubtaskID:   subtaskID,
					StartsAt:    from,
					EndsAt:      to,
					ActorID:     viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&equipmentID, "equipment", "", "equipment id")
	cmd.Flags().StringVar(&subtaskID, "subtask", "", "subtask id")
	cmd.Flags().StringVar(&from, "from", "", "start (RFC3339)")
	cmd.Flags().StringVar(&to, "to", "", "end (RFC3339)")
	return cmd
}

func assignRemoveCmd() *cobra.Command {
	var id string
	var equipment bool
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove an assignment and free its range",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if equipment {
					return e.RemoveEquipmentAssignment(ctx, id, viper.GetString("actor-id"))
				}
				return e.RemoveWorkerAssignment(ctx, id, viper.GetString("actor-id"))
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "assignment id")
	cmd.Flags().BoolVar(&equipment, "equipment", false, "id is an equipment assignment")
	return cmd
}

func assignStatusCmd() *cobra.Command {
	var id, status string
	var equipment bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Update assignment status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" || status == "" {
				return fmt.Errorf("--id and --status required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if equipment {
					a, err := e.SetEquipmentAssignmentStatus(ctx, id, status, viper.GetString("actor-id"))
					if err != nil {
						return err
					}
					return printJSONOrTable(a)
				}
				a, err := e.SetAssignmentStatus(ctx, id, status, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "assignment id")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().BoolVar(&equipment, "equipment", false, "id is an equipment assignment")
	return cmd
}

func progressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "progress",
		Short: "Project completion rollup",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.ProjectProgress(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(p)
				}
				overdue := ""
				if p.Overdue {
					overdue = " (overdue)"
				}
				fmt.Printf("Project %s: %.2f%%%s\n", p.ProjectID, p.Completion, overdue)
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Main Task", "Status", "Completion", "Overdue"})
				for _, mt := range p.MainTasks {
					tw.AppendRow(table.Row{mt.MainTaskID, mt.Status, fmt.Sprintf("%.2f%%", mt.Completion), mt.Overdue})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Workspace configuration"}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configCheckCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default siteline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project-id required")
			}
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !viper.GetBool("force") {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(projectID)), 0o644); err != nil {
				return err
			}
			fmt.Println("Wrote", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&projectID, "project-id", "", "project id to seed")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
}

func configCheckCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := file
			if path == "" {
				path = config.Path(viper.GetString("workspace"))
			}
			if _, err := config.FromFile(path); err != nil {
				return err
			}
			fmt.Println(path, "is valid")
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "config file (defaults to workspace siteline.yml)")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, e.Config.Project.ID, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var dev bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			_, cfg, err := app.ResolveProjectAndConfig(cmd.Context(), workspace, viper.GetString("project"), viper.GetString("actor-id"), r)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{
				JWTSecret:              os.Getenv("SITELINE_JWT_SECRET"),
				AllowLegacyActorHeader: dev,
			}
			if authCfg.JWTSecret == "" && !dev {
				return fmt.Errorf("SITELINE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Siteline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&dev, "dev", false, "allow X-Actor-Id header and dev login")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	_, cfg, err := app.ResolveProjectAndConfig(ctx, workspace, viper.GetString("project"), viper.GetString("actor-id"), r)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setEnvValue(path, key, value string) error {
	var lines []string
	seen := false
	f, err := os.Open(path)
	if err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, key+"=") {
				lines = append(lines, fmt.Sprintf("%s=%s", key, value))
				seen = true
			} else {
				lines = append(lines, line)
			}
		}
		if err := scanner.Err(); err != nil {
			f.Close()
			return err
		}
		f.Close()
	} else if !os.IsNotExist(err) {
		return err
	}
	if !seen {
		lines = append(lines, fmt.Sprintf("%s=%s", key, value))
	}
	content := strings.Join(lines, "\n")
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
