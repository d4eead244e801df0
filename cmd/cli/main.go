package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/maxton76/stall-bokning-sub014/internal/config"
	"github.com/maxton76/stall-bokning-sub014/pkg/core/services"
	"github.com/maxton76/stall-bokning-sub014/pkg/db"
	"github.com/maxton76/stall-bokning-sub014/pkg/holidays"
	"github.com/maxton76/stall-bokning-sub014/pkg/members"
	"github.com/maxton76/stall-bokning-sub014/pkg/postgres"
	"github.com/maxton76/stall-bokning-sub014/pkg/utils/logging"
)

// App holds the application dependencies
type App struct {
	cfg       *config.Config
	database  *postgres.DB
	holidays  holidays.Calendar
	directory members.Directory
	logger    *zap.Logger
	ctx       context.Context
}

var (
	env string
	app *App
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dutyengine",
		Short: "Stable duty engine - generate and assign recurring duties",
		Long:  `Materializes recurring duty definitions into concrete assignable instances with fairness-weighted rotation.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil {
				if app.logger != nil {
					app.logger.Sync()
				}
				if app.database != nil {
					app.database.Close()
				}
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.MarkPersistentFlagRequired("env")

	rootCmd.AddCommand(createDutyCmd())
	rootCmd.AddCommand(materializeCmd())
	rootCmd.AddCommand(advanceHorizonsCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(instanceCmd())
	rootCmd.AddCommand(addExceptionCmd())
	rootCmd.AddCommand(sweepMissedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp sets up logger, config, database, holiday calendar and directory
func initApp() error {
	var err error
	app = &App{
		ctx: context.Background(),
	}

	app.logger, err = logging.InitLogger(env, "logs")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.logger.Info("Starting duty engine", zap.String("environment", env))

	app.cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app.database, err = postgres.NewDB(app.ctx, app.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := app.database.RunMigrations(app.ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	app.logger.Debug("Database initialized successfully")

	if app.cfg.HolidayCalendarID != "" {
		app.holidays, err = holidays.NewGoogleCalendar(app.ctx, app.cfg.HolidayCalendarID, app.cfg.HolidayAPIKey)
		if err != nil {
			return fmt.Errorf("failed to create holiday calendar client: %w", err)
		}
		app.logger.Debug("Holiday calendar initialized", zap.String("calendar_id", app.cfg.HolidayCalendarID))
	} else {
		app.holidays = holidays.NewStaticCalendar()
		app.logger.Debug("No holiday calendar configured, all dates count as regular days")
	}

	app.directory = members.NewStoreDirectory(app.database)

	return nil
}

func (a *App) materializeOptions(horizonDays int) services.MaterializeOptions {
	return services.MaterializeOptions{
		HorizonDays:       horizonDays,
		BatchSize:         a.cfg.BatchSize,
		HolidayMultiplier: a.cfg.HolidayMultiplier,
		PlaceholderName:   a.cfg.MemberPlaceholder,
	}
}

func printResult(result *services.MaterializeResult) {
	fmt.Printf("\nMaterialization complete\n")
	fmt.Printf("  Created:   %d\n", result.InstancesCreated)
	fmt.Printf("  Cancelled: %d\n", result.InstancesCancelled)
	fmt.Printf("  Warnings:  %d\n", len(result.Warnings))
	for _, w := range result.Warnings {
		fmt.Printf("    - [%s] %s: %s\n", w.Code, w.Date, w.Message)
	}
	fmt.Println()
}

// Command definitions

func createDutyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "createDuty <definition.yaml>",
		Short: "Create a duty definition from a YAML file and materialize its horizon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read definition file: %w", err)
			}

			var def db.DutyDefinition
			if err := yaml.Unmarshal(data, &def); err != nil {
				return fmt.Errorf("failed to parse definition file: %w", err)
			}

			result, err := services.CreateDuty(app.ctx, app.database, app.holidays, app.directory, app.logger, &def, app.materializeOptions(0))
			if err != nil {
				return err
			}

			fmt.Printf("\nDuty definition created: %s\n", def.ID)
			printResult(result)
			return nil
		},
	}
}

func materializeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "materialize <definition_id>",
		Short: "Materialize instances for one duty definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			horizon, _ := cmd.Flags().GetInt("horizon")

			result, err := services.MaterializeDuty(app.ctx, app.database, app.holidays, app.directory, app.logger, args[0], app.materializeOptions(horizon))
			if err != nil {
				return err
			}

			printResult(result)
			return nil
		},
	}

	cmd.Flags().Int("horizon", 0, "Horizon in days (default: the definition's own horizon)")
	return cmd
}

func advanceHorizonsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "advanceHorizons",
		Short: "Extend materialization for all active definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			daemon, _ := cmd.Flags().GetBool("daemon")
			if daemon {
				return runDaemon()
			}

			result, err := services.AdvanceHorizons(app.ctx, app.database, app.holidays, app.directory, app.logger, app.materializeOptions(0))
			if err != nil {
				return err
			}

			fmt.Printf("\nHorizons advanced for %d definitions (created %d, cancelled %d, warnings %d)\n\n",
				result.DefinitionsProcessed, result.InstancesCreated, result.InstancesCancelled, len(result.Warnings))
			return nil
		},
	}

	cmd.Flags().Bool("daemon", false, "Keep running and advance horizons on the configured cron schedule")
	return cmd
}

// runDaemon advances horizons and sweeps missed instances on the configured
// cron schedules until interrupted
func runDaemon() error {
	c := cron.New()

	_, err := c.AddFunc(app.cfg.AdvanceCron, func() {
		if _, err := services.AdvanceHorizons(app.ctx, app.database, app.holidays, app.directory, app.logger, app.materializeOptions(0)); err != nil {
			app.logger.Error("Horizon advancement failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule horizon advancement: %w", err)
	}

	_, err = c.AddFunc(app.cfg.SweepCron, func() {
		if _, err := services.SweepMissed(app.ctx, app.database, app.logger, time.Now().UTC()); err != nil {
			app.logger.Error("Missed-instance sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule missed sweep: %w", err)
	}

	app.logger.Info("Daemon started",
		zap.String("advance_cron", app.cfg.AdvanceCron),
		zap.String("sweep_cron", app.cfg.SweepCron))
	c.Run()
	return nil
}

func scheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule <stable_id> <from> <to>",
		Short: "Show the effective schedule for a stable in a date range",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := services.EffectiveSchedule(app.ctx, app.database, app.logger, args[0], args[1], args[2])
			if err != nil {
				return err
			}

			fmt.Printf("\n%d duties scheduled:\n\n", len(entries))
			for _, e := range entries {
				assignee := e.AssigneeName
				if assignee == "" {
					assignee = "(unassigned)"
				}
				fmt.Printf("  %s %s  %-30s %-20s %s (%d%%)\n",
					e.Date, e.TimeOfDay, e.Title, assignee, e.Status, e.Progress)
			}
			fmt.Println()
			return nil
		},
	}
}

func instanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instance <instance_id> <start|complete|cancel|skip|progress|reassign>",
		Short: "Apply a lifecycle action, progress update or reassignment to an instance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			instanceID, action := args[0], args[1]

			switch action {
			case "progress":
				progress, _ := cmd.Flags().GetInt("progress")
				if err := services.UpdateProgress(app.ctx, app.database, app.logger, instanceID, progress); err != nil {
					return err
				}
				fmt.Printf("Progress set to %d%%\n", progress)
				return nil

			case "reassign":
				assignee, _ := cmd.Flags().GetString("assignee")
				if assignee == "" {
					return fmt.Errorf("reassign requires --assignee")
				}
				if err := services.ReassignInstance(app.ctx, app.database, app.directory, app.logger, instanceID, assignee); err != nil {
					return err
				}
				fmt.Printf("Instance %s reassigned to %s\n", instanceID, assignee)
				return nil

			default:
				if err := services.TransitionInstance(app.ctx, app.database, app.logger, instanceID, services.LifecycleAction(action)); err != nil {
					return err
				}
				fmt.Printf("Instance %s: %s applied\n", instanceID, action)
				return nil
			}
		},
	}

	cmd.Flags().Int("progress", 0, "Checklist completion percentage for the progress action")
	cmd.Flags().String("assignee", "", "Member id for the reassign action")
	return cmd
}

func addExceptionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "addException <definition_id> <date> <skip|modify|add>",
		Short: "Record a per-date exception and re-materialize the definition",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			title, _ := cmd.Flags().GetString("title")
			timeOfDay, _ := cmd.Flags().GetString("time")
			assignee, _ := cmd.Flags().GetString("assignee")

			exc := &db.DutyException{
				DefinitionID: args[0],
				Date:         args[1],
				Type:         db.ExceptionType(args[2]),
				Title:        title,
				TimeOfDay:    timeOfDay,
				AssigneeID:   assignee,
			}

			result, err := services.AddException(app.ctx, app.database, app.holidays, app.directory, app.logger, exc, app.materializeOptions(0))
			if err != nil {
				return err
			}

			printResult(result)
			return nil
		},
	}

	cmd.Flags().String("title", "", "Override title (modify/add)")
	cmd.Flags().String("time", "", "Override time of day, HH:MM (modify/add)")
	cmd.Flags().String("assignee", "", "Override assignee member id (modify/add)")
	return cmd
}

func sweepMissedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweepMissed",
		Short: "Reclassify overdue scheduled instances as missed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			missed, err := services.SweepMissed(app.ctx, app.database, app.logger, time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Printf("Marked %d instance(s) as missed\n", missed)
			return nil
		},
	}
}
