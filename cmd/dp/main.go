package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"dealplan/internal/app"
	"dealplan/internal/catalog"
	"dealplan/internal/config"
	"dealplan/internal/db"
	"dealplan/internal/domain"
	"dealplan/internal/engine"
	"dealplan/internal/engine/celrules"
	"dealplan/internal/export"
	"dealplan/internal/intake"
	"dealplan/internal/migrate"
	"dealplan/internal/repo"
	"dealplan/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "dp",
	Short: "Deal plan CLI",
	Long: `dp turns an M&A deal intake into a post-close execution plan.
Core concepts:
- Intake: the deal profile (structure, integration model, close date, jurisdictions, TSA).
- Catalog: the master list of finance integration task templates.
- Plan: one task per template, with N/A tasks justified, milestone dates and a priority.
- Risk alerts: raised from the intake; severity and status can be overridden with a reason.
- Workspace: the .dealplan directory holding the plan store (or a Postgres DSN).
- Event log: every generation and change, view with 'dp log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if viper.GetString("store-driver") == db.DriverPostgres {
			return nil
		}
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
	viper.SetEnvPrefix("DEALPLAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("store-driver", "", "store driver (sqlite or postgres; overrides config)")
	rootCmd.PersistentFlags().String("store-dsn", "", "store DSN (overrides config)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("store-driver", rootCmd.PersistentFlags().Lookup("store-driver"))
	_ = viper.BindPFlag("store-dsn", rootCmd.PersistentFlags().Lookup("store-dsn"))
}

func registerCommands() {
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(riskCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func generateCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "generate <intake.yml>",
		Short: "Generate a plan from an intake file",
		Long:  "Reads a YAML or JSON intake, builds the plan and stores it. Use --dry-run to print without storing.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := intake.Load(args[0])
			if err != nil {
				return err
			}
			if dryRun {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				eng, err := newEngine(cfg)
				if err != nil {
					return err
				}
				return printPlanSummary(eng.Generate(in))
			}
			return withService(cmd.Context(), func(ctx context.Context, svc app.Service) error {
				plan, err := svc.Generate(ctx, in, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printPlanSummary(plan)
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the plan without storing it")
	return cmd
}

func planCmd() *cobra.Command {
	p := &cobra.Command{Use: "plan", Short: "Inspect stored plans"}
	p.AddCommand(planListCmd())
	p.AddCommand(planShowCmd())
	p.AddCommand(planKPIsCmd())
	p.AddCommand(planCategoriesCmd())
	p.AddCommand(planDeleteCmd())
	return p
}

func planListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List plans, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc app.Service) error {
				items, err := svc.ListPlans(ctx, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Deal", "Created", "Updated"})
				for _, h := range items {
					tw.AppendRow(table.Row{h.ID, h.Name, h.CreatedAt, h.UpdatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "max plans")
	return cmd
}

func planShowCmd() *cobra.Command {
	var status, category, phase string
	var active bool
	cmd := &cobra.Command{
		Use:   "show <plan-id>",
		Short: "Show the tasks of a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc app.Service) error {
				plan, err := svc.GetPlan(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(plan)
				}
				fmt.Printf("Plan %s: %s (generated %s)\n", plan.ID, plan.Intake.DealName, plan.GeneratedAt)
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Item", "Category", "Phase", "Priority", "Status", "Due", "Owner"})
				for _, t := range plan.Tasks {
					if status != "" && string(t.Status) != status {
						continue
					}
					if category != "" && t.Category != category {
						continue
					}
					if phase != "" && string(t.Phase) != phase {
						continue
					}
					if active && t.Status == domain.StatusNotApplicable {
						continue
					}
					tw.AppendRow(table.Row{t.ItemID, t.Category, domain.PhaseLabels[t.Phase], t.Priority, t.Status, deref(t.MilestoneDate), deref(t.OwnerID)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().StringVar(&category, "category", "", "category filter")
	cmd.Flags().StringVar(&phase, "phase", "", "phase filter")
	cmd.Flags().BoolVar(&active, "active", false, "hide not-applicable tasks")
	return cmd
}

func planKPIsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kpis <plan-id>",
		Short: "Show plan KPIs and traffic light",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc app.Service) error {
				h, err := svc.Health(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(h)
				}
				k := h.KPIs
				fmt.Printf("Health: %s\n", strings.ToUpper(string(h.RAG)))
				fmt.Printf("Complete: %d/%d (%d%%)\n", k.Complete, k.Total, k.PctComplete)
				fmt.Printf("In progress: %d  Blocked: %d  Not started: %d\n", k.InProgress, k.Blocked, k.NotStarted)
				fmt.Printf("Open risks: %d (critical %d)\n", h.OpenRisks, h.CriticalRisks)
				return nil
			})
		},
	}
	return cmd
}

func planCategoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories <plan-id>",
		Short: "Show per-category progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc app.Service) error {
				items, err := svc.Categories(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Category", "Total", "Complete", "In Progress", "Blocked", "Not Started", "RAG"})
				for _, c := range items {
					tw.AppendRow(table.Row{c.Name, c.Total, c.Complete, c.InProgress, c.Blocked, c.NotStarted, c.RAG})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func planDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <plan-id>",
		Short: "Delete a plan and its events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc app.Service) error {
				if err := svc.DeletePlan(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("deleted %s\n", args[0])
				return nil
			})
		},
	}
	return cmd
}

func taskCmd() *cobra.Command {
	t := &cobra.Command{
		Use:   "task",
		Short: "Update plan tasks",
		Long:  "Tasks are addressed by instance id or catalog item id (e.g. FRC-0001).",
	}
	t.AddCommand(taskStatusCmd())
	t.AddCommand(taskAssignCmd())
	t.AddCommand(taskNoteCmd())
	return t
}

func taskStatusCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "status <plan-id> <task> <status>",
		Short: "Set task status (not_started, in_progress, blocked, complete, na)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc app.Service) error {
				t, err := svc.SetTaskStatus(ctx, args[0], args[1], domain.TaskStatus(args[2]), reason, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "blocked reason (required for blocked)")
	return cmd
}

func taskAssignCmd() *cobra.Command {
	var clearOwner bool
	cmd := &cobra.Command{
		Use:   "assign <plan-id> <task> [owner]",
		Short: "Assign or clear a task owner",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner := ""
			if len(args) == 3 {
				owner = args[2]
			}
			if owner == "" && !clearOwner {
				return fmt.Errorf("owner required (or --clear)")
			}
			return withService(cmd.Context(), func(ctx context.Context, svc app.Service) error {
				t, err := svc.AssignOwner(ctx, args[0], args[1], owner, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().BoolVar(&clearOwner, "clear", false, "remove the current owner")
	return cmd
}

func taskNoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "note <plan-id> <task> <text>",
		Short: "Append a note to a task",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc app.Service) error {
				t, err := svc.AddNote(ctx, args[0], args[1], args[2], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func riskCmd() *cobra.Command {
	r := &cobra.Command{
		Use:   "risk",
		Short: "Inspect and override risk alerts",
		Long:  "Alerts are addressed by id or category. Every change needs a reason and is kept on the alert.",
	}
	r.AddCommand(riskListCmd())
	r.AddCommand(riskTransitionCmd())
	r.AddCommand(riskOverrideCmd())
	return r
}

func riskListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <plan-id>",
		Short: "List risk alerts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc app.Service) error {
				plan, err := svc.GetPlan(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(plan.RiskAlerts)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Risk", "Category", "Severity", "Status", "Overrides", "Description"})
				for i, a := range plan.RiskAlerts {
					tw.AppendRow(table.Row{export.RiskID(i + 1), domain.RiskLabels[a.Category], a.Severity, a.Status, len(a.Overrides), a.Description})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func riskTransitionCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "transition <plan-id> <risk> <status>",
		Short: "Move an alert to open, acknowledged, mitigated or closed",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc app.Service) error {
				a, err := svc.TransitionRisk(ctx, args[0], args[1], domain.RiskStatus(args[2]), reason, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the status changes")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func riskOverrideCmd() *cobra.Command {
	var severity, reason string
	cmd := &cobra.Command{
		Use:   "override <plan-id> <risk>",
		Short: "Override the severity of an alert",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc app.Service) error {
				a, err := svc.OverrideRisk(ctx, app.RiskOverrideOptions{
					PlanID:  args[0],
					RiskID:  args[1],
					Field:   app.FieldSeverity,
					Value:   severity,
					Reason:  reason,
					ActorID: viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&severity, "severity", "", "new severity (critical, high, medium, low)")
	cmd.Flags().StringVar(&reason, "reason", "", "why the severity changes")
	_ = cmd.MarkFlagRequired("severity")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func exportCmd() *cobra.Command {
	var kind, dir string
	cmd := &cobra.Command{
		Use:   "export <plan-id>",
		Short: "Export plan sheets as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var kinds []export.Kind
			if kind != "all" {
				k, err := export.ParseKind(kind)
				if err != nil {
					return err
				}
				kinds = append(kinds, k)
			}
			return withService(cmd.Context(), func(ctx context.Context, svc app.Service) error {
				plan, err := svc.GetPlan(ctx, args[0])
				if err != nil {
					return err
				}
				out := dir
				if out == "" {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					out = cfg.Export.Dir
				}
				paths, err := export.WriteFiles(out, plan, kinds...)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"files": paths})
				}
				for _, p := range paths {
					fmt.Println(p)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "all", "checklist, risks, summary or all")
	cmd.Flags().StringVar(&dir, "dir", "", "output directory (defaults to export.dir from config)")
	return cmd
}

func catalogCmd() *cobra.Command {
	c := &cobra.Command{Use: "catalog", Short: "Inspect the task template catalog"}
	c.AddCommand(catalogListCmd())
	c.AddCommand(catalogCheckCmd())
	return c
}

func catalogListCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List task templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			items := []domain.TaskTemplate{}
			for _, t := range catalog.Master().Templates() {
				if category != "" && t.Category != category {
					continue
				}
				items = append(items, t)
			}
			if viper.GetBool("json") {
				return printJSON(items)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Item", "Category", "Phase", "Priority", "TSA", "Cross-Border", "Description"})
			for _, t := range items {
				tw.AppendRow(table.Row{t.ItemID, t.Category, domain.PhaseLabels[t.Phase], t.Priority, t.TSARelevant, t.CrossBorderOnly, t.Description})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "category filter")
	return cmd
}

func catalogCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report prerequisites that name no template",
		RunE: func(cmd *cobra.Command, args []string) error {
			dangling := catalog.Master().DanglingDependencies()
			if viper.GetBool("json") {
				return printJSON(map[string]any{"templates": catalog.Master().Len(), "dangling": dangling})
			}
			fmt.Printf("%d templates, %d dangling prerequisites\n", catalog.Master().Len(), len(dangling))
			for _, d := range dangling {
				fmt.Printf("  %s -> %s\n", d.ItemID, d.Dependency)
			}
			return nil
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "dealplan.yml in the workspace sets the store, server, logging, export directory and custom CEL risk rules.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	cfg.AddCommand(configInitCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate config and compile custom risk rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err == nil {
				_, err = celrules.Compile(cfg.Risks.Custom)
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default dealplan.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "Every plan generation, task update and risk change, newest first.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var f repo.EventFilters
	var follow bool
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc app.Service) error {
				events, err := svc.LatestEvents(ctx, f)
				if err != nil {
					return err
				}
				if follow {
					var cursor int64
					if len(events) > 0 {
						cursor = events[0].ID
					}
					// oldest first, then keep polling
					for i := len(events) - 1; i >= 0; i-- {
						printEvent(events[i])
					}
					ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
					defer stop()
					return svc.Follow(ctx, f.PlanID, cursor, interval, func(e domain.Event) error {
						printEvent(e)
						return nil
					})
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Time", "Type", "Plan", "Entity", "Actor"})
				for _, e := range events {
					tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.PlanID, e.EntityKind + ":" + e.EntityID, e.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing new events")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "poll interval with --follow")
	cmd.Flags().IntVar(&f.Limit, "n", 20, "number of events")
	cmd.Flags().StringVar(&f.PlanID, "plan", "", "plan filter")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("addr") {
				addr = cfg.Server.Addr
			}
			if !cmd.Flags().Changed("base-path") && cfg.Server.BasePath != "" {
				basePath = cfg.Server.BasePath
			}
			return withService(cmd.Context(), func(ctx context.Context, svc app.Service) error {
				handler, err := server.New(server.Config{Service: svc, BasePath: basePath, Log: svc.Log})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				svc.Log.Info("serving", "addr", addr, "base_path", basePath)
				fmt.Printf("Serving deal plan API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func loadConfig() (*config.Config, error) {
	return config.LoadOptional(viper.GetString("workspace"))
}

func newEngine(cfg *config.Config) (engine.Engine, error) {
	eng := engine.New()
	rules, err := celrules.Compile(cfg.Risks.Custom)
	if err != nil {
		return eng, err
	}
	eng.Extra = rules
	return eng, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// storeConfig applies flag and env overrides on top of the config file.
func storeConfig(cfg *config.Config) db.Config {
	out := db.Config{
		Workspace: viper.GetString("workspace"),
		Driver:    cfg.Store.Driver,
		DSN:       cfg.Store.DSN,
	}
	if v := viper.GetString("store-driver"); v != "" {
		out.Driver = v
	}
	if v := viper.GetString("store-dsn"); v != "" {
		out.DSN = v
	}
	if out.Driver == "" {
		out.Driver = db.DriverSQLite
	}
	return out
}

func withService(ctx context.Context, fn func(context.Context, app.Service) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store := storeConfig(cfg)
	conn, err := db.Open(store)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn, store.Driver); err != nil {
		return err
	}
	eng, err := newEngine(cfg)
	if err != nil {
		return err
	}
	return fn(ctx, app.New(conn, store.Driver, eng, newLogger(cfg)))
}

func printPlanSummary(p domain.Plan) error {
	if viper.GetBool("json") {
		return printJSON(p)
	}
	health := app.HealthOf(p)
	fmt.Printf("Plan %s: %s\n", p.ID, p.Intake.DealName)
	fmt.Printf("Structure: %s, %s\n", domain.StructureLabels[p.Intake.DealStructure], domain.IntegrationLabels[p.Intake.IntegrationModel])
	fmt.Printf("Tasks: %d applicable of %d, health %s\n", health.KPIs.Total, len(p.Tasks), strings.ToUpper(string(health.RAG)))

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Category", "Items", "Active", "Phase", "Priority"})
	for _, s := range p.CategorySummaries {
		tw.AppendRow(table.Row{s.Name, s.TotalItems, s.ActiveItems, s.Phase, s.Priority})
	}
	tw.Render()

	if len(p.Milestones) > 0 {
		fmt.Println("Milestones:")
		for _, m := range p.Milestones {
			fmt.Printf("  %-20s %s\n", m.Label, m.Date)
		}
	}
	if len(p.RiskAlerts) > 0 {
		fmt.Println("Risks:")
		for _, a := range p.RiskAlerts {
			fmt.Printf("  [%s] %s\n", a.Severity, domain.RiskLabels[a.Category])
		}
	}
	return nil
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

func printEvent(e domain.Event) {
	if viper.GetBool("json") {
		b, _ := json.Marshal(e)
		fmt.Println(string(b))
		return
	}
	fmt.Printf("%d %s %-18s %s %s:%s %s\n", e.ID, e.TS, e.Type, e.PlanID, e.EntityKind, e.EntityID, e.ActorID)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
