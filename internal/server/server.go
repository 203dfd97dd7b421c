package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"dealplan/internal/app"
	"dealplan/internal/catalog"
	"dealplan/internal/domain"
	"dealplan/internal/export"
	"dealplan/internal/intake"
	"dealplan/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Service  app.Service
	BasePath string
	Log      *slog.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"validation_failed"`
	Message string         `json:"message" example:"reason: an override reason is required"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"field\":\"reason\"}"`
}

type actorKey struct{}

// apiError models the required error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// ActorHeader names the caller recorded in the audit trail.
const ActorHeader = "X-Actor-Id"

// New returns an HTTP handler exposing the deal plan API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the requested envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	h := handlers{svc: cfg.Service, log: log}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(log))
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), actorKey{}, strings.TrimSpace(r.Header.Get(ActorHeader)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	hcfg := huma.DefaultConfig("Deal Plan API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	h.registerPlans(group)
	h.registerTasks(group)
	h.registerRisks(group)
	h.registerViews(group)
	h.registerExport(group)
	h.registerEvents(group)
	registerCatalog(group)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(), "duration", time.Since(start))
		})
	}
}

func actorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok {
		return v
	}
	return ""
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

type handlers struct {
	svc app.Service
	log *slog.Logger
}

func (h handlers) handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ve *app.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", err.Error(), map[string]any{"field": ve.Field})
	}
	var fe *intake.FieldError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", err.Error(), map[string]any{"field": fe.Field})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	h.log.Error("request failed", "error", err)
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		spec []byte
	)
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			spec, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Deal Plan API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Send X-Actor-Id to attribute changes in the audit trail.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

type planPath struct {
	PlanID string `path:"plan_id"`
}

func (h handlers) registerPlans(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "generate-plan",
		Method:        http.MethodPost,
		Path:          "/plans",
		Summary:       "Generate and store a plan from a deal intake",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body GeneratePlanRequest
	}) (*struct {
		Body domain.Plan `json:"body"`
	}, error) {
		raw, err := json.Marshal(input.Body)
		if err != nil {
			return nil, h.handleError(err)
		}
		in, err := intake.Decode(raw)
		if err != nil {
			return nil, h.handleError(err)
		}
		plan, err := h.svc.Generate(ctx, in, actorFromContext(ctx))
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body domain.Plan `json:"body"`
		}{Body: plan}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-plans",
		Method:      http.MethodGet,
		Path:        "/plans",
		Summary:     "List stored plans, newest first",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"50"`
	}) (*struct {
		Body planList `json:"body"`
	}, error) {
		items, err := h.svc.ListPlans(ctx, normalizeLimit(input.Limit))
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body planList `json:"body"`
		}{Body: planList{Items: nonNilSlice(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-plan",
		Method:      http.MethodGet,
		Path:        "/plans/{plan_id}",
		Summary:     "Get a stored plan",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *planPath) (*struct {
		Body domain.Plan `json:"body"`
	}, error) {
		plan, err := h.svc.GetPlan(ctx, input.PlanID)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body domain.Plan `json:"body"`
		}{Body: plan}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-plan",
		Method:        http.MethodDelete,
		Path:          "/plans/{plan_id}",
		Summary:       "Delete a stored plan",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *planPath) (*struct{}, error) {
		if err := h.svc.DeletePlan(ctx, input.PlanID); err != nil {
			return nil, h.handleError(err)
		}
		return &struct{}{}, nil
	})
}

func (h handlers) registerTasks(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/plans/{plan_id}/tasks",
		Summary:     "List task instances of a plan",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlanID   string `path:"plan_id"`
		Status   string `query:"status" enum:"not_started,in_progress,blocked,complete,na"`
		Category string `query:"category"`
		Phase    string `query:"phase" enum:"pre_close,day_1,day_30,day_60,day_90,year_1"`
		Active   bool   `query:"active"`
	}) (*struct {
		Body taskList `json:"body"`
	}, error) {
		plan, err := h.svc.GetPlan(ctx, input.PlanID)
		if err != nil {
			return nil, h.handleError(err)
		}
		items := []domain.TaskInstance{}
		for _, t := range plan.Tasks {
			if input.Status != "" && string(t.Status) != input.Status {
				continue
			}
			if input.Category != "" && t.Category != input.Category {
				continue
			}
			if input.Phase != "" && string(t.Phase) != input.Phase {
				continue
			}
			if input.Active && t.Status == domain.StatusNotApplicable {
				continue
			}
			items = append(items, t)
		}
		return &struct {
			Body taskList `json:"body"`
		}{Body: taskList{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/plans/{plan_id}/tasks/{task_id}",
		Summary:     "Update status, owner or notes of a task instance",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		PlanID string `path:"plan_id"`
		TaskID string `path:"task_id"`
		Body   UpdateTaskRequest
	}) (*struct {
		Body domain.TaskInstance `json:"body"`
	}, error) {
		opts := app.TaskUpdateOptions{
			PlanID:  input.PlanID,
			TaskID:  input.TaskID,
			Assign:  input.Body.OwnerID,
			ActorID: actorFromContext(ctx),
		}
		if input.Body.Status != nil {
			opts.Status = domain.TaskStatus(*input.Body.Status)
		}
		if input.Body.BlockedReason != nil {
			opts.BlockedReason = *input.Body.BlockedReason
		}
		if input.Body.AddNote != nil {
			opts.AddNote = *input.Body.AddNote
		}
		task, err := h.svc.UpdateTask(ctx, opts)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body domain.TaskInstance `json:"body"`
		}{Body: task}, nil
	})
}

func (h handlers) registerRisks(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-risks",
		Method:      http.MethodGet,
		Path:        "/plans/{plan_id}/risks",
		Summary:     "List risk alerts of a plan",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *planPath) (*struct {
		Body riskList `json:"body"`
	}, error) {
		plan, err := h.svc.GetPlan(ctx, input.PlanID)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body riskList `json:"body"`
		}{Body: riskList{Items: nonNilSlice(plan.RiskAlerts)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "override-risk",
		Method:      http.MethodPost,
		Path:        "/plans/{plan_id}/risks/{risk_id}/overrides",
		Summary:     "Override the severity or status of a risk alert",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		PlanID string `path:"plan_id"`
		RiskID string `path:"risk_id"`
		Body   OverrideRiskRequest
	}) (*struct {
		Body domain.RiskAlert `json:"body"`
	}, error) {
		alert, err := h.svc.OverrideRisk(ctx, app.RiskOverrideOptions{
			PlanID:  input.PlanID,
			RiskID:  input.RiskID,
			Field:   input.Body.Field,
			Value:   input.Body.Value,
			Reason:  input.Body.Reason,
			ActorID: actorFromContext(ctx),
		})
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body domain.RiskAlert `json:"body"`
		}{Body: alert}, nil
	})
}

func (h handlers) registerViews(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "plan-health",
		Method:      http.MethodGet,
		Path:        "/plans/{plan_id}/health",
		Summary:     "KPIs and traffic light of a plan",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *planPath) (*struct {
		Body app.Health `json:"body"`
	}, error) {
		health, err := h.svc.Health(ctx, input.PlanID)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body app.Health `json:"body"`
		}{Body: health}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "plan-categories",
		Method:      http.MethodGet,
		Path:        "/plans/{plan_id}/categories",
		Summary:     "Per-category progress of a plan",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *planPath) (*struct {
		Body categoryList `json:"body"`
	}, error) {
		items, err := h.svc.Categories(ctx, input.PlanID)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body categoryList `json:"body"`
		}{Body: categoryList{Items: nonNilSlice(items)}}, nil
	})
}

type csvOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

func (h handlers) registerExport(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "export-plan",
		Method:      http.MethodGet,
		Path:        "/plans/{plan_id}/export/{kind}",
		Summary:     "Export a plan sheet as CSV",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlanID string `path:"plan_id"`
		Kind   string `path:"kind" enum:"checklist,risks,summary"`
	}) (*csvOutput, error) {
		plan, err := h.svc.GetPlan(ctx, input.PlanID)
		if err != nil {
			return nil, h.handleError(err)
		}
		kind, err := export.ParseKind(input.Kind)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"kind": input.Kind})
		}
		var buf strings.Builder
		if err := export.Write(&buf, kind, plan); err != nil {
			return nil, h.handleError(err)
		}
		return &csvOutput{
			ContentType:        "text/csv; charset=utf-8",
			ContentDisposition: fmt.Sprintf("attachment; filename=%q", export.FileName(plan.Intake.DealName, kind)),
			Body:               []byte(buf.String()),
		}, nil
	})
}

func (h handlers) registerEvents(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/plans/{plan_id}/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		PlanID     string `path:"plan_id"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"plan,task,risk"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := h.svc.LatestEvents(ctx, repo.EventFilters{
			PlanID:     input.PlanID,
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			Cursor:     cursorID,
			Limit:      limit + 1,
		})
		if err != nil {
			return nil, h.handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			items = items[:limit]
			resp.NextCursor = fmt.Sprintf("%d", items[limit-1].ID)
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func registerCatalog(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-templates",
		Method:      http.MethodGet,
		Path:        "/catalog",
		Summary:     "List task templates",
	}, func(ctx context.Context, input *struct {
		Category string `query:"category"`
	}) (*struct {
		Body templateList `json:"body"`
	}, error) {
		items := []domain.TaskTemplate{}
		for _, t := range catalog.Master().Templates() {
			if input.Category != "" && t.Category != input.Category {
				continue
			}
			items = append(items, t)
		}
		return &struct {
			Body templateList `json:"body"`
		}{Body: templateList{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "catalog-dangling",
		Method:      http.MethodGet,
		Path:        "/catalog/dangling",
		Summary:     "Prerequisite ids that match no template",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []DanglingResponse `json:"body"`
	}, error) {
		out := []DanglingResponse{}
		for _, d := range catalog.Master().DanglingDependencies() {
			out = append(out, DanglingResponse{ItemID: d.ItemID, Dependency: d.Dependency})
		}
		return &struct {
			Body []DanglingResponse `json:"body"`
		}{Body: out}, nil
	})
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
