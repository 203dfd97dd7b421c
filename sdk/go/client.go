package dealplansdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal deal plan HTTP API client.
type Client struct {
	BaseURL    string
	BasePath   string
	ActorID    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "v0",
		Timeout:  10 * time.Second,
	}
}

// Intake is the deal profile submitted for generation. Zero values are
// omitted so the server applies its defaults.
type Intake struct {
	DealName         string   `json:"dealName"`
	DealStructure    string   `json:"dealStructure,omitempty"`
	IntegrationModel string   `json:"integrationModel,omitempty"`
	CloseDate        string   `json:"closeDate,omitempty"`
	CrossBorder      *bool    `json:"crossBorder,omitempty"`
	Jurisdictions    []string `json:"jurisdictions,omitempty"`
	TSARequired      string   `json:"tsaRequired,omitempty"`
	IndustrySector   string   `json:"industrySector,omitempty"`
	DealValueRange   string   `json:"dealValueRange,omitempty"`
	TargetEntities   int      `json:"targetEntities,omitempty"`
	TargetGAAP       string   `json:"targetGaap,omitempty"`
	TargetERP        string   `json:"targetErp,omitempty"`
	BuyerMaturity    string   `json:"buyerMaturity,omitempty"`
}

// Task represents the API task instance model (partial).
type Task struct {
	ID            string   `json:"id"`
	ItemID        string   `json:"itemId"`
	Category      string   `json:"category"`
	Description   string   `json:"description"`
	Phase         string   `json:"phase"`
	MilestoneDate *string  `json:"milestoneDate,omitempty"`
	Priority      string   `json:"priority"`
	Status        string   `json:"status"`
	OwnerID       *string  `json:"ownerId,omitempty"`
	Notes         []string `json:"notes"`
	BlockedReason *string  `json:"blockedReason,omitempty"`
}

// Override is one audit record on a risk alert.
type Override struct {
	Timestamp string `json:"timestamp"`
	Field     string `json:"field"`
	From      string `json:"from"`
	To        string `json:"to"`
	Reason    string `json:"reason"`
	ActorID   string `json:"actorId,omitempty"`
}

// Risk represents a risk alert.
type Risk struct {
	ID                 string     `json:"id"`
	Category           string     `json:"category"`
	Severity           string     `json:"severity"`
	Description        string     `json:"description"`
	Mitigation         string     `json:"mitigation"`
	AffectedCategories []string   `json:"affectedCategories"`
	Status             string     `json:"status"`
	Overrides          []Override `json:"overrides,omitempty"`
}

// Plan represents a generated plan (partial).
type Plan struct {
	ID          string `json:"id"`
	GeneratedAt string `json:"generatedAt"`
	Intake      Intake `json:"intake"`
	Tasks       []Task `json:"tasks"`
	RiskAlerts  []Risk `json:"riskAlerts"`
}

// PlanHeader is a plan listing entry.
type PlanHeader struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Health is the KPI snapshot of a plan.
type Health struct {
	KPIs struct {
		Total       int `json:"total"`
		Complete    int `json:"complete"`
		InProgress  int `json:"inProgress"`
		Blocked     int `json:"blocked"`
		NotStarted  int `json:"notStarted"`
		PctComplete int `json:"pctComplete"`
	} `json:"kpis"`
	RAG           string `json:"rag"`
	OpenRisks     int    `json:"openRisks"`
	CriticalRisks int    `json:"criticalRisks"`
}

// TaskUpdate carries the optional fields of a task patch.
type TaskUpdate struct {
	Status        *string `json:"status,omitempty"`
	BlockedReason *string `json:"blocked_reason,omitempty"`
	OwnerID       *string `json:"owner_id,omitempty"`
	AddNote       *string `json:"add_note,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	PlanID     string         `json:"plan_id"`
	EntityID   string         `json:"entity_id"`
	EntityKind string         `json:"entity_kind"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// Generate creates and stores a plan for the intake.
func (c *Client) Generate(ctx context.Context, in Intake) (Plan, error) {
	var resp Plan
	err := c.do(ctx, http.MethodPost, c.apiPath("plans"), in, &resp)
	return resp, err
}

// ListPlans returns stored plans, newest first.
func (c *Client) ListPlans(ctx context.Context, limit int) ([]PlanHeader, error) {
	endpoint := c.apiPath("plans")
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp struct {
		Items []PlanHeader `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// GetPlan fetches a plan by id.
func (c *Client) GetPlan(ctx context.Context, planID string) (Plan, error) {
	var resp Plan
	err := c.do(ctx, http.MethodGet, c.planPath(planID, ""), nil, &resp)
	return resp, err
}

// DeletePlan removes a plan and its events.
func (c *Client) DeletePlan(ctx context.Context, planID string) error {
	return c.do(ctx, http.MethodDelete, c.planPath(planID, ""), nil, nil)
}

// Health returns the KPIs and traffic light of a plan.
func (c *Client) Health(ctx context.Context, planID string) (Health, error) {
	var resp Health
	err := c.do(ctx, http.MethodGet, c.planPath(planID, "health"), nil, &resp)
	return resp, err
}

// UpdateTask patches a task by instance id or item id.
func (c *Client) UpdateTask(ctx context.Context, planID, taskID string, upd TaskUpdate) (Task, error) {
	var resp Task
	endpoint := c.planPath(planID, "tasks/"+url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPatch, endpoint, upd, &resp)
	return resp, err
}

// SetTaskStatus is a shortcut for a status-only update.
func (c *Client) SetTaskStatus(ctx context.Context, planID, taskID, status, blockedReason string) (Task, error) {
	upd := TaskUpdate{Status: &status}
	if blockedReason != "" {
		upd.BlockedReason = &blockedReason
	}
	return c.UpdateTask(ctx, planID, taskID, upd)
}

// OverrideRisk changes the severity or status of a risk alert.
func (c *Client) OverrideRisk(ctx context.Context, planID, riskID, field, value, reason string) (Risk, error) {
	body := map[string]any{
		"field":  field,
		"value":  value,
		"reason": reason,
	}
	var resp Risk
	endpoint := c.planPath(planID, fmt.Sprintf("risks/%s/overrides", url.PathEscape(riskID)))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Export downloads one CSV sheet (checklist, risks or summary).
func (c *Client) Export(ctx context.Context, planID, kind string) ([]byte, error) {
	var buf bytes.Buffer
	err := c.do(ctx, http.MethodGet, c.planPath(planID, "export/"+url.PathEscape(kind)), nil, &buf)
	return buf.Bytes(), err
}

// Events returns recent events of a plan.
func (c *Client) Events(ctx context.Context, planID string, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, planID, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, planID string, limit int, cursor string) (PaginatedEvents, error) {
	endpoint := c.planPath(planID, "events")
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	if cursor != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint = fmt.Sprintf("%s%scursor=%s", endpoint, sep, url.QueryEscape(cursor))
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.ActorID != "" {
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	switch dst := out.(type) {
	case nil:
		return nil
	case io.Writer:
		_, err := io.Copy(dst, resp.Body)
		return err
	default:
		return json.NewDecoder(resp.Body).Decode(out)
	}
}

func (c *Client) apiPath(p string) string {
	return strings.Trim(c.BasePath, "/") + "/" + strings.TrimLeft(p, "/")
}

func (c *Client) planPath(planID, p string) string {
	endpoint := c.apiPath("plans/" + url.PathEscape(planID))
	if p != "" {
		endpoint += "/" + strings.TrimLeft(p, "/")
	}
	return endpoint
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
