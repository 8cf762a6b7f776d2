package mcp

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tazhate/fiscalbot/internal/dashboard"
	"github.com/tazhate/fiscalbot/internal/domain"
	"github.com/tazhate/fiscalbot/internal/report"
)

// ObligationSummary is the tool-facing view of an obligation. Dates are
// YYYY-MM-DD.
type ObligationSummary struct {
	ID                string `json:"id"`
	Tax               string `json:"tax,omitempty"`
	Client            string `json:"client,omitempty"`
	DueDate           string `json:"dueDate"`
	CalculatedDueDate string `json:"calculatedDueDate,omitempty"`
	Status            string `json:"status"`
	Priority          string `json:"priority,omitempty"`
	AssignedTo        string `json:"assignedTo,omitempty"`
}

type tools struct {
	client *Client
	now    func() time.Time
}

func (t *tools) summary(o domain.Obligation) ObligationSummary {
	return ObligationSummary{
		ID:         o.ID,
		DueDate:    o.DueDate.Format(domain.DateLayout),
		Status:     string(domain.EffectiveStatus(o, t.now())),
		Priority:   string(o.Priority),
		AssignedTo: o.AssignedTo,
	}
}

func (t *tools) detailed(list []domain.ObligationWithDetails) []ObligationSummary {
	out := make([]ObligationSummary, 0, len(list))
	for _, o := range list {
		s := t.summary(o.Obligation)
		if o.Tax != nil {
			s.Tax = o.Tax.Name
		}
		if o.Client != nil {
			s.Client = o.Client.Name
		}
		if !o.CalculatedDueDate.IsZero() {
			s.CalculatedDueDate = o.CalculatedDueDate.Format(domain.DateLayout)
		}
		out = append(out, s)
	}
	return out
}

type snapshot struct {
	Stats        dashboard.Stats                `json:"stats"`
	Critical     []domain.ObligationWithDetails `json:"critical"`
	ThisWeek     []domain.ObligationWithDetails `json:"thisWeek"`
	Productivity report.ProductivityMetrics     `json:"productivity"`
	TopPending   []report.AssigneeCount         `json:"topPending"`
}

type emptyInput struct{}

type DashboardOutput struct {
	Stats          dashboard.Stats        `json:"stats"`
	Critical       []ObligationSummary    `json:"critical" jsonschema:"pending obligations overdue or due today"`
	ThisWeek       []ObligationSummary    `json:"thisWeek" jsonschema:"pending obligations due in the next seven days"`
	CompletionRate float64                `json:"completionRate"`
	OnTimeRate     float64                `json:"onTimeRate"`
	TopPending     []report.AssigneeCount `json:"topPending"`
}

func (t *tools) dashboard(ctx context.Context, _ *mcpsdk.CallToolRequest, _ emptyInput) (*mcpsdk.CallToolResult, DashboardOutput, error) {
	var snap snapshot
	if err := t.client.get(ctx, "/api/dashboard", &snap); err != nil {
		return nil, DashboardOutput{}, err
	}
	return nil, DashboardOutput{
		Stats:          snap.Stats,
		Critical:       t.detailed(snap.Critical),
		ThisWeek:       t.detailed(snap.ThisWeek),
		CompletionRate: snap.Productivity.CompletionRate,
		OnTimeRate:     snap.Productivity.OnTimeRate,
		TopPending:     snap.TopPending,
	}, nil
}

type ObligationsOutput struct {
	Obligations []ObligationSummary `json:"obligations"`
}

func (t *tools) critical(ctx context.Context, _ *mcpsdk.CallToolRequest, _ emptyInput) (*mcpsdk.CallToolResult, ObligationsOutput, error) {
	var snap snapshot
	if err := t.client.get(ctx, "/api/dashboard", &snap); err != nil {
		return nil, ObligationsOutput{}, err
	}
	return nil, ObligationsOutput{Obligations: t.detailed(snap.Critical)}, nil
}

func (t *tools) overdue(ctx context.Context, _ *mcpsdk.CallToolRequest, _ emptyInput) (*mcpsdk.CallToolResult, ObligationsOutput, error) {
	var list []domain.ObligationWithDetails
	if err := t.client.get(ctx, "/api/dashboard/overdue", &list); err != nil {
		return nil, ObligationsOutput{}, err
	}
	return nil, ObligationsOutput{Obligations: t.detailed(list)}, nil
}

type ProductivityInput struct {
	Start string `json:"start,omitempty" jsonschema:"period start, YYYY-MM-DD"`
	End   string `json:"end,omitempty" jsonschema:"period end, YYYY-MM-DD"`
}

type ProductivityOutput struct {
	CompletionRate        float64                           `json:"completionRate"`
	AverageCompletionTime float64                           `json:"averageCompletionTime" jsonschema:"mean days from creation to completion"`
	OnTimeRate            float64                           `json:"onTimeRate"`
	PeriodOnTimeRate      *float64                          `json:"periodOnTimeRate,omitempty" jsonschema:"on-time rate of obligations due in the period"`
	ByAssignee            map[string]report.AssigneeMetrics `json:"byAssignee"`
	TopPending            []report.AssigneeCount            `json:"topPending"`
}

type productivityReport struct {
	Metrics          report.ProductivityMetrics `json:"metrics"`
	TopPending       []report.AssigneeCount     `json:"topPending"`
	PeriodOnTimeRate *float64                   `json:"periodOnTimeRate"`
}

func (t *tools) productivity(ctx context.Context, _ *mcpsdk.CallToolRequest, in ProductivityInput) (*mcpsdk.CallToolResult, ProductivityOutput, error) {
	q := url.Values{}
	if in.Start != "" {
		q.Set("start", in.Start)
	}
	if in.End != "" {
		q.Set("end", in.End)
	}
	path := "/api/reports/productivity"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var r productivityReport
	if err := t.client.get(ctx, path, &r); err != nil {
		return nil, ProductivityOutput{}, err
	}
	return nil, ProductivityOutput{
		CompletionRate:        r.Metrics.CompletionRate,
		AverageCompletionTime: r.Metrics.AverageCompletionTime,
		OnTimeRate:            r.Metrics.OnTimeRate,
		PeriodOnTimeRate:      r.PeriodOnTimeRate,
		ByAssignee:            r.Metrics.ByAssignee,
		TopPending:            r.TopPending,
	}, nil
}

type chainFailure struct {
	TaxName  string `json:"taxName"`
	ClientID string `json:"clientId,omitempty"`
	Error    string `json:"error"`
}

type GenerationOutput struct {
	Created    []ObligationSummary `json:"created"`
	UpToDate   int                 `json:"upToDate" jsonschema:"chains that already had a pending future obligation"`
	Duplicates int                 `json:"duplicates"`
	Failures   []string            `json:"failures,omitempty"`
}

func (t *tools) runGeneration(ctx context.Context, _ *mcpsdk.CallToolRequest, _ emptyInput) (*mcpsdk.CallToolResult, GenerationOutput, error) {
	var result struct {
		Created    []domain.Obligation `json:"created"`
		UpToDate   int                 `json:"upToDate"`
		Duplicates int                 `json:"duplicates"`
		Failures   []chainFailure      `json:"failures"`
	}
	if err := t.client.post(ctx, "/api/generation/run", nil, &result); err != nil {
		return nil, GenerationOutput{}, err
	}

	out := GenerationOutput{
		Created:    make([]ObligationSummary, 0, len(result.Created)),
		UpToDate:   result.UpToDate,
		Duplicates: result.Duplicates,
	}
	for _, o := range result.Created {
		out.Created = append(out.Created, t.summary(o))
	}
	for _, f := range result.Failures {
		msg := fmt.Sprintf("%s: %s", f.TaxName, f.Error)
		if f.ClientID != "" {
			msg = fmt.Sprintf("%s (cliente %s): %s", f.TaxName, f.ClientID, f.Error)
		}
		out.Failures = append(out.Failures, msg)
	}
	return nil, out, nil
}

type PreviewInput struct {
	Type          string `json:"type" jsonschema:"none, monthly, quarterly or custom"`
	DayOfMonth    int    `json:"dayOfMonth,omitempty" jsonschema:"due day, 1-31"`
	Months        []int  `json:"months,omitempty" jsonschema:"months 1-12 for quarterly or custom rules"`
	Interval      int    `json:"interval,omitempty" jsonschema:"days between occurrences for custom rules"`
	WeekendAdjust string `json:"weekendAdjust,omitempty" jsonschema:"postpone, anticipate or keep"`
	Start         string `json:"start,omitempty" jsonschema:"YYYY-MM-DD, defaults to today"`
	Count         int    `json:"count,omitempty" jsonschema:"number of dates, default 6"`
}

type PreviewOutput struct {
	Dates       []string `json:"dates"`
	Description string   `json:"description"`
	Valid       bool     `json:"valid"`
	Error       string   `json:"error,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}

func (t *tools) previewRecurrence(ctx context.Context, _ *mcpsdk.CallToolRequest, in PreviewInput) (*mcpsdk.CallToolResult, PreviewOutput, error) {
	body := map[string]any{
		"rule": domain.RecurrenceRule{
			Type:       domain.RecurrenceType(strings.ToLower(strings.TrimSpace(in.Type))),
			DayOfMonth: in.DayOfMonth,
			Months:     in.Months,
			Interval:   in.Interval,
		},
		"weekendAdjust": in.WeekendAdjust,
		"start":         in.Start,
		"count":         in.Count,
	}
	var resp struct {
		Dates       []string `json:"dates"`
		Description string   `json:"description"`
		Validation  struct {
			Valid    bool     `json:"valid"`
			Error    string   `json:"error"`
			Warnings []string `json:"warnings"`
		} `json:"validation"`
	}
	if err := t.client.post(ctx, "/api/recurrence/preview", body, &resp); err != nil {
		return nil, PreviewOutput{}, err
	}
	if resp.Dates == nil {
		resp.Dates = []string{}
	}
	return nil, PreviewOutput{
		Dates:       resp.Dates,
		Description: resp.Description,
		Valid:       resp.Validation.Valid,
		Error:       resp.Validation.Error,
		Warnings:    resp.Validation.Warnings,
	}, nil
}

type CompleteInput struct {
	ID string `json:"id" jsonschema:"obligation id"`
}

func (t *tools) completeObligation(ctx context.Context, _ *mcpsdk.CallToolRequest, in CompleteInput) (*mcpsdk.CallToolResult, ObligationSummary, error) {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return nil, ObligationSummary{}, fmt.Errorf("id is required")
	}
	var o domain.Obligation
	err := t.client.patch(ctx, "/api/obligations/"+url.PathEscape(id)+"/status", map[string]string{"status": string(domain.StatusCompleted)}, &o)
	if err != nil {
		return nil, ObligationSummary{}, err
	}
	return nil, t.summary(o), nil
}
