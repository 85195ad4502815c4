package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AnsKM/dealflow-crm/internal/domain"
	"github.com/AnsKM/dealflow-crm/internal/infra/observability"
	"github.com/AnsKM/dealflow-crm/internal/port"
	"github.com/AnsKM/dealflow-crm/internal/scoring"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var recTracer = otel.Tracer("service/recommendations")

// MaxNextActions caps the list returned by NextActions.
const MaxNextActions = 5

// Recommendation sources, as counted in metrics.
const (
	sourceLLM      = "llm"
	sourceCache    = "cache"
	sourceFallback = "fallback"
)

var fallbackActions = map[domain.Stage][]string{
	domain.StageLead: {
		"Schedule an initial call",
		"Run a needs analysis",
		"Identify the decision makers",
	},
	domain.StageQualified: {
		"Prepare a product demo",
		"Clarify budget and timeline",
		"Document pain points",
	},
	domain.StageProposal: {
		"Follow up on the proposal",
		"Answer open questions about the proposal",
		"Set up a meeting with the decision maker",
	},
	domain.StageNegotiation: {
		"Finalize contract details",
		"Obtain final approval",
		"Prepare the onboarding process",
	},
	domain.StageClosedWon: {
		"Start onboarding",
		"Hand over to customer success",
		"Ask for a testimonial",
	},
	domain.StageClosedLost: {
		"Document the loss analysis",
		"Plan a future follow-up",
		"Capture lessons learned",
	},
}

var defaultFallback = []string{"Review deal status"}

// FallbackActions returns the fixed recommendations for stage.
// The result is a fresh slice the caller may modify.
func FallbackActions(stage domain.Stage) []string {
	actions, ok := fallbackActions[stage]
	if !ok {
		actions = defaultFallback
	}
	return append([]string(nil), actions...)
}

// Recommendations produces next-action suggestions for deals.
// With no LLM configured every deal gets its stage fallback.
type Recommendations struct {
	llm     port.Recommender
	cache   port.Cache[[]string]
	metrics *observability.Metrics
	now     func() time.Time
	logger  *zap.Logger
}

// NewRecommendations creates the provider. llm may be nil.
func NewRecommendations(llm port.Recommender, cache port.Cache[[]string], metrics *observability.Metrics, logger *zap.Logger, opts ...Option) *Recommendations {
	return &Recommendations{
		llm:     llm,
		cache:   cache,
		metrics: metrics,
		now:     buildOptions(opts).now,
		logger:  logger,
	}
}

// NextActions returns up to MaxNextActions suggestions for d. It never fails:
// any LLM error or unusable answer yields FallbackActions(d.Stage).
// LLM answers are cached per deal version; fallbacks are not.
func (r *Recommendations) NextActions(ctx context.Context, d *domain.Deal) []string {
	ctx, span := recTracer.Start(ctx, "Recommendations.NextActions")
	defer span.End()
	span.SetAttributes(
		attribute.String("deal.id", d.ID),
		attribute.String("deal.stage", string(d.Stage)),
	)

	if r.llm == nil {
		return r.fallback(d, "llm disabled")
	}

	key := nextActionsKey(d)
	if cached, ok := r.cache.Get(ctx, key); ok && len(cached) > 0 {
		r.metrics.IncrCacheHit("next_actions")
		r.metrics.IncrRecommendation(sourceCache, string(d.Stage))
		return append([]string(nil), cached...)
	}
	r.metrics.IncrCacheMiss("next_actions")

	completion, err := r.llm.Generate(ctx, BuildPrompt(d, r.now()))
	if err != nil {
		r.logger.Warn("next actions: llm call failed",
			zap.String("deal_id", d.ID),
			zap.Error(err),
		)
		return r.fallback(d, "llm error")
	}

	actions := ParseActions(completion.Text)
	if len(actions) == 0 {
		return r.fallback(d, "empty answer")
	}

	r.cache.Set(ctx, key, append([]string(nil), actions...))
	r.metrics.IncrRecommendation(sourceLLM, string(d.Stage))
	r.logger.Debug("next actions generated",
		zap.String("deal_id", d.ID),
		zap.Int("count", len(actions)),
	)
	return actions
}

func (r *Recommendations) fallback(d *domain.Deal, reason string) []string {
	r.metrics.IncrRecommendation(sourceFallback, string(d.Stage))
	r.logger.Debug("next actions: using fallback",
		zap.String("deal_id", d.ID),
		zap.String("reason", reason),
	)
	return FallbackActions(d.Stage)
}

// nextActionsKey changes whenever the deal is written.
func nextActionsKey(d *domain.Deal) string {
	return fmt.Sprintf("next_actions:%s:%d", d.ID, d.UpdatedAt.UnixNano())
}

// ParseActions turns a bulleted LLM answer into at most MaxNextActions items.
// Bullet markers (-, •, *) are stripped; blank lines and headings are dropped.
func ParseActions(text string) []string {
	var actions []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimLeft(line, "-•*"))
		if line == "" {
			continue
		}
		actions = append(actions, line)
		if len(actions) == MaxNextActions {
			break
		}
	}
	return actions
}

// BuildPrompt renders the coaching prompt for d as of now.
func BuildPrompt(d *domain.Deal, now time.Time) string {
	lastContact := "unknown"
	if d.LastContactAt != nil {
		lastContact = fmt.Sprintf("%d days ago", scoring.DaysBetween(*d.LastContactAt, now))
	}
	expectedClose := "not set"
	if d.ExpectedCloseDate != nil {
		expectedClose = fmt.Sprintf("in %d days", scoring.DaysBetween(now, *d.ExpectedCloseDate))
	}
	notes := d.Notes
	if strings.TrimSpace(notes) == "" {
		notes = "none"
	}

	var b strings.Builder
	b.WriteString("You are an experienced B2B sales coach.\n")
	b.WriteString("Analyse the deal below and give 3-5 concrete next actions the sales rep can take right away.\n\n")
	b.WriteString("Deal details:\n")
	fmt.Fprintf(&b, "- Title: %s\n", d.Title)
	fmt.Fprintf(&b, "- Company: %s\n", d.CompanyName)
	fmt.Fprintf(&b, "- Value: %s EUR\n", d.Value.StringFixed(2))
	fmt.Fprintf(&b, "- Stage: %s\n", d.Stage)
	fmt.Fprintf(&b, "- Health score: %d/100\n", d.HealthScore)
	fmt.Fprintf(&b, "- Last contact: %s\n", lastContact)
	fmt.Fprintf(&b, "- Expected close: %s\n", expectedClose)
	fmt.Fprintf(&b, "- Notes: %s\n\n", notes)
	b.WriteString("Guidelines:\n")
	b.WriteString("- Be specific and actionable\n")
	b.WriteString("- Take the current pipeline stage into account\n")
	b.WriteString("- Prioritise time-critical actions when the health score is low\n\n")
	b.WriteString("Return only the actions, one bullet point per line, without any extra explanation.")
	return b.String()
}
