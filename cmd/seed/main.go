// Command seed fills a database with a demo tenant and a realistic spread of
// B2B deals and activities. It goes through the service layer, so scores,
// activities and events are produced exactly as the API would.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/AnsKM/dealflow-crm/internal/config"
	"github.com/AnsKM/dealflow-crm/internal/domain"
	"github.com/AnsKM/dealflow-crm/internal/infra/cache"
	"github.com/AnsKM/dealflow-crm/internal/infra/events"
	"github.com/AnsKM/dealflow-crm/internal/infra/observability"
	"github.com/AnsKM/dealflow-crm/internal/infra/store"
	"github.com/AnsKM/dealflow-crm/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var companies = []string{
	"Siemens AG", "Bosch GmbH", "SAP Deutschland", "Deutsche Telekom AG", "BMW Group",
	"Volkswagen AG", "BASF SE", "Continental AG", "ThyssenKrupp AG", "Allianz SE",
	"Bayer AG", "Porsche AG", "Infineon Technologies", "Henkel AG", "RWE AG",
	"E.ON SE", "Metro AG", "Adidas AG", "Deutsche Bank AG", "Daimler Truck AG",
}

var (
	firstNames = []string{"Michael", "Thomas", "Andreas", "Stefan", "Julia", "Anna", "Sabine", "Claudia"}
	lastNames  = []string{"Müller", "Schmidt", "Schneider", "Fischer", "Weber", "Wagner", "Becker", "Hoffmann"}
)

type stagePlan struct {
	stage    domain.Stage
	count    int
	minValue int64
	maxValue int64
	titles   []string
}

var plan = []stagePlan{
	{domain.StageLead, 6, 25_000, 100_000, []string{"Initial IT infrastructure call", "Digitalisation inquiry", "CRM solution contact"}},
	{domain.StageQualified, 5, 50_000, 200_000, []string{"ERP modernisation", "Process automation", "Cybersecurity consulting"}},
	{domain.StageProposal, 4, 75_000, 300_000, []string{"S/4HANA migration offer", "Managed services proposal", "IT outsourcing offer"}},
	{domain.StageNegotiation, 3, 100_000, 500_000, []string{"Enterprise licence negotiation", "Final terms alignment"}},
	{domain.StageClosedWon, 1, 150_000, 500_000, []string{"Cloud migration kickoff"}},
	{domain.StageClosedLost, 1, 30_000, 150_000, []string{"Lost to competitor"}},
}

var activityTitles = map[domain.ActivityType][]string{
	domain.ActivityCall:    {"Follow-up call, next steps agreed", "Decision maker call about budget"},
	domain.ActivityEmail:   {"Proposal sent by email", "Sent additional documentation"},
	domain.ActivityMeeting: {"Product demo, positive feedback", "Requirements workshop"},
	domain.ActivityNote:    {"Budget for Q1 confirmed", "Competitor offer on the table"},
}

func main() {
	email := flag.String("email", "demo@dealflow.de", "demo admin email")
	password := flag.String("password", "demo12345", "demo admin password")
	tenant := flag.String("tenant", "Demo Company", "demo tenant name")
	seed := flag.Uint64("seed", 42, "random seed")
	flag.Parse()

	_ = config.LoadDotEnv(".env")
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := run(context.Background(), cfg, logger, *email, *password, *tenant, *seed); err != nil {
		logger.Fatal("seed failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, email, password, tenantName string, seed uint64) error {
	db, err := store.Open(store.Config{DSN: cfg.DatabaseURL, SlowThreshold: cfg.DBSlowQuery}, logger)
	if err != nil {
		return err
	}
	st := store.New(db, logger)
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	recCache := cache.New[[]string](time.Minute)
	defer recCache.Close()

	authSvc := service.NewAuthService(st, cfg.JWTSecret, cfg.JWTAccessTTL, logger)
	dealSvc := service.NewDealService(st, service.NewRecommendations(nil, recCache, metrics, logger),
		events.NewLogPublisher(logger), service.DefaultDealConfig(), metrics, logger)
	activitySvc := service.NewActivityService(st, metrics, logger)

	p, err := demoPrincipal(ctx, authSvc, email, password, tenantName)
	if err != nil {
		return err
	}

	// Re-running the seed replaces the demo tenant's deals.
	existing, err := st.ListAllDeals(ctx, p.TenantID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		ids := make([]string, len(existing))
		for i := range existing {
			ids[i] = existing[i].ID
		}
		res, err := dealSvc.BulkDelete(ctx, p, &domain.BulkDeleteRequest{DealIDs: ids})
		if err != nil {
			return err
		}
		logger.Info("removed previous demo deals", zap.Int("count", res.Count))
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	now := time.Now().UTC()
	used := map[string]bool{}
	deals, activities := 0, 0

	for _, sp := range plan {
		for i := 0; i < sp.count; i++ {
			company := pickUnused(rng, used)
			contact := pick(rng, firstNames) + " " + pick(rng, lastNames)
			value := decimal.NewFromInt(sp.minValue+rng.Int64N(sp.maxValue-sp.minValue)).Add(decimal.New(rng.Int64N(100), -2))
			closeAt := now.AddDate(0, 0, 7+rng.IntN(80)).Truncate(24 * time.Hour)

			d, err := dealSvc.Create(ctx, p, &domain.CreateDealRequest{
				Title:             pick(rng, sp.titles),
				CompanyName:       company,
				ContactPerson:     contact,
				ContactEmail:      contactEmail(contact, company),
				Value:             domain.NewMoney(value),
				Stage:             sp.stage,
				ExpectedCloseDate: domain.SomeTime(closeAt),
			})
			if err != nil {
				return fmt.Errorf("create deal for %s: %w", company, err)
			}
			deals++

			// Leads get no activity so some deals stay cold.
			if sp.stage == domain.StageLead && rng.IntN(2) == 0 {
				continue
			}
			for n := 1 + rng.IntN(3); n > 0; n-- {
				kind := pick(rng, []domain.ActivityType{domain.ActivityCall, domain.ActivityEmail, domain.ActivityMeeting, domain.ActivityNote})
				if _, err := activitySvc.Log(ctx, p, &domain.CreateActivityRequest{
					DealID:       d.ID,
					ActivityType: kind,
					Title:        pick(rng, activityTitles[kind]),
				}); err != nil {
					return fmt.Errorf("log activity: %w", err)
				}
				activities++
			}
		}
	}

	logger.Info("demo data seeded",
		zap.String("email", email),
		zap.String("tenant_id", p.TenantID),
		zap.Int("deals", deals),
		zap.Int("activities", activities),
	)
	return nil
}

// demoPrincipal registers the demo admin, or logs in when it already exists.
func demoPrincipal(ctx context.Context, authSvc *service.AuthService, email, password, tenantName string) (domain.Principal, error) {
	resp, err := authSvc.Register(ctx, &domain.RegisterRequest{
		Email:      email,
		Password:   password,
		FullName:   "Demo User",
		TenantName: tenantName,
	})
	var conflict *domain.ErrConflict
	if errors.As(err, &conflict) {
		resp, err = authSvc.Login(ctx, &domain.LoginRequest{Email: email, Password: password})
	}
	if err != nil {
		return domain.Principal{}, err
	}
	return domain.Principal{UserID: resp.User.ID, TenantID: resp.User.TenantID}, nil
}

func pick[T any](rng *rand.Rand, items []T) T {
	return items[rng.IntN(len(items))]
}

func pickUnused(rng *rand.Rand, used map[string]bool) string {
	for {
		c := pick(rng, companies)
		if !used[c] {
			used[c] = true
			return c
		}
	}
}

func contactEmail(name, company string) string {
	first, last, _ := strings.Cut(strings.ToLower(name), " ")
	domainPart := strings.ToLower(strings.Fields(company)[0])
	domainPart = strings.NewReplacer(".", "", "ü", "ue", "ö", "oe").Replace(domainPart)
	last = strings.NewReplacer("ü", "ue", "ö", "oe").Replace(last)
	return fmt.Sprintf("%s.%s@%s.de", first, last, domainPart)
}
