package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/finsight/finsight/internal/impact"
	"github.com/finsight/finsight/internal/model"
	"github.com/finsight/finsight/internal/narrative"
	"github.com/finsight/finsight/internal/scoring"
)

func retailProfile() *model.BusinessProfile {
	return &model.BusinessProfile{
		Sector:             "Retail",
		Currency:           "NGN",
		InventoryDays:      30,
		MonthlyCashSurplus: 50000,
		MonthlyWages:       20000,
		MonthlyLoanPayment: 10000,
		TotalAssets:        200000,
		TotalDebt:          80000,
	}
}

// stubScorer 固定评分应答的桩
type stubScorer struct {
	score     int
	breakdown map[string]model.CategoryScore
	impacts   map[string]float64
	err       error

	lastProfile *model.BusinessProfile
	calls       int
}

func (s *stubScorer) respond() (*scoring.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	score := s.score
	breakdown := s.breakdown
	if breakdown == nil {
		breakdown = map[string]model.CategoryScore{}
	}
	for name, cs := range breakdown {
		cs.Percent = model.RoundPercent(cs.Current, cs.Max)
		breakdown[name] = cs
	}
	return &scoring.Response{
		HealthScore:       &score,
		Breakdown:         breakdown,
		SimulationImpacts: s.impacts,
	}, nil
}

func (s *stubScorer) Diagnose(ctx context.Context, profile *model.BusinessProfile) (*scoring.Response, error) {
	s.calls++
	s.lastProfile = profile
	return s.respond()
}

func (s *stubScorer) Simulate(ctx context.Context, profile *model.BusinessProfile) (*scoring.Response, error) {
	s.calls++
	s.lastProfile = profile
	return s.respond()
}

// stubGenerator 统计调用次数的叙事桩
type stubGenerator struct {
	explainCalls  int
	benefitsCalls int
	planCalls     int
	planErr       error
}

func (g *stubGenerator) Explain(ctx context.Context, profile *model.BusinessProfile, score int, breakdown map[string]model.CategoryScore, impacts []model.ImpactItem) (string, error) {
	g.explainCalls++
	return "stub explanation", nil
}

func (g *stubGenerator) Benefits(ctx context.Context, profile *model.BusinessProfile, adjustments model.Adjustment, before, after int) ([]string, error) {
	g.benefitsCalls++
	return []string{"benefit one", "benefit two", "benefit three"}, nil
}

func (g *stubGenerator) Plan(ctx context.Context, sector string, score int, adjusted *model.BusinessProfile, currency string, impacts []model.ImpactItem) (*model.CoachingPlan, error) {
	g.planCalls++
	if g.planErr != nil {
		return nil, g.planErr
	}
	return &model.CoachingPlan{
		ActionSteps:    []string{"a", "b", "c"},
		GrowthTips:     []string{"d", "e", "f"},
		ProjectedScore: score,
		Status:         model.StatusLabel(score),
	}, nil
}

func newTestEngine(scorer *stubScorer, gen narrative.Generator) *Engine {
	return NewEngine(scorer, impact.NewRanker(0.1, 0.05, 4), gen)
}

func TestDiagnose_EndToEnd(t *testing.T) {
	scorer := &stubScorer{
		score: 58,
		breakdown: map[string]model.CategoryScore{
			"cash_flow":  {Current: 14, Max: 25},
			"debt_load":  {Current: 11, Max: 25},
			"operations": {Current: 18, Max: 25},
			"stability":  {Current: 15, Max: 25},
		},
		impacts: map[string]float64{
			"monthly_loan_payment": -0.21,
			"monthly_cash_surplus": 0.08,
			"inventory_days":       -0.03,
		},
	}
	gen := &stubGenerator{}
	eng := newTestEngine(scorer, gen)

	result, err := eng.Diagnose(context.Background(), retailProfile())
	if err != nil {
		t.Fatalf("Diagnose() error = %v", err)
	}
	if result.HealthScore != 58 {
		t.Errorf("HealthScore = %d, want 58", result.HealthScore)
	}
	for name, cs := range result.Breakdown {
		want := model.RoundPercent(cs.Current, cs.Max)
		if cs.Percent != want {
			t.Errorf("breakdown[%s].Percent = %d, want %d", name, cs.Percent, want)
		}
	}
	if result.Explanation != "stub explanation" {
		t.Errorf("Explanation = %q", result.Explanation)
	}
	if gen.explainCalls != 1 {
		t.Errorf("explainCalls = %d, want 1", gen.explainCalls)
	}
	if len(result.Impacts) != 3 {
		t.Fatalf("Impacts len = %d, want 3", len(result.Impacts))
	}
	if result.Impacts[0].Field != "monthly_loan_payment" {
		t.Errorf("top impact = %s, want monthly_loan_payment", result.Impacts[0].Field)
	}
	if result.Impacts[0].CurrentValue != "NGN 10,000" {
		t.Errorf("CurrentValue = %q, want %q", result.Impacts[0].CurrentValue, "NGN 10,000")
	}
}

func TestDiagnose_ScorerTimeoutAborts(t *testing.T) {
	scorer := &stubScorer{err: scoring.ErrTimeout}
	gen := &stubGenerator{}
	eng := newTestEngine(scorer, gen)

	result, err := eng.Diagnose(context.Background(), retailProfile())
	if !errors.Is(err, scoring.ErrTimeout) {
		t.Errorf("Diagnose() error = %v, want ErrTimeout", err)
	}
	if result != nil {
		t.Errorf("Diagnose() result = %v, want nil", result)
	}
	if gen.explainCalls != 0 {
		t.Errorf("explainCalls = %d, want 0", gen.explainCalls)
	}
}

func TestDiagnose_ExplainFailureDegrades(t *testing.T) {
	scorer := &stubScorer{score: 42, breakdown: map[string]model.CategoryScore{"cash_flow": {Current: 10, Max: 25}}}
	gen := &failingExplainGenerator{}
	eng := newTestEngine(scorer, gen)

	result, err := eng.Diagnose(context.Background(), retailProfile())
	if err != nil {
		t.Fatalf("Diagnose() error = %v", err)
	}
	if result.Explanation != "" {
		t.Errorf("Explanation = %q, want empty", result.Explanation)
	}
	if result.HealthScore != 42 {
		t.Errorf("HealthScore = %d, want 42", result.HealthScore)
	}
}

type failingExplainGenerator struct{ stubGenerator }

func (g *failingExplainGenerator) Explain(ctx context.Context, profile *model.BusinessProfile, score int, breakdown map[string]model.CategoryScore, impacts []model.ImpactItem) (string, error) {
	return "", errors.New("llm down")
}

func TestApplyAdjustments_SingleLever(t *testing.T) {
	profile := retailProfile()
	adjusted := ApplyAdjustments(profile, model.Adjustment{"monthly_loan_payment": -50})

	if adjusted.MonthlyLoanPayment != 5000 {
		t.Errorf("monthly_loan_payment = %v, want 5000", adjusted.MonthlyLoanPayment)
	}
	// 其余杠杆必须原样保留
	if adjusted.InventoryDays != profile.InventoryDays ||
		adjusted.MonthlyCashSurplus != profile.MonthlyCashSurplus ||
		adjusted.MonthlyWages != profile.MonthlyWages ||
		adjusted.TotalAssets != profile.TotalAssets ||
		adjusted.TotalDebt != profile.TotalDebt {
		t.Errorf("untouched levers changed: %+v", adjusted)
	}
	if profile.MonthlyLoanPayment != 10000 {
		t.Errorf("original mutated: %v", profile.MonthlyLoanPayment)
	}
}

func TestApplyAdjustments_MinusHundredReachesZero(t *testing.T) {
	adjusted := ApplyAdjustments(retailProfile(), model.Adjustment{"total_debt": -100})
	if adjusted.TotalDebt != 0 {
		t.Errorf("total_debt = %v, want exactly 0", adjusted.TotalDebt)
	}
}

func TestSimulate_EmptyAdjustmentsNoChange(t *testing.T) {
	scorer := &stubScorer{score: 58, breakdown: map[string]model.CategoryScore{}}
	gen := &stubGenerator{}
	eng := newTestEngine(scorer, gen)

	result, err := eng.Simulate(context.Background(), retailProfile(), model.Adjustment{}, 58, false)
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	if result.AfterScore != result.BeforeScore {
		t.Errorf("AfterScore = %d, BeforeScore = %d, want equal", result.AfterScore, result.BeforeScore)
	}
	if result.PointsChange != 0 {
		t.Errorf("PointsChange = %d, want 0", result.PointsChange)
	}
	if len(result.Benefits) != 0 {
		t.Errorf("Benefits = %v, want empty", result.Benefits)
	}
}

func TestSimulate_BenefitsGating(t *testing.T) {
	cases := []struct {
		name        string
		adjustments model.Adjustment
		isFinal     bool
		wantCalls   int
		wantCanned  bool
	}{
		{"slider tick", model.Adjustment{"total_debt": -20}, false, 0, false},
		{"final with change", model.Adjustment{"total_debt": -20}, true, 1, false},
		{"final zero change", model.Adjustment{"total_debt": 0}, true, 0, true},
		{"final no adjustments", model.Adjustment{}, true, 0, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			scorer := &stubScorer{score: 64, breakdown: map[string]model.CategoryScore{}}
			gen := &stubGenerator{}
			eng := newTestEngine(scorer, gen)

			result, err := eng.Simulate(context.Background(), retailProfile(), tc.adjustments, 58, tc.isFinal)
			if err != nil {
				t.Fatalf("Simulate() error = %v", err)
			}
			if gen.benefitsCalls != tc.wantCalls {
				t.Errorf("benefitsCalls = %d, want %d", gen.benefitsCalls, tc.wantCalls)
			}
			if tc.wantCanned {
				if len(result.Benefits) != 1 || result.Benefits[0] != maintainMessage {
					t.Errorf("Benefits = %v, want canned maintain message", result.Benefits)
				}
			}
		})
	}
}

func TestSimulate_ScoreDelta(t *testing.T) {
	scorer := &stubScorer{score: 51, breakdown: map[string]model.CategoryScore{}}
	eng := newTestEngine(scorer, &stubGenerator{})

	result, err := eng.Simulate(context.Background(), retailProfile(), model.Adjustment{"total_debt": 40}, 58, false)
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	if result.PointsChange != -7 {
		t.Errorf("PointsChange = %d, want -7", result.PointsChange)
	}
	if scorer.lastProfile.TotalDebt != 80000*1.4 {
		t.Errorf("scored total_debt = %v, want %v", scorer.lastProfile.TotalDebt, 80000*1.4)
	}
}

func TestCoach_ParseErrorDegrades(t *testing.T) {
	gen := &stubGenerator{planErr: &narrative.ParseError{Raw: "not json", Err: errors.New("bad")}}
	eng := newTestEngine(&stubScorer{}, gen)

	plan, err := eng.Coach(context.Background(), "Retail", 62, retailProfile(), "NGN", nil)
	if err != nil {
		t.Fatalf("Coach() error = %v, want degraded plan", err)
	}
	if !plan.Degraded {
		t.Errorf("Degraded = false, want true")
	}
	if len(plan.ActionSteps) != 0 || len(plan.GrowthTips) != 0 {
		t.Errorf("degraded plan not empty: %+v", plan)
	}
	if plan.Status != "Action Required" {
		t.Errorf("Status = %q, want Action Required", plan.Status)
	}
}

func TestCoach_TransportErrorPropagates(t *testing.T) {
	gen := &stubGenerator{planErr: errors.New("connection refused")}
	eng := newTestEngine(&stubScorer{}, gen)

	if _, err := eng.Coach(context.Background(), "Retail", 75, retailProfile(), "NGN", nil); err == nil {
		t.Errorf("Coach() error = nil, want propagation")
	}
}
