package service

import (
	"encoding/json"
	"errors"
	"fmt"
	nethttp "net/http"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/finsight/finsight/internal/engine"
	"github.com/finsight/finsight/internal/flow"
	"github.com/finsight/finsight/internal/model"
	"github.com/finsight/finsight/internal/normalize"
	"github.com/finsight/finsight/internal/report"
	"github.com/finsight/finsight/internal/scoring"
)

// AssessmentService 把管道引擎暴露为 JSON HTTP 接口
type AssessmentService struct {
	eng      *engine.Engine
	store    *flow.Store
	renderer *report.Renderer
	log      *log.Helper
}

// NewAssessmentService 创建服务
func NewAssessmentService(eng *engine.Engine, store *flow.Store, renderer *report.Renderer, logger log.Logger) *AssessmentService {
	return &AssessmentService{
		eng:      eng,
		store:    store,
		renderer: renderer,
		log:      log.NewHelper(logger),
	}
}

// sessionID 会话标识。没有真实的身份体系，单浏览器单用户，
// 缺省会话也完全可用。
func sessionID(r *nethttp.Request) string {
	if id := r.Header.Get("X-Session-Id"); id != "" {
		return id
	}
	return "default"
}

func writeJSON(w nethttp.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// writeScoreError 评分引擎失败统一呈现为"稍后再试"，细节只进日志
func (s *AssessmentService) writeScoreError(w nethttp.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scoring.ErrTimeout), errors.Is(err, scoring.ErrUnavailable):
		s.log.Errorf("score service failure: %v", err)
		writeJSON(w, nethttp.StatusServiceUnavailable, errorBody{Error: "Scoring is temporarily unavailable. Please try again later."})
	case errors.Is(err, scoring.ErrInvalidResponse):
		s.log.Errorf("score service bad response: %v", err)
		writeJSON(w, nethttp.StatusBadGateway, errorBody{Error: "Scoring is temporarily unavailable. Please try again later."})
	default:
		s.log.Errorf("pipeline failure: %v", err)
		writeJSON(w, nethttp.StatusInternalServerError, errorBody{Error: "Something went wrong. Please try again later."})
	}
}

// HandleHealth 存活检查
func (s *AssessmentService) HandleHealth(w nethttp.ResponseWriter, r *nethttp.Request) {
	w.WriteHeader(nethttp.StatusOK)
	_, _ = w.Write([]byte("FinSight backend is online"))
}

// HandleDiagnose 初始诊断：表单 -> 规范化 -> 评分 -> 排序 -> 解释
func (s *AssessmentService) HandleDiagnose(w nethttp.ResponseWriter, r *nethttp.Request) {
	if r.Method != nethttp.MethodPost {
		writeJSON(w, nethttp.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
		return
	}

	var raw normalize.FormInput
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSON(w, nethttp.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}

	profile, err := normalize.Normalize(raw)
	if err != nil {
		var ve *normalize.ValidationError
		if errors.As(err, &ve) {
			writeJSON(w, nethttp.StatusUnprocessableEntity, errorBody{Error: "invalid input", Fields: ve.Fields})
			return
		}
		writeJSON(w, nethttp.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	result, err := s.eng.Diagnose(r.Context(), profile)
	if err != nil {
		s.writeScoreError(w, err)
		return
	}

	s.store.Diagnose(sessionID(r), profile, result)
	writeJSON(w, nethttp.StatusOK, result)
}

type simulateRequest struct {
	OriginalData  *model.BusinessProfile `json:"original_data"`
	Adjustments   model.Adjustment       `json:"adjustments"`
	CurrentScore  int                    `json:"current_score"`
	IsFinalAction bool                   `json:"isFinalAction"`
}

type simulateResponse struct {
	Status           string                         `json:"status"`
	NewScore         int                            `json:"new_score"`
	PointsChange     int                            `json:"points_change"`
	BeforeSimulation int                            `json:"before_simulation"`
	AfterSimulation  int                            `json:"after_simulation"`
	Benefits         []string                       `json:"benefits"`
	Details          map[string]model.CategoryScore `json:"details"`
}

// HandleSimulate What-If 模拟
func (s *AssessmentService) HandleSimulate(w nethttp.ResponseWriter, r *nethttp.Request) {
	if r.Method != nethttp.MethodPost {
		writeJSON(w, nethttp.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
		return
	}

	var req simulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, nethttp.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}
	if req.OriginalData == nil {
		writeJSON(w, nethttp.StatusBadRequest, errorBody{Error: "original_data is required"})
		return
	}
	if fields := validateAdjustments(req.Adjustments); len(fields) > 0 {
		writeJSON(w, nethttp.StatusUnprocessableEntity, errorBody{Error: "invalid adjustments", Fields: fields})
		return
	}

	result, err := s.eng.Simulate(r.Context(), req.OriginalData, req.Adjustments, req.CurrentScore, req.IsFinalAction)
	if err != nil {
		s.writeScoreError(w, err)
		return
	}

	// 只有最终动作才推进会话状态，滑杆中间态不落存储
	if req.IsFinalAction {
		if _, ok := s.store.Simulate(sessionID(r), req.Adjustments, result); !ok {
			s.log.Warnf("simulate without prior diagnosis, session state not advanced")
		}
	}

	writeJSON(w, nethttp.StatusOK, simulateResponse{
		Status:           "success",
		NewScore:         result.AfterScore,
		PointsChange:     result.PointsChange,
		BeforeSimulation: result.BeforeScore,
		AfterSimulation:  result.AfterScore,
		Benefits:         result.Benefits,
		Details:          result.Details,
	})
}

// validateAdjustments 杠杆名必须已知，百分比必须落在 [-100, 100]
func validateAdjustments(adjustments model.Adjustment) map[string]string {
	fields := map[string]string{}
	for lever, pct := range adjustments {
		known := false
		for _, l := range model.Levers {
			if l == lever {
				known = true
				break
			}
		}
		if !known {
			fields[lever] = "unknown lever"
			continue
		}
		if pct < -100 || pct > 100 {
			fields[lever] = "must be between -100 and 100 percent"
		}
	}
	return fields
}

type coachRequest struct {
	Sector       string                 `json:"sector"`
	FinalScore   *int                   `json:"final_score"`
	AdjustedData *model.BusinessProfile `json:"adjusted_data"`
	Currency     string                 `json:"currency"`
	Impacts      []model.ImpactItem     `json:"impacts"`
}

type coachResponse struct {
	Success        bool     `json:"success"`
	ProjectedScore int      `json:"projected_score"`
	Status         string   `json:"status"`
	ActionSteps    []string `json:"action_steps"`
	GrowthTips     []string `json:"growth_tips"`
}

// HandleCoach 教练计划
func (s *AssessmentService) HandleCoach(w nethttp.ResponseWriter, r *nethttp.Request) {
	if r.Method != nethttp.MethodPost {
		writeJSON(w, nethttp.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
		return
	}

	var req coachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, nethttp.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}
	if req.FinalScore == nil || req.AdjustedData == nil {
		writeJSON(w, nethttp.StatusBadRequest, errorBody{Error: "Simulation data missing. Please provide final_score and adjusted_data."})
		return
	}

	plan, err := s.eng.Coach(r.Context(), req.Sector, *req.FinalScore, req.AdjustedData, req.Currency, req.Impacts)
	if err != nil {
		s.log.Errorf("coach generation failed: %v", err)
		writeJSON(w, nethttp.StatusBadGateway, errorBody{Error: "Coaching is temporarily unavailable. Please try again later."})
		return
	}

	if _, ok := s.store.Coach(sessionID(r), plan); !ok {
		s.log.Warnf("coach without prior simulation, session state not advanced")
	}

	writeJSON(w, nethttp.StatusOK, coachResponse{
		Success:        !plan.Degraded,
		ProjectedScore: plan.ProjectedScore,
		Status:         plan.Status,
		ActionSteps:    plan.ActionSteps,
		GrowthTips:     plan.GrowthTips,
	})
}

type reportRequest struct {
	Sector      string   `json:"sector"`
	FinalScore  int      `json:"final_score"`
	ActionSteps []string `json:"action_steps"`
	GrowthTips  []string `json:"growth_tips"`
	Currency    string   `json:"currency"`
}

// HandleReportDownload 生成并下发 PDF 报告
func (s *AssessmentService) HandleReportDownload(w nethttp.ResponseWriter, r *nethttp.Request) {
	if r.Method != nethttp.MethodPost {
		writeJSON(w, nethttp.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
		return
	}

	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, nethttp.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}

	pdfBytes, err := s.renderer.Render(req.Sector, req.FinalScore, req.ActionSteps, req.GrowthTips, req.Currency)
	if err != nil {
		s.log.Errorf("report render failed: %v", err)
		writeJSON(w, nethttp.StatusInternalServerError, errorBody{Error: "Failed to generate PDF"})
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename(req.Sector)))
	w.WriteHeader(nethttp.StatusOK)
	_, _ = w.Write(pdfBytes)
}

type sessionResponse struct {
	Stage       string `json:"stage"`
	HealthScore *int   `json:"health_score,omitempty"`
}

// HandleSession 屏幕守卫：前端进入某个屏幕前询问当前会话该落在哪里。
// 请求的屏幕需要诊断数据而会话没有时，应答会指回 welcome。
func (s *AssessmentService) HandleSession(w nethttp.ResponseWriter, r *nethttp.Request) {
	if r.Method != nethttp.MethodGet {
		writeJSON(w, nethttp.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
		return
	}

	id := sessionID(r)
	state := s.store.Get(id)
	if screen := r.URL.Query().Get("screen"); screen != "" {
		want, ok := flow.ParseScreen(screen)
		if !ok {
			writeJSON(w, nethttp.StatusBadRequest, errorBody{Error: "unknown screen"})
			return
		}
		state = s.store.Resolve(id, want)
	}

	resp := sessionResponse{Stage: state.Stage().String()}
	if d := flow.Diagnosis(state); d != nil {
		score := d.Result.HealthScore
		resp.HealthScore = &score
	}
	writeJSON(w, nethttp.StatusOK, resp)
}

// HandleReset "Start New Assessment"：清空会话并回到 Welcome
func (s *AssessmentService) HandleReset(w nethttp.ResponseWriter, r *nethttp.Request) {
	if r.Method != nethttp.MethodPost {
		writeJSON(w, nethttp.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
		return
	}
	s.store.Reset(sessionID(r))
	writeJSON(w, nethttp.StatusOK, map[string]bool{"success": true})
}
