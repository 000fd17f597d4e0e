package flow

import (
	"sync"

	"github.com/finsight/finsight/internal/model"
)

// Stage 评估流程的各个屏幕
type Stage int

const (
	StageSplash Stage = iota
	StageWelcome
	StageBusinessInfo
	StageResults
	StageSimulationSelection
	StageSimulation
	StageUpdatedScore
	StageAICoach
)

// State 流程状态的封闭联合。诊断之后的每个状态都显式携带其实体，
// 不存在"键在不在存储里"这种隐式判断。
type State interface {
	Stage() Stage
}

// Splash 启动屏
type Splash struct{}

// Welcome 欢迎屏
type Welcome struct{}

// BusinessInfo 信息录入屏
type BusinessInfo struct{}

// Diagnosed 诊断完成，持有画像与诊断结果
type Diagnosed struct {
	Profile *model.BusinessProfile
	Result  *model.DiagnosisResult
}

// SimulationSelection 模拟杠杆选择屏
type SimulationSelection struct {
	Diagnosed
}

// Simulated 模拟完成，持有调整与模拟结果
type Simulated struct {
	Diagnosed
	Adjustments model.Adjustment
	Result      *model.SimulationResult
}

// Coached 教练计划已生成
type Coached struct {
	Simulated
	Plan *model.CoachingPlan
}

func (Splash) Stage() Stage              { return StageSplash }
func (Welcome) Stage() Stage             { return StageWelcome }
func (BusinessInfo) Stage() Stage        { return StageBusinessInfo }
func (Diagnosed) Stage() Stage           { return StageResults }
func (SimulationSelection) Stage() Stage { return StageSimulationSelection }
func (Simulated) Stage() Stage           { return StageUpdatedScore }
func (Coached) Stage() Stage             { return StageAICoach }

// screenNames Stage 与前端屏幕名的对应关系
var screenNames = map[Stage]string{
	StageSplash:              "splash",
	StageWelcome:             "welcome",
	StageBusinessInfo:        "business_info",
	StageResults:             "results",
	StageSimulationSelection: "simulation_selection",
	StageSimulation:          "simulation",
	StageUpdatedScore:        "updated_score",
	StageAICoach:             "ai_coach",
}

func (s Stage) String() string {
	if name, ok := screenNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseScreen 按屏幕名解析 Stage
func ParseScreen(name string) (Stage, bool) {
	for stage, n := range screenNames {
		if n == name {
			return stage, true
		}
	}
	return StageSplash, false
}

// Diagnosis 提取状态中携带的诊断数据，未诊断返回 nil
func Diagnosis(s State) *Diagnosed {
	switch v := s.(type) {
	case Diagnosed:
		return &v
	case SimulationSelection:
		return &v.Diagnosed
	case Simulated:
		return &v.Diagnosed
	case Coached:
		return &v.Diagnosed
	}
	return nil
}

// Store 会话级的临时状态存储。单写者，进程内，重置即清空。
type Store struct {
	mu       sync.Mutex
	sessions map[string]State
}

// NewStore 创建空存储
func NewStore() *Store {
	return &Store{sessions: make(map[string]State)}
}

// Get 读取会话状态，不存在时为 Splash
func (st *Store) Get(id string) State {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[id]; ok {
		return s
	}
	return Splash{}
}

// Set 写入会话状态
func (st *Store) Set(id string, s State) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[id] = s
}

// Reset "Start New Assessment"：清空该会话的全部数据并回到 Welcome
func (st *Store) Reset(id string) State {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[id] = Welcome{}
	return Welcome{}
}

// Resolve 带守卫地进入目标屏幕。BusinessInfo 之后的任何屏幕都要求
// 会话中已有诊断数据，否则重定向到 Welcome 而不是带着未定义数据渲染。
func (st *Store) Resolve(id string, want Stage) State {
	current := st.Get(id)
	if want <= StageBusinessInfo {
		return current
	}
	if Diagnosis(current) == nil {
		return st.Reset(id)
	}
	return current
}

// Diagnosed 前向转移：录入完成并诊断成功
func (st *Store) Diagnose(id string, profile *model.BusinessProfile, result *model.DiagnosisResult) Diagnosed {
	s := Diagnosed{Profile: profile, Result: result}
	st.Set(id, s)
	return s
}

// Simulate 前向转移：模拟完成。要求已有诊断，否则返回 false。
func (st *Store) Simulate(id string, adjustments model.Adjustment, result *model.SimulationResult) (Simulated, bool) {
	d := Diagnosis(st.Get(id))
	if d == nil {
		return Simulated{}, false
	}
	s := Simulated{Diagnosed: *d, Adjustments: adjustments, Result: result}
	st.Set(id, s)
	return s, true
}

// Coach 前向转移：教练计划生成。要求已有模拟，否则返回 false。
func (st *Store) Coach(id string, plan *model.CoachingPlan) (Coached, bool) {
	cur := st.Get(id)
	var sim Simulated
	switch v := cur.(type) {
	case Simulated:
		sim = v
	case Coached:
		sim = v.Simulated
	default:
		return Coached{}, false
	}
	s := Coached{Simulated: sim, Plan: plan}
	st.Set(id, s)
	return s, true
}
