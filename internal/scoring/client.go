package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/finsight/finsight/internal/logger"
	"github.com/finsight/finsight/internal/model"
)

// 评分引擎的三类失败，调用方据此映射用户提示
var (
	ErrTimeout         = errors.New("score service timeout")
	ErrUnavailable     = errors.New("score service unavailable")
	ErrInvalidResponse = errors.New("score service invalid response")
)

// Response 评分引擎的原始应答
type Response struct {
	HealthScore       *int                           `json:"health_score"`
	Breakdown         map[string]model.CategoryScore `json:"breakdown"`
	SimulationImpacts map[string]float64             `json:"simulation_impacts"`
}

// Client 外部评分引擎客户端
type Client struct {
	client *resty.Client
}

// NewClient 创建评分引擎客户端，超时需覆盖冷启动耗时
func NewClient(baseURL string, timeout time.Duration) *Client {
	c := resty.New()
	c.SetBaseURL(baseURL)
	c.SetTimeout(timeout)
	c.SetHeader("Content-Type", "application/json")
	return &Client{client: c}
}

// Diagnose 提交画像获取初始诊断评分
func (c *Client) Diagnose(ctx context.Context, profile *model.BusinessProfile) (*Response, error) {
	return c.post(ctx, "/diagnose", profile)
}

// Simulate 提交调整后的画像获取模拟评分
func (c *Client) Simulate(ctx context.Context, profile *model.BusinessProfile) (*Response, error) {
	return c.post(ctx, "/simulate", profile)
}

// post 发送请求并解析应答。超时或不可达时立即重试一次，不做指数退避。
func (c *Client) post(ctx context.Context, route string, profile *model.BusinessProfile) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		resp, err := c.client.R().
			SetContext(ctx).
			SetBody(profile).
			Post(route)
		if err != nil {
			lastErr = classifyTransportErr(err)
			logger.Log.Warnf("score service request failed [%s] attempt %d: %v", route, attempt+1, err)
			continue
		}

		if resp.StatusCode() >= 500 {
			lastErr = fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode())
			logger.Log.Warnf("score service error [%s] attempt %d: status %d", route, attempt+1, resp.StatusCode())
			continue
		}
		if resp.StatusCode() != 200 {
			return nil, fmt.Errorf("%w: status %d: %s", ErrInvalidResponse, resp.StatusCode(), resp.String())
		}

		return parseResponse(resp.Body())
	}
	return nil, lastErr
}

// parseResponse 校验应答结构并重算细分项百分比
func parseResponse(body []byte) (*Response, error) {
	var r Response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if r.HealthScore == nil || r.Breakdown == nil {
		return nil, fmt.Errorf("%w: missing health_score or breakdown", ErrInvalidResponse)
	}
	if *r.HealthScore < 0 || *r.HealthScore > 100 {
		return nil, fmt.Errorf("%w: health_score %d out of range", ErrInvalidResponse, *r.HealthScore)
	}
	// 百分比以 current/max 为准，不信任上游传来的值
	for name, cs := range r.Breakdown {
		if cs.Current < 0 || cs.Current > cs.Max {
			return nil, fmt.Errorf("%w: breakdown %q current %v outside [0, %v]", ErrInvalidResponse, name, cs.Current, cs.Max)
		}
		cs.Percent = model.RoundPercent(cs.Current, cs.Max)
		r.Breakdown[name] = cs
	}
	return &r, nil
}

// Score 解引用后的健康评分，仅在校验通过后调用
func (r *Response) Score() int {
	return *r.HealthScore
}

func classifyTransportErr(err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
