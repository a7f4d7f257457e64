package api

import (
	"fmt"
	"time"

	"github.com/dmitrymomot/statuscast/pkg/fingerprint"
	"github.com/dmitrymomot/statuscast/pkg/handler"
	"github.com/dmitrymomot/statuscast/pkg/ratelimit"
)

type rateLimitStatusRequest struct {
	LimitType  string `query:"limitType"`
	AnalysisID string `query:"analysisId"`
}

type rateLimitStatusResponse struct {
	Success bool                `json:"success"`
	Data    rateLimitStatusData `json:"data"`
}

type rateLimitStatusData struct {
	DeviceID   string `json:"deviceId"`
	LimitType  string `json:"limitType"`
	AnalysisID string `json:"analysisId,omitempty"`
	Limit      int    `json:"limit"`
	Used       int    `json:"used"`
	Remaining  int    `json:"remaining"`
	ResetTime  string `json:"resetTime"`
	WindowMs   int64  `json:"windowMs"`
	Error      string `json:"error,omitempty"`
}

func (s *Server) rateLimitStatus(ctx handler.Context, req rateLimitStatusRequest) handler.Response {
	validTypes := map[string]any{"validTypes": s.policies.Names()}

	if req.LimitType == "" {
		return handler.Error(handler.BadRequest("Missing required parameter: limitType").WithDetails(validTypes))
	}
	policy, err := s.policies.Get(req.LimitType)
	if err != nil {
		return handler.Error(handler.BadRequest("Unknown limit type: " + req.LimitType).WithDetails(validTypes))
	}

	var sub string
	if policy.Scoped {
		if req.AnalysisID == "" {
			return handler.Error(handler.BadRequest(
				fmt.Sprintf("analysisId is required for %s rate limit status", policy.Name)))
		}
		sub = req.AnalysisID
	}

	device := deviceID(ctx.Request())
	usage, err := s.limiter.Status(ctx, policy.Key(device, sub), policy.Limit, policy.Window)
	if err != nil {
		return handler.Error(handler.Internal("Failed to get rate limit status", err))
	}

	out := rateLimitStatusData{
		DeviceID:   fingerprint.Truncate(device),
		LimitType:  policy.Name,
		AnalysisID: sub,
		Limit:      usage.Limit,
		Used:       usage.Used,
		Remaining:  usage.Remaining,
		ResetTime:  usage.ResetAt.UTC().Format(ratelimit.TimeFormat),
		WindowMs:   usage.Window.Milliseconds(),
	}
	if usage.Degraded {
		out.Error = "Unable to fetch rate limit status"
	}
	return handler.JSON(rateLimitStatusResponse{Success: true, Data: out})
}

type rateLimitInfoResponse struct {
	Success bool              `json:"success"`
	Data    rateLimitInfoData `json:"data"`
}

type rateLimitInfoData struct {
	Limits               map[string]limitInfo `json:"limits"`
	Headers              map[string]string    `json:"headers"`
	DeviceIdentification string               `json:"deviceIdentification"`
}

type limitInfo struct {
	Limit       int    `json:"limit"`
	Window      string `json:"window"`
	WindowMs    int64  `json:"windowMs"`
	Description string `json:"description,omitempty"`
	Scoped      bool   `json:"perAnalysis"`
}

var rateLimitHeaders = map[string]string{
	"X-RateLimit-Limit":           "Maximum number of requests allowed",
	"X-RateLimit-Remaining":       "Number of requests remaining",
	"X-RateLimit-Reset":           "ISO timestamp when rate limit resets",
	"X-RateLimit-Reset-Timestamp": "Unix timestamp when rate limit resets",
	"Retry-After":                 "Seconds to wait before retrying (only when rate limited)",
}

func (s *Server) rateLimitInfo(_ handler.Context, _ struct{}) handler.Response {
	limits := make(map[string]limitInfo, len(s.policies))
	for name, p := range s.policies {
		limits[name] = limitInfo{
			Limit:       p.Limit,
			Window:      humanWindow(p.Window),
			WindowMs:    p.Window.Milliseconds(),
			Description: p.Description,
			Scoped:      p.Scoped,
		}
	}
	return handler.JSON(rateLimitInfoResponse{
		Success: true,
		Data: rateLimitInfoData{
			Limits:               limits,
			Headers:              rateLimitHeaders,
			DeviceIdentification: "Combination of device fingerprint and IP address",
		},
	})
}

// humanWindow renders whole hours and minutes as "24 hours", "1 minute".
func humanWindow(d time.Duration) string {
	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int64(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int64(d/time.Minute), "minute")
	}
	return d.String()
}
