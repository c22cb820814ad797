package models

import (
	"time"
)

// Capability names a skill an AI backend declares
const (
	CapabilityTextGeneration = "text_generation"
	CapabilityImageAnalysis  = "image_analysis"
	CapabilityReasoning      = "reasoning"
	CapabilityDataExtraction = "data_extraction"
)

// Capability is a skill tag with a proficiency level in [0,1]
type Capability struct {
	Name        string  `json:"name" yaml:"name" validate:"required"`
	Proficiency float64 `json:"proficiency" yaml:"proficiency" validate:"gte=0,lte=1"`
}

// ServiceStatus is the health status of an AI service
type ServiceStatus string

const (
	ServiceHealthy  ServiceStatus = "healthy"
	ServiceDegraded ServiceStatus = "degraded"
	ServiceDown     ServiceStatus = "down"
)

// AIServiceConfig describes a registered AI backend
type AIServiceConfig struct {
	Name         string        `json:"name" yaml:"name" validate:"required"`
	Kind         string        `json:"kind" yaml:"kind"`
	Model        string        `json:"model,omitempty" yaml:"model,omitempty"`
	Capabilities []Capability  `json:"capabilities" yaml:"capabilities" validate:"required,min=1,dive"`
	Reliability  float64       `json:"reliability" yaml:"reliability" validate:"gte=0,lte=1"`
	CostPerToken float64       `json:"cost_per_token" yaml:"cost_per_token" validate:"gte=0"`
	AvgLatency   time.Duration `json:"avg_latency" yaml:"avg_latency"`
	Status       ServiceStatus `json:"status" yaml:"status,omitempty"`
	Fallbacks    []string      `json:"fallbacks,omitempty" yaml:"fallbacks,omitempty"`

	// Settings carries adapter-specific options such as api_key or base_url
	Settings map[string]string `json:"-" yaml:"settings,omitempty"`
}

// HasCapability reports whether the service declares the named capability
func (c *AIServiceConfig) HasCapability(name string) bool {
	for _, capability := range c.Capabilities {
		if capability.Name == name {
			return true
		}
	}
	return false
}

// ServiceConfigUpdate is a partial update of an AIServiceConfig
type ServiceConfigUpdate struct {
	Capabilities []Capability   `json:"capabilities,omitempty"`
	Reliability  *float64       `json:"reliability,omitempty"`
	CostPerToken *float64       `json:"cost_per_token,omitempty"`
	AvgLatency   *time.Duration `json:"avg_latency,omitempty"`
	Status       *ServiceStatus `json:"status,omitempty"`
	Fallbacks    []string       `json:"fallbacks,omitempty"`
}

// ExecutionSample is one recorded execution of a service
type ExecutionSample struct {
	Latency    time.Duration `json:"latency"`
	Success    bool          `json:"success"`
	Cost       float64       `json:"cost"`
	TokensUsed int           `json:"tokens_used"`
	At         time.Time     `json:"at"`
}

// ServiceHealth is the status view of a service recomputed from recent samples
type ServiceHealth struct {
	Service     string        `json:"service"`
	Status      ServiceStatus `json:"status"`
	ErrorRate   float64       `json:"error_rate"`
	AvgLatency  time.Duration `json:"avg_latency"`
	SampleCount int           `json:"sample_count"`
	LastChecked time.Time     `json:"last_checked"`
}

// ServiceMetrics aggregates the rolling sample window of a service
type ServiceMetrics struct {
	Service       string        `json:"service"`
	TotalRequests int           `json:"total_requests"`
	SuccessCount  int           `json:"success_count"`
	ErrorCount    int           `json:"error_count"`
	ErrorRate     float64       `json:"error_rate"`
	AvgLatency    time.Duration `json:"avg_latency"`
	TotalCost     float64       `json:"total_cost"`
	TotalTokens   int           `json:"total_tokens"`
	LastUpdated   time.Time     `json:"last_updated"`
}
