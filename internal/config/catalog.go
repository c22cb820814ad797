package config

import (
	"fmt"
	"os"

	"github.com/benvon/smart-coach/internal/models"
	"github.com/benvon/smart-coach/internal/validation"
	"gopkg.in/yaml.v3"
)

// SimulatedServiceName is the always-available service of the default catalog
const SimulatedServiceName = "simulated-coach"

// Catalog is the declarative list of AI services and prompt templates
type Catalog struct {
	Services  []models.AIServiceConfig `yaml:"services"`
	Templates []models.PromptTemplate  `yaml:"templates"`
}

// ServiceRegistrar accepts AI service configurations
type ServiceRegistrar interface {
	Register(cfg models.AIServiceConfig) error
}

// TemplateRegistrar accepts prompt templates
type TemplateRegistrar interface {
	RegisterTemplate(t models.PromptTemplate) error
}

// LoadCatalog reads and validates a YAML catalog. ${VAR} references are
// expanded from the environment before parsing.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return ParseCatalog(raw)
}

// ParseCatalog decodes and validates catalog YAML
func ParseCatalog(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks every entry, name uniqueness and fallback references
func (c *Catalog) Validate() error {
	names := make(map[string]bool, len(c.Services))
	for i := range c.Services {
		svc := &c.Services[i]
		if len(svc.Capabilities) == 0 {
			return models.NewValidationError(fmt.Sprintf("services[%d].capabilities", i), "must declare at least one capability")
		}
		if err := validation.Struct(svc); err != nil {
			return fmt.Errorf("services[%d]: %w", i, err)
		}
		if names[svc.Name] {
			return models.NewValidationError(fmt.Sprintf("services[%d].name", i), fmt.Sprintf("duplicate service %q", svc.Name))
		}
		names[svc.Name] = true
	}
	for i, svc := range c.Services {
		for _, fb := range svc.Fallbacks {
			if !names[fb] {
				return models.NewValidationError(fmt.Sprintf("services[%d].fallbacks", i), fmt.Sprintf("unknown service %q", fb))
			}
		}
	}

	ids := make(map[string]bool, len(c.Templates))
	for i := range c.Templates {
		tpl := &c.Templates[i]
		if err := validation.Struct(tpl); err != nil {
			return fmt.Errorf("templates[%d]: %w", i, err)
		}
		if ids[tpl.ID] {
			return models.NewValidationError(fmt.Sprintf("templates[%d].id", i), fmt.Sprintf("duplicate template %q", tpl.ID))
		}
		ids[tpl.ID] = true
	}
	return nil
}

// Register adds the catalog's services and templates. A nil registrar skips
// that half of the catalog.
func (c *Catalog) Register(services ServiceRegistrar, templates TemplateRegistrar) error {
	if services != nil {
		for _, svc := range c.Services {
			if err := services.Register(svc); err != nil {
				return fmt.Errorf("failed to register service %s: %w", svc.Name, err)
			}
		}
	}
	if templates != nil {
		for _, tpl := range c.Templates {
			if err := templates.RegisterTemplate(tpl); err != nil {
				return fmt.Errorf("failed to register template %s: %w", tpl.ID, err)
			}
		}
	}
	return nil
}

// ResolveCatalog loads CatalogPath when set and otherwise builds the default
// catalog from the environment
func (c *Config) ResolveCatalog() (*Catalog, error) {
	if c.CatalogPath != "" {
		return LoadCatalog(c.CatalogPath)
	}
	return DefaultCatalog(c), nil
}

// DefaultCatalog has a simulated service and, when an API key is configured,
// an OpenAI service that falls back to it
func DefaultCatalog(cfg *Config) *Catalog {
	simulated := models.AIServiceConfig{
		Name: SimulatedServiceName,
		Kind: "simulated",
		Capabilities: []models.Capability{
			{Name: models.CapabilityTextGeneration, Proficiency: 0.5},
			{Name: models.CapabilityImageAnalysis, Proficiency: 0.3},
			{Name: models.CapabilityReasoning, Proficiency: 0.4},
			{Name: models.CapabilityDataExtraction, Proficiency: 0.4},
		},
		Reliability: 0.99,
	}
	c := &Catalog{}
	if cfg != nil && cfg.OpenAIKey != "" {
		settings := map[string]string{"api_key": cfg.OpenAIKey}
		if cfg.AIBaseURL != "" {
			settings["base_url"] = cfg.AIBaseURL
		}
		if cfg.ServerDebugMode {
			settings["debug"] = "true"
		}
		c.Services = append(c.Services, models.AIServiceConfig{
			Name:  "openai",
			Kind:  "openai",
			Model: cfg.AIModel,
			Capabilities: []models.Capability{
				{Name: models.CapabilityTextGeneration, Proficiency: 0.9},
				{Name: models.CapabilityImageAnalysis, Proficiency: 0.8},
				{Name: models.CapabilityReasoning, Proficiency: 0.85},
				{Name: models.CapabilityDataExtraction, Proficiency: 0.8},
			},
			Reliability:  0.95,
			CostPerToken: 0.000002,
			Fallbacks:    []string{SimulatedServiceName},
			Settings:     settings,
		})
	}
	c.Services = append(c.Services, simulated)
	return c
}
