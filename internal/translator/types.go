package translator

import (
	"context"
	"time"
)

type ServiceConfig struct {
	Credentials  string        `mapstructure:"credentials" json:"credentials"`
	APIKey       string        `mapstructure:"api_key" json:"api_key"`
	Model        string        `mapstructure:"model" json:"model"`
	BaseURL      string        `mapstructure:"base_url" json:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout" json:"timeout"`
	ProjectID    string        `mapstructure:"project_id" json:"project_id"`
	FunctionName string        `mapstructure:"function_name" json:"function_name"`
	Region       string        `mapstructure:"region" json:"region"`
}

// TranslateRequest carries one ordered batch. Services that accept a single
// string join Texts with Separator and split the answer on it again.
type TranslateRequest struct {
	Texts      []string `json:"texts"`
	SourceLang string   `json:"source_lang"`
	TargetLang string   `json:"target_lang"`
	Separator  string   `json:"separator"`
}

// ServiceResult holds one translation per request text, in request order.
// A service may return a different count; the caller treats that as a
// failed attempt.
type ServiceResult struct {
	ServiceName  string            `json:"service_name"`
	Translations []string          `json:"translations"`
	Metadata     map[string]string `json:"metadata"`
	Latency      time.Duration     `json:"latency"`
	Error        string            `json:"error,omitempty"`
}

type TranslationService interface {
	Name() string
	Translate(ctx context.Context, cfg ServiceConfig, req TranslateRequest) (*ServiceResult, error)
	IsAvailable(ctx context.Context) error
	// SupportedLanguages lists target language codes. A nil list means the
	// service does not restrict them.
	SupportedLanguages(ctx context.Context) ([]string, error)
}
