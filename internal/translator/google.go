package translator

import (
	"context"
	"fmt"
	"os"
	"time"

	translate "cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/option"
)

// GoogleService calls Cloud Translation v2, which accepts the batch as a list.
type GoogleService struct {
	credentials string
	apiKey      string
}

func NewGoogleService(credentials, apiKey string) *GoogleService {
	return &GoogleService{credentials: credentials, apiKey: apiKey}
}

func (s *GoogleService) Name() string {
	return "google"
}

func (s *GoogleService) clientOptions(cfg ServiceConfig) []option.ClientOption {
	credentials := cfg.Credentials
	if credentials == "" {
		credentials = s.credentials
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = s.apiKey
	}

	opts := []option.ClientOption{}
	if credentials != "" {
		opts = append(opts, option.WithCredentialsFile(credentials))
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	return opts
}

func (s *GoogleService) Translate(ctx context.Context, cfg ServiceConfig, req TranslateRequest) (*ServiceResult, error) {
	result := &ServiceResult{ServiceName: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	targetLangTag, err := language.Parse(req.TargetLang)
	if err != nil {
		result.Error = fmt.Sprintf("invalid target language: %v", err)
		return result, fmt.Errorf("invalid target language: %w", err)
	}

	opts := &translate.Options{Format: translate.Text}
	if req.SourceLang != "" && req.SourceLang != "auto" {
		sourceLangTag, err := language.Parse(req.SourceLang)
		if err != nil {
			result.Error = fmt.Sprintf("invalid source language: %v", err)
			return result, fmt.Errorf("invalid source language: %w", err)
		}
		opts.Source = sourceLangTag
	}

	client, err := translate.NewClient(ctx, s.clientOptions(cfg)...)
	if err != nil {
		result.Error = fmt.Sprintf("failed to create client: %v", err)
		return result, fmt.Errorf("failed to create client: %w", err)
	}
	defer client.Close()

	translations, err := client.Translate(ctx, req.Texts, targetLangTag, opts)
	if err != nil {
		result.Error = fmt.Sprintf("translation failed: %v", err)
		return result, fmt.Errorf("translation failed: %w", err)
	}

	result.Translations = make([]string, len(translations))
	for i, tr := range translations {
		result.Translations[i] = tr.Text
	}

	return result, nil
}

// IsAvailable only checks that some form of credentials is configured; the
// client library resolves application default credentials on first use.
func (s *GoogleService) IsAvailable(ctx context.Context) error {
	if s.credentials != "" {
		if _, err := os.Stat(s.credentials); err != nil {
			return fmt.Errorf("credentials file: %w", err)
		}
		return nil
	}
	if s.apiKey != "" || os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" {
		return nil
	}
	return fmt.Errorf("no Google credentials configured")
}

func (s *GoogleService) SupportedLanguages(ctx context.Context) ([]string, error) {
	client, err := translate.NewClient(ctx, s.clientOptions(ServiceConfig{})...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	defer client.Close()

	langs, err := client.SupportedLanguages(ctx, language.English)
	if err != nil {
		return nil, fmt.Errorf("failed to list languages: %w", err)
	}

	codes := make([]string, len(langs))
	for i, l := range langs {
		codes[i] = l.Tag.String()
	}
	return codes, nil
}
