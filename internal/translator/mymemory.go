package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const myMemoryURL = "https://api.mymemory.translated.net/get"

// MyMemoryService translates a batch one text at a time; the public API
// takes a single short query per request.
type MyMemoryService struct {
	email   string
	baseURL string
	client  *http.Client
}

func NewMyMemoryService(email string) *MyMemoryService {
	return &MyMemoryService{
		email:   email,
		baseURL: myMemoryURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *MyMemoryService) Name() string {
	return "mymemory"
}

func (s *MyMemoryService) Translate(ctx context.Context, cfg ServiceConfig, req TranslateRequest) (*ServiceResult, error) {
	result := &ServiceResult{ServiceName: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	sourceLang := req.SourceLang
	if sourceLang == "" || sourceLang == "auto" {
		sourceLang = "en"
	}
	langPair := fmt.Sprintf("%s|%s", sourceLang, req.TargetLang)

	var minMatch float64 = 1
	translations := make([]string, 0, len(req.Texts))
	for i, text := range req.Texts {
		translated, match, err := s.translateOne(ctx, text, langPair)
		if err != nil {
			result.Error = fmt.Sprintf("item %d: %v", i, err)
			return result, fmt.Errorf("item %d: %w", i, err)
		}
		translations = append(translations, translated)
		minMatch = min(minMatch, match)
	}

	result.Translations = translations
	result.Metadata = map[string]string{
		"requests":  strconv.Itoa(len(req.Texts)),
		"min_match": strconv.FormatFloat(max(minMatch, 0), 'f', 2, 64),
	}

	return result, nil
}

func (s *MyMemoryService) translateOne(ctx context.Context, text, langPair string) (string, float64, error) {
	q := url.Values{}
	q.Set("q", text)
	q.Set("langpair", langPair)
	if s.email != "" {
		q.Set("de", s.email)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var mymemResp struct {
		ResponseData struct {
			TranslatedText string  `json:"translatedText"`
			Match          float64 `json:"match"`
		} `json:"responseData"`
		ResponseStatus  int    `json:"responseStatus"`
		ResponseDetails string `json:"responseDetails"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&mymemResp); err != nil {
		return "", 0, fmt.Errorf("failed to decode response: %w", err)
	}

	if mymemResp.ResponseStatus != http.StatusOK {
		return "", 0, fmt.Errorf("API error: %s (%d)", mymemResp.ResponseDetails, mymemResp.ResponseStatus)
	}

	return mymemResp.ResponseData.TranslatedText, mymemResp.ResponseData.Match, nil
}

func (s *MyMemoryService) IsAvailable(ctx context.Context) error {
	return nil
}

func (s *MyMemoryService) SupportedLanguages(ctx context.Context) ([]string, error) {
	return []string{
		"en", "es", "fr", "de", "it", "pt", "ru", "ja", "ko", "zh",
		"ar", "nl", "pl", "tr", "sv", "da", "no", "fi", "el", "he",
		"th", "vi", "id", "ms", "cs", "hu", "ro", "uk", "bg", "ca",
	}, nil
}
