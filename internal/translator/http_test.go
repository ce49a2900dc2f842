package translator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const testSep = "\n<<<SEG>>>\n"

func TestMyMemoryService_Translate_PerItem(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if got := r.URL.Query().Get("langpair"); got != "en|es" {
			t.Errorf("expected langpair en|es, got %q", got)
		}
		if got := r.URL.Query().Get("de"); got != "test@example.com" {
			t.Errorf("expected email in query, got %q", got)
		}
		resp := map[string]interface{}{
			"responseData": map[string]interface{}{
				"translatedText": "es:" + r.URL.Query().Get("q"),
				"match":          0.9,
			},
			"responseStatus": 200,
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	svc := NewMyMemoryService("test@example.com")
	svc.baseURL = server.URL
	svc.client = server.Client()

	result, err := svc.Translate(context.Background(), ServiceConfig{}, TranslateRequest{
		Texts:      []string{"Hello", "Bye __TOK0__"},
		SourceLang: "en",
		TargetLang: "es",
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"es:Hello", "es:Bye __TOK0__"}
	if !reflect.DeepEqual(result.Translations, want) {
		t.Errorf("expected %v, got %v", want, result.Translations)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 requests, got %d", calls.Load())
	}
	if result.Metadata["requests"] != "2" {
		t.Errorf("expected requests metadata, got %v", result.Metadata)
	}
}

func TestMyMemoryService_Translate_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"responseStatus":  429,
			"responseDetails": "quota exceeded",
		})
	}))
	defer server.Close()

	svc := NewMyMemoryService("")
	svc.baseURL = server.URL
	svc.client = server.Client()

	result, err := svc.Translate(context.Background(), ServiceConfig{}, TranslateRequest{
		Texts:      []string{"Hello"},
		TargetLang: "es",
	})

	if err == nil {
		t.Fatal("expected error for API error status")
	}
	if !strings.Contains(result.Error, "quota exceeded") {
		t.Errorf("expected details in result error, got %q", result.Error)
	}
}

func TestMyMemoryService_Name(t *testing.T) {
	svc := NewMyMemoryService("")

	if svc.Name() != "mymemory" {
		t.Errorf("expected 'mymemory', got %q", svc.Name())
	}
	if err := svc.IsAvailable(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSystranService_Translate_NoAPIKey(t *testing.T) {
	svc := NewSystranService("")

	result, err := svc.Translate(context.Background(), ServiceConfig{}, TranslateRequest{
		Texts:      []string{"Hello"},
		SourceLang: "en",
		TargetLang: "fr",
	})

	if err == nil {
		t.Error("expected error when no API key")
	}
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result.Error == "" {
		t.Error("expected error message in result")
	}
}

func TestSystranService_Translate_List(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-RapidAPI-Key") != "test-key" {
			t.Errorf("expected API key header")
		}
		var req struct {
			Text   []string `json:"text"`
			Source string   `json:"source"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Source != "en" {
			t.Errorf("expected source en, got %q", req.Source)
		}
		outputs := make([]map[string]string, len(req.Text))
		for i, txt := range req.Text {
			outputs[i] = map[string]string{"output": strings.ToUpper(txt)}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"outputs": outputs})
	}))
	defer server.Close()

	svc := NewSystranService("test-key")
	svc.baseURL = server.URL
	svc.client = server.Client()

	result, err := svc.Translate(context.Background(), ServiceConfig{}, TranslateRequest{
		Texts:      []string{"a", "b", "c"},
		SourceLang: "en",
		TargetLang: "fr",
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(result.Translations, []string{"A", "B", "C"}) {
		t.Errorf("expected [A B C], got %v", result.Translations)
	}
}

func TestSystranService_Translate_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("Forbidden"))
	}))
	defer server.Close()

	svc := NewSystranService("test-key")
	svc.baseURL = server.URL
	svc.client = server.Client()

	result, err := svc.Translate(context.Background(), ServiceConfig{}, TranslateRequest{
		Texts:      []string{"Hello"},
		SourceLang: "en",
		TargetLang: "fr",
	})

	if err == nil {
		t.Error("expected error for non-OK status")
	}
	if result == nil {
		t.Fatal("expected non-nil result")
	}
}

func TestSystranService_IsAvailable(t *testing.T) {
	if err := NewSystranService("").IsAvailable(context.Background()); err == nil {
		t.Error("expected error when no API key")
	}
	if err := NewSystranService("test-key").IsAvailable(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestOllamaTranslator_Translate_JoinedBatch(t *testing.T) {
	var gotPrompt, gotSystem string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		gotPrompt, _ = req["prompt"].(string)
		gotSystem, _ = req["system"].(string)
		resp := map[string]interface{}{
			"response": "<think>ok</think>Hola __TOK0__\n\n<<<SEG>>>\n\"Adiós\"",
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	svc := &OllamaTranslator{
		baseURL: server.URL,
		models:  []string{"llama3.2"},
		client:  server.Client(),
	}

	result, err := svc.Translate(context.Background(), ServiceConfig{}, TranslateRequest{
		Texts:      []string{"Hello __TOK0__", "Bye"},
		SourceLang: "en",
		TargetLang: "es",
		Separator:  testSep,
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPrompt != "Hello __TOK0__"+testSep+"Bye" {
		t.Errorf("unexpected prompt %q", gotPrompt)
	}
	if !strings.Contains(gotSystem, "__TOK") || !strings.Contains(gotSystem, "<<<SEG>>>") {
		t.Errorf("expected token and separator instructions in system prompt, got %q", gotSystem)
	}
	want := []string{"Hola __TOK0__", "Adiós"}
	if !reflect.DeepEqual(result.Translations, want) {
		t.Errorf("expected %v, got %v", want, result.Translations)
	}
	if result.Metadata["model"] != "llama3.2" {
		t.Errorf("expected model in metadata, got %v", result.Metadata)
	}
}

func TestOllamaTranslator_Translate_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := &OllamaTranslator{
		baseURL: server.URL,
		models:  []string{"llama3.2"},
		client:  server.Client(),
	}

	result, err := svc.Translate(context.Background(), ServiceConfig{}, TranslateRequest{
		Texts:      []string{"Hello"},
		SourceLang: "en",
		TargetLang: "uk",
	})

	if err == nil {
		t.Error("expected error for non-OK status")
	}
	if result == nil {
		t.Fatal("expected non-nil result")
	}
}

func TestOllamaTranslator_IsAvailable_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := &OllamaTranslator{
		baseURL: server.URL,
		client:  server.Client(),
	}

	if err := svc.IsAvailable(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestOllamaTranslator_IsAvailable_NotRunning(t *testing.T) {
	svc := &OllamaTranslator{
		baseURL: "http://localhost:19999",
		client:  &http.Client{Timeout: 100 * time.Millisecond},
	}

	if err := svc.IsAvailable(context.Background()); err == nil {
		t.Error("expected error when Ollama not available")
	}
}

func TestOpenRouterService_Translate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer or-key" {
			t.Errorf("expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		var req struct {
			Model    string              `json:"model"`
			Messages []map[string]string `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "test/model" {
			t.Errorf("expected configured model, got %q", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[1]["content"] != "One"+testSep+"Two" {
			t.Errorf("unexpected messages %v", req.Messages)
		}
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "Uno" + testSep + "Dos"}},
			},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 4},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	svc := NewOpenRouterService("or-key", server.URL, []string{"test/model"})
	svc.client = server.Client()

	result, err := svc.Translate(context.Background(), ServiceConfig{}, TranslateRequest{
		Texts:      []string{"One", "Two"},
		SourceLang: "en",
		TargetLang: "es",
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(result.Translations, []string{"Uno", "Dos"}) {
		t.Errorf("expected [Uno Dos], got %v", result.Translations)
	}
	if result.Metadata["prompt_tokens"] != "10" {
		t.Errorf("expected usage metadata, got %v", result.Metadata)
	}
}

func TestOpenRouterService_Translate_NoAPIKey(t *testing.T) {
	svc := NewOpenRouterService("", "", nil)

	_, err := svc.Translate(context.Background(), ServiceConfig{}, TranslateRequest{
		Texts:      []string{"Hello"},
		TargetLang: "es",
	})

	if err == nil {
		t.Error("expected error when no API key")
	}
}

func TestOpenRouterService_Translate_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	}))
	defer server.Close()

	svc := NewOpenRouterService("or-key", server.URL, nil)
	svc.client = server.Client()

	_, err := svc.Translate(context.Background(), ServiceConfig{}, TranslateRequest{
		Texts:      []string{"Hello"},
		TargetLang: "es",
	})

	if err == nil {
		t.Error("expected error for empty choices")
	}
}

func TestSegments_RoundTrip(t *testing.T) {
	texts := []string{"a", "", "c d", "e\nf"}
	got := SplitSegments(JoinSegments(texts, testSep), testSep)

	if !reflect.DeepEqual(got, texts) {
		t.Errorf("expected %v, got %v", texts, got)
	}
}

func TestGoogleService_IsAvailable(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	if err := NewGoogleService("", "").IsAvailable(context.Background()); err == nil {
		t.Error("expected error with no credentials")
	}
	if err := NewGoogleService("", "key").IsAvailable(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := NewGoogleService("/nonexistent/creds.json", "").IsAvailable(context.Background()); err == nil {
		t.Error("expected error for missing credentials file")
	}
}

func TestGoogleService_Translate_InvalidTarget(t *testing.T) {
	svc := NewGoogleService("", "key")

	result, err := svc.Translate(context.Background(), ServiceConfig{}, TranslateRequest{
		Texts:      []string{"Hello"},
		TargetLang: "not a language!",
	})

	if err == nil {
		t.Error("expected error for invalid target language")
	}
	if result.Error == "" {
		t.Error("expected error message in result")
	}
}

func TestSplitLLMResponse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"single item is cleaned whole", "<think>hm</think>\n\"Hola\"\n", []string{"Hola"}},
		{"quotes stripped per item", "\"Uno\"" + testSep + "Dos", []string{"Uno", "Dos"}},
		{"separator variants", "Uno\n\n<<<seg>>>  \nDos", []string{"Uno", "Dos"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitLLMResponse(tt.raw, testSep)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitLLMResponse(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
