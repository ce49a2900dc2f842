package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
)

// lambdaInvoker is the part of *lambda.Client the service needs.
type lambdaInvoker interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// LambdaRequest is the payload sent to a translator function. The batch
// travels as a single chunk.
type LambdaRequest struct {
	Chunks     [][]string `json:"chunks"`
	SourceLang string     `json:"source_lang,omitempty"`
	TargetLang string     `json:"target_lang,omitempty"`
}

// LambdaResponse mirrors LambdaRequest: one translated slice per chunk.
type LambdaResponse struct {
	Translations [][]string `json:"translations"`
	Error        string     `json:"error,omitempty"`
}

// LambdaService delegates a batch to a self-hosted translator running as an
// AWS Lambda function.
type LambdaService struct {
	functionName string
	region       string

	once    sync.Once
	client  lambdaInvoker
	initErr error
}

func NewLambdaService(functionName, region string) *LambdaService {
	return &LambdaService{functionName: functionName, region: region}
}

func (s *LambdaService) Name() string {
	return "lambda"
}

func (s *LambdaService) invoker(ctx context.Context) (lambdaInvoker, error) {
	s.once.Do(func() {
		if s.client != nil {
			return
		}
		var opts []func(*config.LoadOptions) error
		if s.region != "" {
			opts = append(opts, config.WithRegion(s.region))
		}
		cfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			s.initErr = fmt.Errorf("failed to load AWS config: %w", err)
			return
		}
		s.client = lambda.NewFromConfig(cfg)
	})
	return s.client, s.initErr
}

func (s *LambdaService) Translate(ctx context.Context, cfg ServiceConfig, req TranslateRequest) (*ServiceResult, error) {
	result := &ServiceResult{ServiceName: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	functionName := cfg.FunctionName
	if functionName == "" {
		functionName = s.functionName
	}
	if functionName == "" {
		result.Error = "Lambda function name required"
		return result, fmt.Errorf("Lambda function name required")
	}

	client, err := s.invoker(ctx)
	if err != nil {
		result.Error = err.Error()
		return result, err
	}

	payload, err := json.Marshal(LambdaRequest{
		Chunks:     [][]string{req.Texts},
		SourceLang: req.SourceLang,
		TargetLang: req.TargetLang,
	})
	if err != nil {
		result.Error = fmt.Sprintf("failed to marshal request: %v", err)
		return result, fmt.Errorf("failed to marshal request: %w", err)
	}

	out, err := client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName: aws.String(functionName),
		Payload:      payload,
	})
	if err != nil {
		result.Error = fmt.Sprintf("failed to invoke %s: %v", functionName, err)
		return result, fmt.Errorf("failed to invoke %s: %w", functionName, err)
	}

	if out.FunctionError != nil {
		result.Error = fmt.Sprintf("lambda error: %s", *out.FunctionError)
		return result, fmt.Errorf("lambda error: %s", *out.FunctionError)
	}

	var resp LambdaResponse
	if err := json.Unmarshal(out.Payload, &resp); err != nil {
		result.Error = fmt.Sprintf("failed to parse response: %v", err)
		return result, fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.Error != "" {
		result.Error = fmt.Sprintf("translator error: %s", resp.Error)
		return result, fmt.Errorf("translator error: %s", resp.Error)
	}

	if len(resp.Translations) != 1 {
		result.Error = fmt.Sprintf("expected 1 chunk, got %d", len(resp.Translations))
		return result, fmt.Errorf("expected 1 chunk, got %d", len(resp.Translations))
	}

	result.Translations = resp.Translations[0]
	result.Metadata = map[string]string{"function": functionName}

	return result, nil
}

func (s *LambdaService) IsAvailable(ctx context.Context) error {
	if s.functionName == "" {
		return fmt.Errorf("Lambda function name not configured")
	}
	return nil
}

func (s *LambdaService) SupportedLanguages(ctx context.Context) ([]string, error) {
	return nil, nil
}
