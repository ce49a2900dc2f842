package translator

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
)

type fakeInvoker struct {
	got  *lambda.InvokeInput
	out  *lambda.InvokeOutput
	err  error
	call int
}

func (f *fakeInvoker) Invoke(_ context.Context, params *lambda.InvokeInput, _ ...func(*lambda.Options)) (*lambda.InvokeOutput, error) {
	f.call++
	f.got = params
	return f.out, f.err
}

func newFakeLambda(inv *fakeInvoker) *LambdaService {
	svc := NewLambdaService("translator-fn", "eu-west-1")
	svc.client = inv
	return svc
}

func payload(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestLambdaService_Translate(t *testing.T) {
	inv := &fakeInvoker{out: &lambda.InvokeOutput{
		Payload: payload(t, LambdaResponse{Translations: [][]string{{"Hola", "Adiós"}}}),
	}}
	svc := newFakeLambda(inv)

	result, err := svc.Translate(context.Background(), ServiceConfig{}, TranslateRequest{
		Texts:      []string{"Hello", "Bye"},
		SourceLang: "en",
		TargetLang: "es",
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(result.Translations, []string{"Hola", "Adiós"}) {
		t.Errorf("unexpected translations %v", result.Translations)
	}
	if aws.ToString(inv.got.FunctionName) != "translator-fn" {
		t.Errorf("unexpected function name %q", aws.ToString(inv.got.FunctionName))
	}

	var sent LambdaRequest
	if err := json.Unmarshal(inv.got.Payload, &sent); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if len(sent.Chunks) != 1 || !reflect.DeepEqual(sent.Chunks[0], []string{"Hello", "Bye"}) {
		t.Errorf("expected the batch as a single chunk, got %v", sent.Chunks)
	}
	if sent.TargetLang != "es" {
		t.Errorf("expected target es, got %q", sent.TargetLang)
	}
}

func TestLambdaService_Translate_Errors(t *testing.T) {
	tests := []struct {
		name string
		inv  *fakeInvoker
	}{
		{"invoke error", &fakeInvoker{err: errors.New("throttled")}},
		{"function error", &fakeInvoker{out: &lambda.InvokeOutput{FunctionError: aws.String("Unhandled")}}},
		{"translator error", &fakeInvoker{out: &lambda.InvokeOutput{Payload: payload(t, LambdaResponse{Error: "model not loaded"})}}},
		{"bad payload", &fakeInvoker{out: &lambda.InvokeOutput{Payload: []byte("not json")}}},
		{"chunk count", &fakeInvoker{out: &lambda.InvokeOutput{Payload: payload(t, LambdaResponse{Translations: [][]string{}})}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeLambda(tt.inv)
			result, err := svc.Translate(context.Background(), ServiceConfig{}, TranslateRequest{
				Texts:      []string{"Hello"},
				TargetLang: "es",
			})
			if err == nil {
				t.Fatal("expected error")
			}
			if result.Error == "" {
				t.Error("expected error message in result")
			}
		})
	}
}

func TestLambdaService_NoFunction(t *testing.T) {
	svc := NewLambdaService("", "")

	if err := svc.IsAvailable(context.Background()); err == nil {
		t.Error("expected error when function name is not configured")
	}
	if _, err := svc.Translate(context.Background(), ServiceConfig{}, TranslateRequest{Texts: []string{"a"}}); err == nil {
		t.Error("expected error when function name is not configured")
	}
}
