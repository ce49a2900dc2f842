/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/valpere/stringtran/internal"
	"github.com/valpere/stringtran/internal/orchestrator"
	"github.com/valpere/stringtran/internal/resources"
	"github.com/valpere/stringtran/internal/store"
	"github.com/valpere/stringtran/internal/translator"
)

// newService is replaced in tests.
var newService = buildService

var translateCmd = &cobra.Command{
	Use:   "translate <input> <output>",
	Short: "Translate an Android strings.xml file",
	Long: `Translate every <string> and plural <item> of an Android resource file
and write a copy with the translated text. Everything else in the file
(comments, attributes, formatting, untouched elements) is kept as is.

Available services:
  - google      Google Translate (credentials file or API key)
  - mymemory    MyMemory (free, 5000 chars/day)
  - systran     Systran Translate (requires API key)
  - ollama      Ollama LLM (self-hosted)
  - openrouter  OpenRouter LLM (requires API key)
  - lambda      AWS Lambda translation function

Example:
  stringtran translate res/values/strings.xml res/values-es/strings.xml -t es`,
	Args: cobra.ExactArgs(2),
	RunE: runTranslate,
}

func runTranslate(cmd *cobra.Command, args []string) error {
	inputFile, outputFile := args[0], args[1]

	if err := cfg.Validate(); err != nil {
		return err
	}

	inAbs, err := filepath.Abs(inputFile)
	if err != nil {
		return fmt.Errorf("failed to resolve input path: %w", err)
	}
	outAbs, err := filepath.Abs(outputFile)
	if err != nil {
		return fmt.Errorf("failed to resolve output path: %w", err)
	}
	if inAbs == outAbs {
		return fmt.Errorf("input file and output file cannot be the same")
	}
	if _, err := os.Stat(inputFile); err != nil {
		return fmt.Errorf("input file not found: %w", err)
	}

	doc, err := resources.ReadFile(inputFile, resources.Options{SkipNonTranslatable: cfg.SkipUntranslatable})
	if err != nil {
		return err
	}
	texts := doc.Texts()
	fmt.Printf("Translatable nodes found: %d\n", len(texts))

	svc, err := newService(cfg.Service, cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	log := logger.With(zap.String("service", svc.Name()), zap.String("input", inputFile))

	if err := checkTarget(ctx, svc, cfg.TargetLang); err != nil {
		if errors.Is(err, translator.ErrUnsupportedLanguage) {
			return err
		}
		log.Warn("could not verify target language", zap.String("target", cfg.TargetLang), zap.Error(err))
	}

	opts := []orchestrator.Option{
		orchestrator.WithLogger(log),
		orchestrator.WithServiceConfig(cfg.Provider(cfg.Service).ServiceConfig),
	}

	var journal *store.Store
	var runID string
	if !cfg.Journal.Disabled && cfg.Journal.Path != "" {
		journal, runID = openJournal(ctx, log, internal.RunRequest{
			InputFile:  inputFile,
			OutputFile: outputFile,
			SourceLang: cfg.SourceLang,
			TargetLang: cfg.TargetLang,
			Service:    svc.Name(),
			Units:      len(texts),
			Timestamp:  time.Now(),
		})
		if journal != nil {
			defer journal.Close()
			opts = append(opts, orchestrator.WithRecorder(&journalRecorder{store: journal, runID: runID}))
		}
	}

	if !cfg.NoProgress {
		var bar *progressbar.ProgressBar
		opts = append(opts, orchestrator.WithProgress(func(done, total int) {
			if bar == nil {
				bar = newProgressBar(total, filepath.Base(inputFile))
			}
			bar.Set(done)
		}))
	}

	orch := orchestrator.New(svc, cfg.Pipeline(), opts...)
	res, runErr := orch.Run(ctx, texts)

	if journal != nil {
		unique := 0
		if res != nil {
			unique = res.Unique
		}
		if err := journal.FinishRun(ctx, runID, unique, runErr); err != nil {
			log.Warn("failed to finish journal run", zap.String("run_id", runID), zap.Error(err))
		}
	}

	if runErr != nil {
		return fmt.Errorf("translation failed: %w", runErr)
	}

	if err := doc.WriteFile(outputFile, res.Texts); err != nil {
		return err
	}

	fmt.Printf("\n✔ Done: %s\n", outputFile)
	return nil
}

func checkTarget(ctx context.Context, svc translator.TranslationService, lang string) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	return translator.CheckTargetLanguage(ctx, svc, lang)
}

// openJournal starts a journal run. Journal problems are logged and never
// stop the translation.
func openJournal(ctx context.Context, log *zap.Logger, req internal.RunRequest) (*store.Store, string) {
	db, err := store.New(cfg.Journal.Path)
	if err != nil {
		log.Warn("journal disabled", zap.String("path", cfg.Journal.Path), zap.Error(err))
		return nil, ""
	}

	id, err := db.StartRun(ctx, req)
	if err != nil {
		log.Warn("journal disabled", zap.String("path", cfg.Journal.Path), zap.Error(err))
		db.Close()
		return nil, ""
	}

	log.Debug("journal run started", zap.String("run_id", id))
	return db, id
}

// journalRecorder writes orchestrator batch reports to the run journal.
type journalRecorder struct {
	store *store.Store
	runID string
}

func (r *journalRecorder) RecordBatch(ctx context.Context, rep orchestrator.BatchReport) error {
	b := store.Batch{
		Index:    rep.Index,
		Items:    rep.Items,
		Chars:    rep.Chars,
		Attempts: rep.Attempts,
		Waited:   rep.Waited,
		Latency:  rep.Latency,
	}
	if rep.Err != nil {
		b.Error = rep.Err.Error()
	}
	return r.store.RecordBatch(ctx, r.runID, b)
}

func newProgressBar(total int, label string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(fmt.Sprintf("[cyan]%s[reset]", label)),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}

func init() {
	rootCmd.AddCommand(translateCmd)

	f := translateCmd.Flags()
	f.StringP("source", "s", "en", "Source language code")
	f.StringP("target", "t", "es", "Target language code")
	f.Int("max-chars", 3500, "Maximum characters per provider request")
	f.Int("max-retries", 3, "Retries per batch after the first attempt")
	f.Duration("backoff", 2*time.Second, "Base wait before the first retry, doubled on each retry")
	f.String("service", "google", "Translation service to use")
	f.String("api-key", "", "API key for the selected service")
	f.Bool("skip-untranslatable", false, `Leave elements with translatable="false" untouched`)
	f.Bool("no-journal", false, "Do not record the run in the journal")
	f.Bool("no-progress", false, "Hide the progress bar")

	f.StringP("credentials", "c", "", "Google Cloud credentials file")
	f.String("project", "", "Google Cloud project ID")
	f.String("ollama-url", "http://localhost:11434", "Ollama server URL")
	f.String("ollama-model", "", "Ollama model (default: random from the built-in list)")
	f.StringSlice("openrouter-models", nil, "OpenRouter models to pick from")
	f.String("mymemory-email", "", "Contact email for a higher MyMemory quota")
	f.String("lambda-function", "", "AWS Lambda translation function name or ARN")
	f.String("lambda-region", "", "AWS region of the Lambda function")

	bindFlag("source", f.Lookup("source"))
	bindFlag("target", f.Lookup("target"))
	bindFlag("max_chars", f.Lookup("max-chars"))
	bindFlag("max_retries", f.Lookup("max-retries"))
	bindFlag("backoff", f.Lookup("backoff"))
	bindFlag("service", f.Lookup("service"))
	bindFlag("api_key", f.Lookup("api-key"))
	bindFlag("skip_untranslatable", f.Lookup("skip-untranslatable"))
	bindFlag("journal.disabled", f.Lookup("no-journal"))
	bindFlag("no_progress", f.Lookup("no-progress"))

	bindFlag("providers.google.credentials", f.Lookup("credentials"))
	bindFlag("providers.google.project_id", f.Lookup("project"))
	bindFlag("providers.ollama.base_url", f.Lookup("ollama-url"))
	bindFlag("providers.ollama.model", f.Lookup("ollama-model"))
	bindFlag("providers.openrouter.models", f.Lookup("openrouter-models"))
	bindFlag("providers.mymemory.email", f.Lookup("mymemory-email"))
	bindFlag("providers.lambda.function_name", f.Lookup("lambda-function"))
	bindFlag("providers.lambda.region", f.Lookup("lambda-region"))
}
