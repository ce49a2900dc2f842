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
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/valpere/stringtran/internal/config"
	"github.com/valpere/stringtran/internal/translator"
)

// buildService constructs the named translation service from its provider
// settings.
func buildService(name string, c *config.Config) (translator.TranslationService, error) {
	p := c.Provider(name)

	switch name {
	case "google":
		return translator.NewGoogleService(p.Credentials, p.APIKey), nil
	case "mymemory":
		return translator.NewMyMemoryService(p.Email), nil
	case "systran":
		return translator.NewSystranService(p.APIKey), nil
	case "ollama":
		return translator.NewOllamaTranslator(p.BaseURL, p.Models), nil
	case "openrouter":
		return translator.NewOpenRouterService(p.APIKey, p.BaseURL, p.Models), nil
	case "lambda":
		return translator.NewLambdaService(p.FunctionName, p.Region), nil
	default:
		return nil, fmt.Errorf("unknown service %q (available: %s)", name, strings.Join(config.ProviderNames, ", "))
	}
}

// bindFlag ties a flag to a viper key. Missing flags are a programming error.
func bindFlag(key string, f *pflag.Flag) {
	if f == nil {
		panic("flag for " + key + " is not defined")
	}
	if err := v.BindPFlag(key, f); err != nil {
		panic(err)
	}
}

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List translation services, their availability and target language support",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "SERVICE\tTARGET %s\tSTATUS\n", cfg.TargetLang)

		for _, name := range config.ProviderNames {
			svc, err := newService(name, cfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			status := "available"
			if err := svc.IsAvailable(ctx); err != nil {
				status = "unavailable: " + err.Error()
			}
			target := targetSupport(ctx, svc, cfg.TargetLang)
			cancel()

			marker := " "
			if name == cfg.Service {
				marker = "*"
			}
			fmt.Fprintf(w, "%s %s\t%s\t%s\n", marker, name, target, status)
		}
		return w.Flush()
	},
}

// targetSupport summarises CheckTargetLanguage for the services table.
func targetSupport(ctx context.Context, svc translator.TranslationService, lang string) string {
	err := translator.CheckTargetLanguage(ctx, svc, lang)
	switch {
	case err == nil:
		return "yes"
	case errors.Is(err, translator.ErrUnsupportedLanguage):
		return "no"
	default:
		return "unknown"
	}
}

func init() {
	rootCmd.AddCommand(servicesCmd)
}
