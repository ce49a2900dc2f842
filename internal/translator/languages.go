package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

var ErrUnsupportedLanguage = errors.New("language not supported by service")

// CheckTargetLanguage reports ErrUnsupportedLanguage when svc publishes a
// language list that has no match for lang. Codes match exactly or by base
// language, so "pt-BR" is accepted by a service listing "pt". Errors from
// listing the languages are returned as is.
func CheckTargetLanguage(ctx context.Context, svc TranslationService, lang string) error {
	codes, err := svc.SupportedLanguages(ctx)
	if err != nil {
		return fmt.Errorf("%s: listing languages: %w", svc.Name(), err)
	}
	if len(codes) == 0 {
		return nil
	}

	want, wantErr := language.Parse(lang)
	wantBase, _ := want.Base()
	for _, code := range codes {
		if strings.EqualFold(code, lang) {
			return nil
		}
		if wantErr != nil {
			continue
		}
		if tag, err := language.Parse(code); err == nil {
			if base, _ := tag.Base(); base == wantBase {
				return nil
			}
		}
	}
	return fmt.Errorf("%w: %s does not translate to %q", ErrUnsupportedLanguage, svc.Name(), lang)
}
