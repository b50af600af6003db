package services

import (
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	catalogValidator *validator.Validate
	validatorOnce    sync.Once
)

// V returns the validator used for catalog input.
func V() *validator.Validate {
	validatorOnce.Do(func() {
		catalogValidator = validator.New(validator.WithRequiredStructEnabled())
		catalogValidator.RegisterValidation("catalogslug", slugValidator)
	})
	return catalogValidator
}

var slugRegex = regexp.MustCompile(`^[a-z0-9-]+$`)

func slugValidator(fl validator.FieldLevel) bool {
	return slugRegex.MatchString(fl.Field().String())
}

// valid reports whether v satisfies the validator tag.
func valid(v any, tag string) bool {
	return V().Var(v, tag) == nil
}

// Slugify turns a name into a slug: accents are stripped, letters are
// lowercased and every run of other characters becomes a single hyphen.
// The result may be empty.
func Slugify(name string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	pending := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pending && b.Len() > 0 {
				b.WriteByte('-')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}
