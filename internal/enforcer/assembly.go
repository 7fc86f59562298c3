package enforcer

import (
	"regexp"
	"strings"

	"github.com/bnema/cosmetic-filters/internal/models"
)

// HiddenStyle is the declaration block forced onto hidden elements
const HiddenStyle = "display:none!important;min-height:0!important;height:0!important;z-index:-99999!important;visibility:hidden!important;width:0!important;min-width:0!important;overflow:hidden!important"

const emptyIs = ":is()"

// Assembly is the CSS built from one host's resolved entries
type Assembly struct {
	Selectors     []string `json:"-"`
	PageSelectors []string `json:"-"`
	Exceptions    []string `json:"-"`

	ExceptionSelector         string `json:"exceptionSelector"`
	CombinedHideSelector      string `json:"combinedHideSelector"`
	PageSpecificSelector      string `json:"pageSpecificSelector"`
	InjectionCSS              string `json:"injectionCSS"`
	InjectionExceptionPattern string `json:"injectionExceptionPattern"`
}

// Assemble combines resolved entries into selectors and CSS. Entry order
// is kept.
func Assemble(entries []models.ResolvedEntry) Assembly {
	var (
		a          Assembly
		injections []string
		excepted   []string
	)

	for _, e := range entries {
		switch e.Kind {
		case models.KindSelector:
			a.Selectors = append(a.Selectors, e.Value)
			if !e.IsDefault {
				a.PageSelectors = append(a.PageSelectors, e.Value)
			}
		case models.KindException:
			a.Exceptions = append(a.Exceptions, e.Value)
		case models.KindInjection:
			injections = append(injections, e.Value)
		case models.KindInjectionException:
			excepted = append(excepted, e.Value)
		}
	}

	if len(a.Exceptions) > 0 {
		a.ExceptionSelector = ":not(" + strings.Join(a.Exceptions, ",") + ")"
	}
	a.CombinedHideSelector = ":is(" + strings.Join(a.Selectors, ",") + ")" + a.ExceptionSelector + "{" + HiddenStyle + "}"
	a.PageSpecificSelector = ":is(" + strings.Join(a.PageSelectors, ",") + ")" + a.ExceptionSelector
	a.InjectionCSS = strings.Join(injections, "")
	a.InjectionExceptionPattern = strings.Join(excepted, "|")
	return a
}

// HasPageSpecific reports whether any non-default hide selector resolved.
// Scans are skipped when it is false.
func (a Assembly) HasPageSpecific() bool {
	return !strings.HasPrefix(a.PageSpecificSelector, emptyIs)
}

// StrippedInjectionCSS removes every match of the injection exception
// pattern from the injection CSS. An invalid pattern leaves the CSS as is
// and is returned as the error.
func (a Assembly) StrippedInjectionCSS() (string, error) {
	if a.InjectionExceptionPattern == "" || a.InjectionCSS == "" {
		return a.InjectionCSS, nil
	}
	re, err := regexp.Compile(a.InjectionExceptionPattern)
	if err != nil {
		return a.InjectionCSS, err
	}
	return re.ReplaceAllString(a.InjectionCSS, ""), nil
}
