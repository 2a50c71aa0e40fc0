package router

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// Language families served by the translator Lambdas.
const (
	familyEnglish = "en"
	familyGerman  = "de"
	familyRomance = "romance"
)

// Romance languages supported by opus-mt-ROMANCE-en / opus-mt-en-ROMANCE.
// All these languages can translate to/from English via the romance Lambdas.
var romanceLanguages = map[string]bool{
	// Spanish variants
	"es": true, "es_AR": true, "es_CL": true, "es_CO": true, "es_CR": true,
	"es_DO": true, "es_EC": true, "es_ES": true, "es_GT": true, "es_HN": true,
	"es_MX": true, "es_NI": true, "es_PA": true, "es_PE": true, "es_PR": true,
	"es_SV": true, "es_UY": true, "es_VE": true,
	// French variants
	"fr": true, "fr_BE": true, "fr_CA": true, "fr_FR": true,
	"wa": true, "frp": true, "oc": true,
	// Italian and regional
	"it": true, "co": true, "nap": true, "scn": true, "vec": true,
	// Portuguese variants
	"pt": true, "pt_BR": true, "pt_PT": true,
	"gl": true, "mwl": true,
	// Catalan and related
	"ca": true, "an": true, "lad": true,
	"ro": true,
	// Other Romance
	"la": true, "rm": true, "lld": true, "fur": true, "lij": true, "lmo": true, "sc": true,
}

// NormalizeLang maps a language code such as "es-mx", "ES_MX" or "es" onto
// the translators' code set: base language plus region when the region is
// explicit and supported ("es_MX"), base language otherwise ("es").
// Codes that cannot be parsed are returned trimmed and unchanged.
func NormalizeLang(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}

	tag, err := language.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return code
	}

	base, _ := tag.Base()
	region, conf := tag.Region()
	if conf == language.Exact {
		regional := base.String() + "_" + region.String()
		if romanceLanguages[regional] {
			return regional
		}
	}
	return base.String()
}

// family returns the language family of a normalized code, or "" if unsupported.
func family(lang string) string {
	switch {
	case lang == familyEnglish:
		return familyEnglish
	case lang == familyGerman:
		return familyGerman
	case romanceLanguages[lang]:
		return familyRomance
	}
	return ""
}

// GetSupportedLanguages returns all supported language codes, sorted.
func GetSupportedLanguages() []string {
	langs := make([]string, 0, len(romanceLanguages)+2)
	for lang := range romanceLanguages {
		langs = append(langs, lang)
	}
	langs = append(langs, familyEnglish, familyGerman)
	sort.Strings(langs)
	return langs
}
