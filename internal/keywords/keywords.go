// Package keywords turns a natural-language question into the keyword set the
// matcher ranks with, plus a few surface entities (numbers, dates, quoted
// strings, capitalized names).
//
// Text analysis runs on bleve's language analyzers: unicode tokenization,
// elision, lowercasing, stop-word removal and, unless disabled, light
// stemming. Punctuation never reaches the keyword list.
package keywords

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/lang/fr"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	unicodetok "github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/registry"

	smerrors "github.com/Aman-CERP/schemamatch/internal/errors"
)

// Supported languages.
const (
	LanguageFrench  = "fr"
	LanguageEnglish = "en"
)

// DefaultLanguage is used when none is configured.
const DefaultLanguage = LanguageFrench

// Entity types.
const (
	EntityNumber = "NUM"
	EntityDate   = "DATE"
	EntityQuoted = "QUOTED"
	EntityProper = "PROPER"
)

// Entity is a span of the question worth passing through verbatim.
type Entity struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// Analysis is the result of analyzing one question.
type Analysis struct {
	Keywords []string `json:"keywords"`
	Entities []Entity `json:"entities,omitempty"`
}

// Option configures an Extractor.
type Option func(*options)

type options struct {
	stem bool
}

// WithStemming toggles light stemming. Enabled by default.
func WithStemming(enabled bool) Option {
	return func(o *options) {
		o.stem = enabled
	}
}

// Extractor analyzes questions in one language. Safe for concurrent use.
type Extractor struct {
	language string
	analyzer analysis.Analyzer
}

// NewExtractor builds an extractor for language ("fr" or "en").
func NewExtractor(language string, opts ...Option) (*Extractor, error) {
	o := options{stem: true}
	for _, opt := range opts {
		opt(&o)
	}
	if language == "" {
		language = DefaultLanguage
	}

	analyzer, err := newAnalyzer(language, o.stem)
	if err != nil {
		return nil, err
	}
	return &Extractor{language: language, analyzer: analyzer}, nil
}

func newAnalyzer(language string, stem bool) (analysis.Analyzer, error) {
	cache := registry.NewCache()

	var named string
	var filters []interface{}
	switch language {
	case LanguageFrench:
		named = fr.AnalyzerName
		filters = []interface{}{fr.ElisionName, lowercase.Name, fr.StopName}
	case LanguageEnglish:
		named = en.AnalyzerName
		filters = []interface{}{en.PossessiveName, lowercase.Name, en.StopName}
	default:
		return nil, smerrors.New(smerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("unsupported keyword language %q", language), nil).
			WithSuggestion("Set keywords.language to 'fr' or 'en'")
	}

	if stem {
		return cache.AnalyzerNamed(named)
	}
	return cache.DefineAnalyzer("schemamatch_"+language+"_nostem", map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicodetok.Name,
		"token_filters": filters,
	})
}

// Language returns the extractor's language code.
func (e *Extractor) Language() string {
	return e.language
}

// Analyze extracts keywords and entities from question.
// Keywords are distinct and in first-seen order.
func (e *Extractor) Analyze(question string) Analysis {
	a := Analysis{Keywords: []string{}}
	if strings.TrimSpace(question) == "" {
		return a
	}

	seen := make(map[string]struct{})
	for _, tok := range e.analyzer.Analyze([]byte(question)) {
		term := string(tok.Term)
		if !isKeyword(term) {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		a.Keywords = append(a.Keywords, term)
	}

	a.Entities = entities(question)
	return a
}

// Keywords is Analyze without entities.
func (e *Extractor) Keywords(question string) []string {
	return e.Analyze(question).Keywords
}

// isKeyword drops terms with no letter or digit.
func isKeyword(term string) bool {
	for _, r := range term {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

var (
	quotedRe = regexp.MustCompile(`"([^"]+)"|«\s*([^»]+?)\s*»`)
	dateRe   = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b|\b\d{1,2}/\d{1,2}/\d{4}\b`)
	numberRe = regexp.MustCompile(`\b\d+(?:[.,]\d+)?\b`)
	wordRe   = regexp.MustCompile(`[\p{L}][\p{L}\p{M}'-]*`)
)

// entities finds quoted strings, dates, numbers and capitalized words that
// do not start a sentence, in that priority; a span claimed by one kind is
// not reported again as another.
func entities(question string) []Entity {
	var out []Entity
	claimed := make([]bool, len(question))
	claim := func(start, end int) bool {
		for i := start; i < end; i++ {
			if claimed[i] {
				return false
			}
		}
		for i := start; i < end; i++ {
			claimed[i] = true
		}
		return true
	}

	for _, m := range quotedRe.FindAllStringSubmatchIndex(question, -1) {
		for g := 1; g < len(m)/2; g++ {
			if m[2*g] >= 0 && claim(m[0], m[1]) {
				out = append(out, Entity{Text: question[m[2*g]:m[2*g+1]], Type: EntityQuoted})
				break
			}
		}
	}
	for _, m := range dateRe.FindAllStringIndex(question, -1) {
		if claim(m[0], m[1]) {
			out = append(out, Entity{Text: question[m[0]:m[1]], Type: EntityDate})
		}
	}
	for _, m := range numberRe.FindAllStringIndex(question, -1) {
		if claim(m[0], m[1]) {
			out = append(out, Entity{Text: question[m[0]:m[1]], Type: EntityNumber})
		}
	}
	for _, m := range wordRe.FindAllStringIndex(question, -1) {
		word := question[m[0]:m[1]]
		if !startsUpper(word) || sentenceStart(question, m[0]) {
			continue
		}
		if claim(m[0], m[1]) {
			out = append(out, Entity{Text: word, Type: EntityProper})
		}
	}
	return out
}

func startsUpper(word string) bool {
	for _, r := range word {
		return unicode.IsUpper(r)
	}
	return false
}

// sentenceStart reports whether only spaces separate pos from the start of
// the text or from a sentence terminator.
func sentenceStart(text string, pos int) bool {
	prefix := strings.TrimRightFunc(text[:pos], unicode.IsSpace)
	if prefix == "" {
		return true
	}
	switch prefix[len(prefix)-1] {
	case '.', '!', '?', ':':
		return true
	}
	return false
}
