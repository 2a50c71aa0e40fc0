// Package domain contains the core domain types for the batch translator.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Texts is a list of texts that remembers whether it was given as a single
// JSON string, so responses can be unwrapped back to the same shape.
type Texts struct {
	Values []string
	Single bool
}

// One returns Texts holding a single text.
func One(text string) Texts {
	return Texts{Values: []string{text}, Single: true}
}

// Many returns Texts holding a list of texts.
func Many(texts ...string) Texts {
	if texts == nil {
		texts = []string{}
	}
	return Texts{Values: texts}
}

// Len returns the number of texts.
func (t Texts) Len() int {
	return len(t.Values)
}

// Reshape returns values in t's shape. A single-text input yields a single
// text; values must then hold exactly one element.
func (t Texts) Reshape(values []string) Texts {
	if t.Single && len(values) == 1 {
		return One(values[0])
	}
	return Many(values...)
}

// UnmarshalJSON accepts either a JSON string or an array of strings.
func (t *Texts) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = Texts{}
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = One(s)
		return nil
	}

	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("texts must be a string or an array of strings: %w", err)
	}
	*t = Many(values...)
	return nil
}

// MarshalJSON writes a JSON string for single texts, an array otherwise.
func (t Texts) MarshalJSON() ([]byte, error) {
	if t.Single && len(t.Values) == 1 {
		return json.Marshal(t.Values[0])
	}
	if t.Values == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t.Values)
}

// Target is the requested target language. Arrays of targets are decoded
// but rejected by Validate: one call translates into exactly one language.
type Target struct {
	Lang     string
	Multiple bool
}

// UnmarshalJSON accepts a JSON string; an array marks the target as Multiple.
func (t *Target) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var langs []string
		if err := json.Unmarshal(data, &langs); err != nil {
			return err
		}
		*t = Target{Multiple: true}
		if len(langs) > 0 {
			t.Lang = langs[0]
		}
		return nil
	}
	var lang string
	if err := json.Unmarshal(data, &lang); err != nil {
		return err
	}
	*t = Target{Lang: lang}
	return nil
}

// MarshalJSON writes the target language as a JSON string.
func (t Target) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Lang)
}

// Validate returns a ConfigError for a missing or multi-language target.
func (t Target) Validate() error {
	if t.Multiple {
		return NewConfigError("target", "multiple target languages are no longer supported")
	}
	if t.Lang == "" {
		return NewConfigError("target", "target language is required")
	}
	return nil
}

// Request is the input to the batch translator.
type Request struct {
	Texts       Texts  `json:"texts"`
	Source      string `json:"source,omitempty"`
	Target      Target `json:"target"`
	HTML        *bool  `json:"html,omitempty"`
	Model       string `json:"model,omitempty"`
	BatchSize   int    `json:"batch_size,omitempty"`
	Concurrency int    `json:"concurrency,omitempty"`
	APIKey      string `json:"api_key,omitempty"`

	// Params holds unrecognized keys, passed through to the translator.
	Params map[string]any `json:"-"`
}

// requestFields is the set of keys decoded into Request fields.
var requestFields = map[string]bool{
	"texts": true, "source": true, "target": true, "html": true, "model": true,
	"batch_size": true, "concurrency": true, "api_key": true,
}

// UnmarshalJSON decodes known keys into fields and the rest into Params.
func (r *Request) UnmarshalJSON(data []byte) error {
	type plain Request
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key, value := range raw {
		if requestFields[key] {
			continue
		}
		var v any
		if err := json.Unmarshal(value, &v); err != nil {
			return fmt.Errorf("param %q: %w", key, err)
		}
		if p.Params == nil {
			p.Params = make(map[string]any)
		}
		p.Params[key] = v
	}

	*r = Request(p)
	return nil
}

// Response is the output from the batch translator.
type Response struct {
	Translations    *Texts `json:"translations,omitempty"`
	ChunksProcessed int    `json:"chunksProcessed,omitempty"`
	DegradedChunks  []int  `json:"degradedChunks,omitempty"`
	Error           string `json:"error,omitempty"`
}

// TranslatorRequest is the request format for translator Lambdas.
// Chunks always holds a single batch; the field keeps the translators' chunked contract.
type TranslatorRequest struct {
	Chunks     [][]string     `json:"chunks"`
	SourceLang string         `json:"source_lang,omitempty"`
	TargetLang string         `json:"target_lang,omitempty"` // Required for en-romance
	Format     string         `json:"format,omitempty"`
	Model      string         `json:"model,omitempty"`
	Glossary   string         `json:"glossary,omitempty"`
	APIKey     string         `json:"api_key,omitempty"`
	Params     map[string]any `json:"params,omitempty"`
}

// TranslatorResponse is the response format from translator Lambdas.
type TranslatorResponse struct {
	Translations [][]string `json:"translations"`
	Error        string     `json:"error,omitempty"`
	ErrorCode    string     `json:"error_code,omitempty"`
}

// Params are the resolved per-call settings handed to a translation backend.
type Params struct {
	Source   string
	Target   string
	HTML     bool
	Model    string
	Glossary string
	APIKey   string
	Extra    map[string]any
}

// Format returns the request format, "html" or "text".
func (p Params) Format() string {
	if p.HTML {
		return "html"
	}
	return "text"
}
