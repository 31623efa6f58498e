// Copyright Azure OpenAI Proxy Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package azure

// ContentFilterSeverityResult is a severity-class category of the Azure
// content filter (hate, self_harm, sexual, violence).
type ContentFilterSeverityResult struct {
	Filtered bool   `json:"filtered"`
	Severity string `json:"severity"`
}

// ContentFilterDetectedResult is a detection-class category of the Azure
// content filter (jailbreak, and on some surfaces profanity).
type ContentFilterDetectedResult struct {
	Filtered bool `json:"filtered"`
	Detected bool `json:"detected"`
}

// ContentFilterResults is the per-choice (and per-prompt) content filter
// object. Jailbreak appears only on prompt-level results.
type ContentFilterResults struct {
	Hate      *ContentFilterSeverityResult `json:"hate,omitempty"`
	SelfHarm  *ContentFilterSeverityResult `json:"self_harm,omitempty"`
	Sexual    *ContentFilterSeverityResult `json:"sexual,omitempty"`
	Violence  *ContentFilterSeverityResult `json:"violence,omitempty"`
	Jailbreak *ContentFilterDetectedResult `json:"jailbreak,omitempty"`
}

// SeveritySafe is the severity Azure reports for unfiltered content.
const SeveritySafe = "safe"

// SafeContentFilterResults returns the four-category "safe" scaffold attached
// to every content-bearing choice and chunk. The proxy performs no filtering
// of its own; a future policy engine replaces this constructor with a
// function of the message content without changing any call site.
func SafeContentFilterResults() *ContentFilterResults {
	return &ContentFilterResults{
		Hate:     &ContentFilterSeverityResult{Severity: SeveritySafe},
		SelfHarm: &ContentFilterSeverityResult{Severity: SeveritySafe},
		Sexual:   &ContentFilterSeverityResult{Severity: SeveritySafe},
		Violence: &ContentFilterSeverityResult{Severity: SeveritySafe},
	}
}

// SafePromptContentFilterResults returns the prompt-level scaffold, which
// additionally carries the jailbreak detection category.
func SafePromptContentFilterResults() *ContentFilterResults {
	r := SafeContentFilterResults()
	r.Jailbreak = &ContentFilterDetectedResult{}
	return r
}

// PromptFilterResult is one element of prompt_filter_results.
type PromptFilterResult struct {
	PromptIndex          int64                 `json:"prompt_index"`
	ContentFilterResults *ContentFilterResults `json:"content_filter_results"`
}

// SafePromptFilterResults returns the single-element prompt_filter_results
// list injected into every buffered chat response.
func SafePromptFilterResults() []PromptFilterResult {
	return []PromptFilterResult{{ContentFilterResults: SafePromptContentFilterResults()}}
}

// EmptyContentFilterResults returns the empty object emitted on role and
// final chunks.
func EmptyContentFilterResults() *ContentFilterResults {
	return &ContentFilterResults{}
}
