package main

import (
	"encoding/json"
	"strings"
)

// FeedItem represents one candidate item from the upstream news API.
type FeedItem struct {
	ID           string                      `json:"id"`
	SmartTitle   string                      `json:"smart_title"`
	Summary      Paragraphs                  `json:"summary"`
	Multilingual map[string]LocalizedContent `json:"content_multilingual"`
}

// LocalizedContent is one per-language title/summary variant of an item.
type LocalizedContent struct {
	Title   string     `json:"title"`
	Summary Paragraphs `json:"summary"`
}

// Paragraphs holds an item summary, which the API returns either as a single
// string or as an ordered list of paragraph strings.
type Paragraphs []string

// UnmarshalJSON accepts both representations.
func (p *Paragraphs) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*p = Paragraphs{single}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*p = Paragraphs(many)
	return nil
}

// Render joins the paragraphs with blank-line separators, dropping empties.
func (p Paragraphs) Render() string {
	parts := make([]string, 0, len(p))
	for _, s := range p {
		if t := strings.TrimSpace(s); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Localized returns the variant for the given language, if present.
func (it FeedItem) Localized(lang string) (LocalizedContent, bool) {
	lc, ok := it.Multilingual[lang]
	return lc, ok
}

// Resolve picks the title and body to publish: the localized variant for lang
// when it is usable, else the fallback smart_title/summary pair. ok is false
// when neither representation has a non-empty title and body.
func (it FeedItem) Resolve(lang string) (title, body string, ok bool) {
	if lc, found := it.Localized(lang); found {
		if t, b := strings.TrimSpace(lc.Title), lc.Summary.Render(); t != "" && b != "" {
			return t, b, true
		}
	}
	if t, b := strings.TrimSpace(it.SmartTitle), it.Summary.Render(); t != "" && b != "" {
		return t, b, true
	}
	return "", "", false
}

// AttemptStage names the step of a publish attempt, for logging.
type AttemptStage string

const (
	StageNavigate AttemptStage = "navigate"
	StageCompose  AttemptStage = "compose"
	StageSubmit   AttemptStage = "submit"
	StageConfirm  AttemptStage = "confirm"
)

// AttemptResult is the outcome of one publish attempt. A failed attempt is
// terminal for that item within the current cycle; the caller decides what
// happens next.
type AttemptResult struct {
	OK    bool
	Stage AttemptStage
	Err   error
}

func success() AttemptResult {
	return AttemptResult{OK: true}
}

func failure(stage AttemptStage, err error) AttemptResult {
	return AttemptResult{Stage: stage, Err: err}
}
