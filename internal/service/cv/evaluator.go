// Package cv scores an uploaded CV against a fixed rubric.
package cv

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jobmate/backend/internal/apperr"
	"github.com/jobmate/backend/internal/observability"
	"github.com/jobmate/backend/internal/service/completion"
)

const (
	rubricTemperature = 0.6
	rubricMaxTokens   = 1100
)

const rubric = `You are a CV evaluation assistant. Analyse the CV text you are given.

Assess:
1. Profile: name, profession, years of experience and industry.
2. Skills: technical, soft and domain skills.
3. Experience: roles, responsibilities and achievements.
4. Education and certifications.
5. Strengths and weaknesses.
6. Suitable job roles.
7. Formatting and readability.

Score the CV out of 100:
- 90-100 Excellent: well structured, strong experience, relevant skills.
- 75-89 Good: strong CV with minor improvements needed.
- 50-74 Average: gaps in skills, experience or structure.
- Below 50 Needs improvement: significant gaps in content or relevance.

Reply with exactly these headed sections, in order:
## Summary of the CV
## Strengths & Weaknesses
## Job Suitability Recommendations
## CV Score (Out of 100)
## Actionable Improvement Tips`

// Section names of the report, in the order the rubric asks for them.
const (
	SectionSummary     = "Summary of the CV"
	SectionStrengths   = "Strengths & Weaknesses"
	SectionSuitability = "Job Suitability Recommendations"
	SectionScore       = "CV Score"
	SectionTips        = "Actionable Improvement Tips"
)

var sectionOrder = []string{SectionSummary, SectionStrengths, SectionSuitability, SectionScore, SectionTips}

var (
	scorePattern = regexp.MustCompile(`(?i)(\d{1,3})\s*(?:/|out of)\s*100`)
	bareNumber   = regexp.MustCompile(`\b(\d{1,3})\b`)
)

// Report is the evaluation of one CV. Raw is always the model output
// verbatim; Sections and Score are filled when they can be found.
type Report struct {
	Raw      string            `json:"raw"`
	Sections map[string]string `json:"sections,omitempty"`
	Missing  []string          `json:"missing,omitempty"`
	Score    *int              `json:"score,omitempty"`
}

// Completer is the blocking half of the completion client.
type Completer interface {
	Complete(ctx context.Context, req completion.Request) (string, error)
}

// Evaluator turns a document into a Report.
type Evaluator struct {
	extractor Extractor
	completer Completer
	timeout   time.Duration
	log       zerolog.Logger
	metrics   *observability.Metrics
}

type Options struct {
	Extractor Extractor // PDFExtractor when nil
	Timeout   time.Duration
	Logger    zerolog.Logger
	Metrics   *observability.Metrics
}

func NewEvaluator(c Completer, opts Options) (*Evaluator, error) {
	if c == nil {
		return nil, errors.New("completer is required")
	}
	ex := opts.Extractor
	if ex == nil {
		ex = PDFExtractor{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Evaluator{extractor: ex, completer: c, timeout: timeout, log: opts.Logger, metrics: opts.Metrics}, nil
}

// Evaluate extracts the document text and scores it. A document with no
// text layer fails with apperr.NoReadableText.
func (e *Evaluator) Evaluate(ctx context.Context, document []byte) (Report, error) {
	const op = "cv.Evaluate"

	text, err := e.extractor.Extract(document)
	if err != nil {
		e.metrics.ObserveCVEvaluation("unreadable")
		return Report{}, apperr.New(apperr.NoReadableText, op, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		e.metrics.ObserveCVEvaluation("unreadable")
		return Report{}, apperr.Errorf(apperr.NoReadableText, op, "no readable text found, the document may be a scan")
	}

	raw, err := e.completer.Complete(ctx, completion.Request{
		System:      rubric,
		Prompt:      text,
		Temperature: rubricTemperature,
		MaxTokens:   rubricMaxTokens,
		Timeout:     e.timeout,
	})
	if err != nil {
		e.metrics.ObserveCVEvaluation("failed")
		return Report{}, err
	}

	report := ParseReport(raw)
	if len(report.Missing) > 0 || report.Score == nil {
		e.log.Warn().
			Err(apperr.Errorf(apperr.MalformedOutput, op, "report incomplete")).
			Strs("missing", report.Missing).
			Bool("score", report.Score != nil).
			Msg("cv report does not follow the rubric layout")
		e.metrics.ObserveCVEvaluation("partial")
	} else {
		e.metrics.ObserveCVEvaluation("ok")
	}
	e.log.Info().Int("text_len", len(text)).Int("report_len", len(raw)).Msg("cv evaluated")
	return report, nil
}

// ParseReport locates the rubric sections in raw model output.
func ParseReport(raw string) Report {
	report := Report{Raw: raw, Sections: make(map[string]string)}

	type hit struct {
		name       string
		start, end int // heading line bounds
	}
	var hits []hit
	lines := strings.SplitAfter(raw, "\n")
	offset := 0
	for _, line := range lines {
		if name := matchHeading(line); name != "" {
			if _, seen := report.Sections[name]; !seen {
				hits = append(hits, hit{name: name, start: offset, end: offset + len(line)})
				report.Sections[name] = ""
			}
		}
		offset += len(line)
	}

	for i, h := range hits {
		bodyEnd := len(raw)
		if i+1 < len(hits) {
			bodyEnd = hits[i+1].start
		}
		report.Sections[h.name] = strings.TrimSpace(raw[h.end:bodyEnd])
	}

	for _, name := range sectionOrder {
		if _, ok := report.Sections[name]; !ok {
			report.Missing = append(report.Missing, name)
		}
	}

	report.Score = parseScore(raw, report.Sections[SectionScore])
	if len(report.Sections) == 0 {
		report.Sections = nil
	}
	return report
}

func parseScore(raw, section string) *int {
	var m []string
	if section != "" {
		m = scorePattern.FindStringSubmatch(section)
		if m == nil {
			m = bareNumber.FindStringSubmatch(section)
		}
	}
	if m == nil {
		m = scorePattern.FindStringSubmatch(raw)
	}
	if m == nil {
		return nil
	}
	v, err := strconv.Atoi(m[1])
	if err != nil || v > 100 {
		return nil
	}
	return &v
}

// matchHeading reports which section a heading line opens, if any.
func matchHeading(line string) string {
	l := strings.TrimSpace(line)
	l = strings.TrimLeft(l, "#*0123456789.) ")
	l = strings.TrimRight(l, "*: ")
	l = strings.ToLower(l)
	if l == "" || len(l) > 60 {
		return ""
	}
	for _, name := range sectionOrder {
		if strings.HasPrefix(l, strings.ToLower(name)) {
			return name
		}
	}
	return ""
}
