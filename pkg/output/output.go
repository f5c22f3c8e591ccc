// Package output renders completed scan results for the CLI. The text
// formatter is for humans; the JSON formatter emits the full result
// document for downstream tooling.
package output

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/sleuth/pkg/errors"
	"github.com/ajitpratap0/sleuth/pkg/json"
	"github.com/ajitpratap0/sleuth/pkg/rules"
	"github.com/ajitpratap0/sleuth/pkg/scan"
)

// maxShownValues caps the sample values printed per match. The full set
// stays in the result; this only bounds display.
const maxShownValues = 50

// Options adjust what the formatters reveal.
type Options struct {
	// ShowData includes matched values in the output.
	ShowData bool
	// ShowAll includes low-confidence matches, which are hidden by
	// default because they are often false positives.
	ShowAll bool
	// MinConfidence drops matches below this tier outright. Unlike the
	// ShowAll suppression these never come back, so no hint is printed
	// for them.
	MinConfidence rules.Confidence
}

// Formatter renders one scan result to w.
type Formatter interface {
	Format(w io.Writer, result *scan.Result, opts Options) error
}

// New returns the formatter for the given name. An empty name selects
// text.
func New(name string) (Formatter, error) {
	switch name {
	case "", "text":
		return &Text{}, nil
	case "json":
		return &JSON{}, nil
	}
	return nil, errors.New(errors.ErrorTypeValidation,
		fmt.Sprintf("unknown output format %q, expected text or json", name))
}

// Text writes matches the way a person reads them: display name,
// confidence tier, location, and optionally the sampled values.
type Text struct{}

// Format writes each visible match, a pluralized summary, and a hint
// when low-confidence matches were held back.
func (Text) Format(w io.Writer, result *scan.Result, opts Options) error {
	shown, hidden := partition(result.Matches, opts)

	if len(shown) == 0 && hidden == 0 {
		_, err := fmt.Fprintln(w, "No matches found.")
		return err
	}

	for _, m := range shown {
		fmt.Fprintf(w, "\n%s (%s confidence)\n", m.DisplayName, m.Confidence)
		fmt.Fprintf(w, "Found in %s\n", m.Location)

		if opts.ShowData {
			fmt.Fprintf(w, "\nSample data:\n")
			for _, value := range clip(m.Values) {
				fmt.Fprintf(w, "  %s\n", value)
			}
		}
	}

	fmt.Fprintf(w, "\nFound %s.\n", Pluralize(len(shown), "match", "matches"))

	if hidden > 0 {
		fmt.Fprintf(w, "\nLow confidence matches may be false positives.\n")
		if _, err := fmt.Fprintf(w, "Use --show-all to see all matches.\n"); err != nil {
			return err
		}
	}
	return nil
}

// JSON writes the result as one document: aggregated matches, the
// per-occurrence hits when values are requested, and the run snapshot.
type JSON struct{}

func (JSON) Format(w io.Writer, result *scan.Result, opts Options) error {
	shown, _ := partition(result.Matches, opts)

	doc := struct {
		Matches  []rules.Match `json:"matches"`
		Hits     []scan.Hit    `json:"hits,omitempty"`
		Snapshot scan.Snapshot `json:"snapshot"`
	}{
		Matches:  make([]rules.Match, 0, len(shown)),
		Snapshot: result.Snapshot,
	}

	for _, m := range shown {
		if !opts.ShowData {
			m.Values = nil
		}
		doc.Matches = append(doc.Matches, m)
	}
	if opts.ShowData {
		for _, h := range result.Hits {
			if !h.Confidence.AtLeast(opts.MinConfidence) {
				continue
			}
			if h.Confidence == rules.ConfidenceLow && !opts.ShowAll {
				continue
			}
			doc.Hits = append(doc.Hits, h)
		}
	}

	return json.MarshalToWriter(w, doc)
}

// Pluralize renders a count with the right word form.
func Pluralize(count int, singular, plural string) string {
	if count == 1 {
		return fmt.Sprintf("%d %s", count, singular)
	}
	return fmt.Sprintf("%d %s", count, plural)
}

// partition splits matches into the visible set and a count of entries
// hidden by the low-confidence default, which the hint can offer back.
func partition(matches []rules.Match, opts Options) ([]rules.Match, int) {
	shown := make([]rules.Match, 0, len(matches))
	hidden := 0
	for _, m := range matches {
		if !m.Confidence.AtLeast(opts.MinConfidence) {
			continue
		}
		if m.Confidence == rules.ConfidenceLow && !opts.ShowAll {
			hidden++
			continue
		}
		shown = append(shown, m)
	}
	return shown, hidden
}

func clip(values []string) []string {
	if len(values) > maxShownValues {
		return values[:maxShownValues]
	}
	return values
}
