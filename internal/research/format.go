package research

import (
	"fmt"
	"strings"
)

const (
	sectionRule        = "=================================================="
	sourceRule         = "--------------------------------------------------"
	truncationSuffix   = "[Content truncated due to length]"
	missingAbstractMsg = "No abstract available for this paper."
)

// buildRawData assembles the plain-text research record handed to report
// generation and stored on the job. The layout is stable so downstream
// prompts and archived rows stay comparable across runs.
func buildRawData(query string, hits []Hit, contents []Extracted, failures []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "SEARCH RESULTS FOR: %s\n%s\n", query, sectionRule)
	writeHitSection(&b, "WEB SEARCH RESULTS", hitsFor(hits, BackendWeb))
	writeHitSection(&b, "ACADEMIC SEARCH RESULTS", hitsFor(hits, BackendAcademic))

	fmt.Fprintf(&b, "\nDETAILED CONTENT FROM TOP %d SOURCES:\n%s\n", len(contents), sectionRule)
	for i, content := range contents {
		fmt.Fprintf(&b, "\nSOURCE %d: %s\nURL: %s\n", i+1, content.Title, content.URL)
		if content.Description != "" {
			fmt.Fprintf(&b, "DESCRIPTION: %s\n", content.Description)
		}
		b.WriteString("CONTENT:\n")
		b.WriteString(content.Content)
		b.WriteByte('\n')
		if content.Truncated {
			b.WriteString(truncationSuffix)
			b.WriteByte('\n')
		}
		b.WriteString(sourceRule)
		b.WriteByte('\n')
	}

	fmt.Fprintf(&b, "\nRESEARCH SUMMARY:\nTotal sources found: %d\nSources analyzed in detail: %d\n", len(hits), len(contents))

	if len(failures) > 0 {
		fmt.Fprintf(&b, "\nERRORS ENCOUNTERED:\n")
		for _, failure := range failures {
			fmt.Fprintf(&b, "- %s\n", failure)
		}
	}
	return b.String()
}

func hitsFor(hits []Hit, backend Backend) []Hit {
	out := make([]Hit, 0, len(hits))
	for _, hit := range hits {
		if hit.Backend == backend {
			out = append(out, hit)
		}
	}
	return out
}

func writeHitSection(b *strings.Builder, heading string, hits []Hit) {
	if len(hits) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", heading)
	for i, hit := range hits {
		fmt.Fprintf(b, "%d. %s\n   URL: %s\n", i+1, hit.Title, hit.URL)
		if hit.Snippet != "" {
			fmt.Fprintf(b, "   Summary: %s\n", hit.Snippet)
		}
		if citation := formatCitation(hit); citation != "" {
			fmt.Fprintf(b, "   Citation: %s\n", citation)
		}
	}
}

func formatCitation(hit Hit) string {
	parts := make([]string, 0, 3)
	if hit.Authors != "" {
		parts = append(parts, hit.Authors)
	}
	if hit.Venue != "" {
		parts = append(parts, hit.Venue)
	}
	if hit.Year != "" {
		parts = append(parts, hit.Year)
	}
	return strings.Join(parts, ", ")
}

// academicContent builds detailed content straight from a paper's abstract
// and citation metadata. Publisher pages are routinely paywalled, so the
// pipeline never fetches academic URLs.
func academicContent(hit Hit, maxRunes int) Extracted {
	body := strings.TrimSpace(hit.Abstract)
	if body == "" {
		body = missingAbstractMsg
	}
	if citation := formatCitation(hit); citation != "" {
		body = fmt.Sprintf("%s\n\n%s", citation, body)
	}
	content, truncated := trimToRunes(body, maxRunes)
	return Extracted{
		Title:     firstNonEmpty(hit.Title, hit.URL),
		URL:       hit.URL,
		Content:   content,
		Truncated: truncated,
	}
}
