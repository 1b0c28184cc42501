package tabular

import (
	"encoding/csv"
	"io"
	"strings"
)

// candidateDelimiters is also the tie-break order.
var candidateDelimiters = []rune{',', ';', '\t', '|', ':'}

// delimiterSampleLines is the number of lines inspected by both strategies.
const delimiterSampleLines = 10

// detectDelimiter sniffs first and falls back to frequency scoring.
func detectDelimiter(text string) rune {
	lines := sampleLines(text, delimiterSampleLines)
	if d, ok := sniffDelimiter(lines); ok {
		return d
	}
	return scoreDelimiter(lines)
}

func sampleLines(text string, n int) []string {
	out := make([]string, 0, n)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
		if len(out) == n {
			break
		}
	}
	return out
}

// sniffDelimiter parses the sample with the csv grammar for each candidate and
// accepts a delimiter only if every record has the same field count, greater
// than one. Among consistent candidates the widest wins.
func sniffDelimiter(lines []string) (rune, bool) {
	if len(lines) < 2 {
		return 0, false
	}
	sample := strings.Join(lines, "\n")

	best := rune(0)
	bestWidth := 1
	for _, d := range candidateDelimiters {
		r := csv.NewReader(strings.NewReader(sample))
		r.Comma = d
		r.FieldsPerRecord = -1
		r.LazyQuotes = true

		width := -1
		consistent := true
		records := 0
		for {
			rec, err := r.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				consistent = false
				break
			}
			records++
			if width == -1 {
				width = len(rec)
			} else if len(rec) != width {
				consistent = false
				break
			}
		}
		if consistent && records >= 2 && width > bestWidth {
			best, bestWidth = d, width
		}
	}
	return best, best != 0
}

// scoreDelimiter picks the candidate with the highest mean/(1+variance) of
// per-line occurrence counts. This favors delimiters that appear a consistent
// number of times over ones that merely appear often. Defaults to comma.
func scoreDelimiter(lines []string) rune {
	best := ','
	bestScore := 0.0
	for _, d := range candidateDelimiters {
		s := delimiterScore(lines, d)
		if s > bestScore {
			best, bestScore = d, s
		}
	}
	return best
}

func delimiterScore(lines []string, d rune) float64 {
	if len(lines) == 0 {
		return 0
	}
	counts := make([]float64, len(lines))
	sum := 0.0
	for i, line := range lines {
		counts[i] = float64(strings.Count(line, string(d)))
		sum += counts[i]
	}
	mean := sum / float64(len(counts))
	if mean == 0 {
		return 0
	}
	variance := 0.0
	for _, c := range counts {
		variance += (c - mean) * (c - mean)
	}
	variance /= float64(len(counts))
	return mean / (1 + variance)
}
