package testrun

import (
	"encoding/json"
	"encoding/xml"
	"regexp"
	"strconv"
	"strings"
)

// Summary is the parsed shape of a test run's captured output.
type Summary struct {
	Passed   int     `json:"passed"`
	Failed   int     `json:"failed"`
	Skipped  int     `json:"skipped"`
	Duration float64 `json:"duration_seconds"`
	Found    bool    `json:"found"`
}

var (
	passedRe   = regexp.MustCompile(`(\d+) passed`)
	failedRe   = regexp.MustCompile(`(\d+) failed`)
	skippedRe  = regexp.MustCompile(`(\d+) skipped`)
	durationRe = regexp.MustCompile(`in ([0-9.]+)s`)
)

// ParseSummary extracts pass/fail/skip counts from captured test output. It
// is a pure function of the text: a pytest JSON report is tried first, then
// JUnit XML, then summary-line extraction.
func ParseSummary(output string) Summary {
	if s, ok := parseJSONReport(output); ok {
		return s
	}
	if s, ok := parseJUnitXML(output); ok {
		return s
	}
	return parseSummaryLine(output)
}

type jsonReport struct {
	Summary struct {
		Passed  int `json:"passed"`
		Failed  int `json:"failed"`
		Skipped int `json:"skipped"`
	} `json:"summary"`
	Duration float64 `json:"duration"`
}

func parseJSONReport(output string) (Summary, bool) {
	start := strings.Index(output, "{")
	end := strings.LastIndex(output, "}")
	if start < 0 || end <= start {
		return Summary{}, false
	}
	var rep jsonReport
	if err := json.Unmarshal([]byte(output[start:end+1]), &rep); err != nil {
		return Summary{}, false
	}
	if rep.Summary.Passed == 0 && rep.Summary.Failed == 0 && rep.Summary.Skipped == 0 {
		return Summary{}, false
	}
	return Summary{
		Passed:   rep.Summary.Passed,
		Failed:   rep.Summary.Failed,
		Skipped:  rep.Summary.Skipped,
		Duration: rep.Duration,
		Found:    true,
	}, true
}

type junitSuite struct {
	XMLName  xml.Name `xml:"testsuite"`
	Tests    int      `xml:"tests,attr"`
	Failures int      `xml:"failures,attr"`
	Errors   int      `xml:"errors,attr"`
	Skipped  int      `xml:"skipped,attr"`
	Time     float64  `xml:"time,attr"`
}

func parseJUnitXML(output string) (Summary, bool) {
	start := strings.Index(output, "<testsuite")
	if start < 0 {
		return Summary{}, false
	}
	end := strings.Index(output[start:], "</testsuite>")
	var doc string
	if end >= 0 {
		doc = output[start : start+end+len("</testsuite>")]
	} else {
		// Self-closing suite element.
		close := strings.Index(output[start:], "/>")
		if close < 0 {
			return Summary{}, false
		}
		doc = output[start : start+close+2]
	}

	var suite junitSuite
	if err := xml.Unmarshal([]byte(doc), &suite); err != nil {
		return Summary{}, false
	}
	failed := suite.Failures + suite.Errors
	return Summary{
		Passed:   suite.Tests - failed - suite.Skipped,
		Failed:   failed,
		Skipped:  suite.Skipped,
		Duration: suite.Time,
		Found:    true,
	}, true
}

func parseSummaryLine(output string) Summary {
	s := Summary{}
	if m := passedRe.FindStringSubmatch(output); m != nil {
		s.Passed, _ = strconv.Atoi(m[1])
		s.Found = true
	}
	if m := failedRe.FindStringSubmatch(output); m != nil {
		s.Failed, _ = strconv.Atoi(m[1])
		s.Found = true
	}
	if m := skippedRe.FindStringSubmatch(output); m != nil {
		s.Skipped, _ = strconv.Atoi(m[1])
		s.Found = true
	}
	if m := durationRe.FindStringSubmatch(output); m != nil {
		s.Duration, _ = strconv.ParseFloat(m[1], 64)
	}
	return s
}
