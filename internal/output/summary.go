package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	ruleHeavy = "================================================================================"
	ruleLight = "--------------------------------------------------------------------------------"
)

// OperationResult is the outcome of one executed operation.
type OperationResult struct {
	File      string
	Operation string
	Snapshots int
	// GraphQLErrors counts the errors in the final result.
	GraphQLErrors int
	Err           error
	Duration      time.Duration
}

// Summary collects the results of one run over all operation files.
type Summary struct {
	Results  []OperationResult
	Duration time.Duration
}

// Add appends r to the summary.
func (s *Summary) Add(r OperationResult) {
	s.Results = append(s.Results, r)
}

func (s *Summary) Executed() int {
	return len(s.Results)
}

// Failed counts operations whose stream failed.
func (s *Summary) Failed() int {
	n := 0
	for _, r := range s.Results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// WithGraphQLErrors counts completed operations whose final result carried errors.
func (s *Summary) WithGraphQLErrors() int {
	n := 0
	for _, r := range s.Results {
		if r.Err == nil && r.GraphQLErrors > 0 {
			n++
		}
	}
	return n
}

func (s *Summary) Snapshots() int {
	n := 0
	for _, r := range s.Results {
		n += r.Snapshots
	}
	return n
}

// RequestsPerSecond is the executed operation rate over the run duration.
func (s *Summary) RequestsPerSecond() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Executed()) / s.Duration.Seconds()
}

// Format writes the summary of a single run.
func (s *Summary) Format(format Format, w io.Writer) error {
	if format == FormatJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(s.toJSON())
	}
	return s.formatText(w)
}

func (s *Summary) formatText(w io.Writer) error {
	var b strings.Builder

	for _, r := range s.Results {
		status := "Success"
		switch {
		case r.Err != nil:
			status = fmt.Sprintf("Failed: %v", r.Err)
		case r.GraphQLErrors > 0:
			status = fmt.Sprintf("Completed with %d GraphQL error(s)", r.GraphQLErrors)
		}
		fmt.Fprintf(&b, "%s %s: %s (%d snapshot(s) in %d ms)\n",
			r.File, r.Operation, status, r.Snapshots, r.Duration.Milliseconds())
	}

	fmt.Fprintln(&b, ruleLight)
	fmt.Fprintf(&b, "Executed operations: %d (%.2f/s)\n", s.Executed(), s.RequestsPerSecond())
	fmt.Fprintf(&b, "Snapshots:           %d\n", s.Snapshots())
	fmt.Fprintf(&b, "Failed:              %d\n", s.Failed())
	fmt.Fprintf(&b, "With GraphQL errors: %d\n", s.WithGraphQLErrors())
	fmt.Fprintf(&b, "Duration:            %d ms\n", s.Duration.Milliseconds())

	_, err := io.WriteString(w, b.String())
	return err
}

type jsonOperationResult struct {
	File                 string `json:"file"`
	Operation            string `json:"operation"`
	Snapshots            int    `json:"snapshots"`
	GraphQLErrors        int    `json:"graphql_errors"`
	DurationMilliseconds int64  `json:"duration_ms"`
	Success              bool   `json:"success"`
	Error                string `json:"error,omitempty"`
}

type jsonSummary struct {
	Results              []jsonOperationResult `json:"results,omitempty"`
	Executed             int                   `json:"executed"`
	Snapshots            int                   `json:"snapshots"`
	Failed               int                   `json:"failed"`
	WithGraphQLErrors    int                   `json:"with_graphql_errors"`
	DurationMilliseconds int64                 `json:"duration_ms"`
	RequestsPerSecond    float64               `json:"requests_per_second"`
}

func (s *Summary) toJSON() jsonSummary {
	results := make([]jsonOperationResult, 0, len(s.Results))
	for _, r := range s.Results {
		item := jsonOperationResult{
			File:                 r.File,
			Operation:            r.Operation,
			Snapshots:            r.Snapshots,
			GraphQLErrors:        r.GraphQLErrors,
			DurationMilliseconds: r.Duration.Milliseconds(),
			Success:              r.Err == nil,
		}
		if r.Err != nil {
			item.Error = r.Err.Error()
		}
		results = append(results, item)
	}

	return jsonSummary{
		Results:              results,
		Executed:             s.Executed(),
		Snapshots:            s.Snapshots(),
		Failed:               s.Failed(),
		WithGraphQLErrors:    s.WithGraphQLErrors(),
		DurationMilliseconds: s.Duration.Milliseconds(),
		RequestsPerSecond:    s.RequestsPerSecond(),
	}
}

// FormatAggregated writes the summaries of repeated runs. A single run is
// written as by Summary.Format.
func FormatAggregated(format Format, w io.Writer, summaries []*Summary) error {
	switch len(summaries) {
	case 0:
		return nil
	case 1:
		return summaries[0].Format(format, w)
	}

	total := &Summary{}
	iterations := make([]jsonSummary, 0, len(summaries))
	failedRuns := 0
	for _, s := range summaries {
		total.Results = append(total.Results, s.Results...)
		total.Duration += s.Duration
		iterations = append(iterations, s.toJSON())
		if s.Failed() > 0 {
			failedRuns++
		}
	}

	if format == FormatJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(struct {
			Iterations []jsonSummary `json:"iterations"`
			Aggregated jsonSummary   `json:"aggregated"`
			FailedRuns int           `json:"failed_iterations"`
		}{
			Iterations: iterations,
			Aggregated: aggregatedJSON(total),
			FailedRuns: failedRuns,
		})
	}

	var b strings.Builder
	fmt.Fprintln(&b, ruleHeavy)
	fmt.Fprintln(&b, "ITERATION RESULTS:")
	fmt.Fprintln(&b, ruleHeavy)
	for i, s := range summaries {
		status := "SUCCESS"
		if s.Failed() > 0 {
			status = "FAILED"
		}
		fmt.Fprintf(&b, "Iteration %d: %s (%d operations, %d snapshots, %d ms)\n",
			i+1, status, s.Executed(), s.Snapshots(), s.Duration.Milliseconds())
	}

	fmt.Fprintln(&b, ruleHeavy)
	fmt.Fprintln(&b, "AGGREGATED RESULTS:")
	fmt.Fprintln(&b, ruleHeavy)
	fmt.Fprintf(&b, "Total iterations:    %d\n", len(summaries))
	fmt.Fprintf(&b, "Failed iterations:   %d\n", failedRuns)
	fmt.Fprintf(&b, "Total operations:    %d (%.2f/s)\n", total.Executed(), total.RequestsPerSecond())
	fmt.Fprintf(&b, "Total snapshots:     %d\n", total.Snapshots())
	fmt.Fprintf(&b, "Total failed:        %d\n", total.Failed())
	fmt.Fprintf(&b, "Total duration:      %d ms\n", total.Duration.Milliseconds())
	fmt.Fprintln(&b, ruleLight)
	fmt.Fprintf(&b, "Avg duration per iteration: %d ms\n", (total.Duration / time.Duration(len(summaries))).Milliseconds())

	_, err := io.WriteString(w, b.String())
	return err
}

func aggregatedJSON(total *Summary) jsonSummary {
	out := total.toJSON()
	out.Results = nil
	return out
}

// FormatDebug writes a labelled block of debug data, such as a redacted request dump.
func FormatDebug(format Format, w io.Writer, description string, data []byte) error {
	if format == FormatJSON {
		return json.NewEncoder(w).Encode(struct {
			Description string `json:"description"`
			Data        string `json:"data"`
		}{description, string(data)})
	}

	var b strings.Builder
	fmt.Fprintln(&b, "========================================")
	fmt.Fprintf(&b, "%s:\n", description)
	fmt.Fprintln(&b, "========================================")
	b.Write(data)
	fmt.Fprintln(&b)

	_, err := io.WriteString(w, b.String())
	return err
}
