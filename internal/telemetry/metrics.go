// Package telemetry keeps process-wide counters and renders them in
// Prometheus text exposition format for GET /metrics.
package telemetry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

var defaultRegistry = newRegistry()

type registry struct {
	mu                  sync.Mutex
	toolCalls           map[string]map[string]int64
	toolDurationBuckets map[string][]int64
	probeResults        map[string]map[string]int64
	workflowRuns        map[string]int64
	bootstrapPhases     map[string]map[string]int64
	serverTransitions   map[string]int64
	githubAPIErrors     map[string]map[int]int64
	eventAppendFailures int64
}

func newRegistry() *registry {
	return &registry{
		toolCalls:           make(map[string]map[string]int64),
		toolDurationBuckets: make(map[string][]int64),
		probeResults:        make(map[string]map[string]int64),
		workflowRuns:        make(map[string]int64),
		bootstrapPhases:     make(map[string]map[string]int64),
		serverTransitions:   make(map[string]int64),
		githubAPIErrors:     make(map[string]map[int]int64),
	}
}

// IncToolCall counts one dispatched tool invocation. Status is "ok" or
// the machine code of the error.
func IncToolCall(toolName, status string) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	if _, ok := defaultRegistry.toolCalls[toolName]; !ok {
		defaultRegistry.toolCalls[toolName] = make(map[string]int64)
	}
	defaultRegistry.toolCalls[toolName][status]++
}

func ObserveToolDuration(toolName string, d time.Duration) {
	buckets := []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60}
	sec := d.Seconds()

	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	if _, ok := defaultRegistry.toolDurationBuckets[toolName]; !ok {
		defaultRegistry.toolDurationBuckets[toolName] = make([]int64, len(buckets)+1)
	}
	idx := len(buckets)
	for i, b := range buckets {
		if sec <= b {
			idx = i
			break
		}
	}
	defaultRegistry.toolDurationBuckets[toolName][idx]++
}

// IncProbeResult counts one health probe by kind (process, http,
// command) and outcome reason token.
func IncProbeResult(kind, reason string) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	if _, ok := defaultRegistry.probeResults[kind]; !ok {
		defaultRegistry.probeResults[kind] = make(map[string]int64)
	}
	defaultRegistry.probeResults[kind][reason]++
}

// IncWorkflowRun counts one change-test workflow by outcome
// (passed, failed, error).
func IncWorkflowRun(outcome string) {
	defaultRegistry.mu.Lock()
	defaultRegistry.workflowRuns[outcome]++
	defaultRegistry.mu.Unlock()
}

// IncBootstrapPhase counts a self-bootstrap phase outcome.
func IncBootstrapPhase(phase, outcome string) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	if _, ok := defaultRegistry.bootstrapPhases[phase]; !ok {
		defaultRegistry.bootstrapPhases[phase] = make(map[string]int64)
	}
	defaultRegistry.bootstrapPhases[phase][outcome]++
}

// IncServerTransition counts one external-server availability
// transition, labeled by the destination status.
func IncServerTransition(toStatus string) {
	defaultRegistry.mu.Lock()
	defaultRegistry.serverTransitions[toStatus]++
	defaultRegistry.mu.Unlock()
}

// IncGitHubAPIError counts a non-success GitHub API response by
// operation and HTTP status.
func IncGitHubAPIError(operation string, status int) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	if _, ok := defaultRegistry.githubAPIErrors[operation]; !ok {
		defaultRegistry.githubAPIErrors[operation] = make(map[int]int64)
	}
	defaultRegistry.githubAPIErrors[operation][status]++
}

func IncEventAppendFailure() {
	defaultRegistry.mu.Lock()
	defaultRegistry.eventAppendFailures++
	defaultRegistry.mu.Unlock()
}

func RenderPrometheus() string {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()

	var sb strings.Builder

	sb.WriteString("# TYPE atthub_tool_calls_total counter\n")
	for _, tool := range sortedKeys(defaultRegistry.toolCalls) {
		for _, status := range sortedKeys(defaultRegistry.toolCalls[tool]) {
			sb.WriteString(fmt.Sprintf("atthub_tool_calls_total{tool=\"%s\",status=\"%s\"} %d\n", tool, status, defaultRegistry.toolCalls[tool][status]))
		}
	}

	sb.WriteString("# TYPE atthub_tool_duration_seconds_bucket counter\n")
	bucketLabels := []string{"0.1", "0.5", "1", "2", "5", "10", "30", "60", "+Inf"}
	for _, tool := range sortedKeys(defaultRegistry.toolDurationBuckets) {
		counts := defaultRegistry.toolDurationBuckets[tool]
		for i, v := range counts {
			sb.WriteString(fmt.Sprintf("atthub_tool_duration_seconds_bucket{tool=\"%s\",le=\"%s\"} %d\n", tool, bucketLabels[i], v))
		}
	}

	sb.WriteString("# TYPE atthub_probe_results_total counter\n")
	for _, kind := range sortedKeys(defaultRegistry.probeResults) {
		for _, reason := range sortedKeys(defaultRegistry.probeResults[kind]) {
			sb.WriteString(fmt.Sprintf("atthub_probe_results_total{kind=\"%s\",reason=\"%s\"} %d\n", kind, reason, defaultRegistry.probeResults[kind][reason]))
		}
	}

	sb.WriteString("# TYPE atthub_workflow_runs_total counter\n")
	for _, outcome := range sortedKeys(defaultRegistry.workflowRuns) {
		sb.WriteString(fmt.Sprintf("atthub_workflow_runs_total{outcome=\"%s\"} %d\n", outcome, defaultRegistry.workflowRuns[outcome]))
	}

	sb.WriteString("# TYPE atthub_bootstrap_phases_total counter\n")
	for _, phase := range sortedKeys(defaultRegistry.bootstrapPhases) {
		for _, outcome := range sortedKeys(defaultRegistry.bootstrapPhases[phase]) {
			sb.WriteString(fmt.Sprintf("atthub_bootstrap_phases_total{phase=\"%s\",outcome=\"%s\"} %d\n", phase, outcome, defaultRegistry.bootstrapPhases[phase][outcome]))
		}
	}

	sb.WriteString("# TYPE atthub_server_transitions_total counter\n")
	for _, to := range sortedKeys(defaultRegistry.serverTransitions) {
		sb.WriteString(fmt.Sprintf("atthub_server_transitions_total{to_status=\"%s\"} %d\n", to, defaultRegistry.serverTransitions[to]))
	}

	sb.WriteString("# TYPE atthub_github_api_errors_total counter\n")
	for _, op := range sortedKeys(defaultRegistry.githubAPIErrors) {
		statuses := make([]int, 0, len(defaultRegistry.githubAPIErrors[op]))
		for code := range defaultRegistry.githubAPIErrors[op] {
			statuses = append(statuses, code)
		}
		sort.Ints(statuses)
		for _, code := range statuses {
			sb.WriteString(fmt.Sprintf("atthub_github_api_errors_total{operation=\"%s\",status=\"%d\"} %d\n", op, code, defaultRegistry.githubAPIErrors[op][code]))
		}
	}

	sb.WriteString("# TYPE atthub_event_append_failures_total counter\n")
	sb.WriteString(fmt.Sprintf("atthub_event_append_failures_total %d\n", defaultRegistry.eventAppendFailures))

	return sb.String()
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
