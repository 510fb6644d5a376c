package telemetry

import (
	"strings"
	"testing"
	"time"
)

func TestRenderPrometheusLabelOrderingStable(t *testing.T) {
	defaultRegistry = newRegistry()

	IncToolCall("att.code.write", "ok")
	IncToolCall("att.code.write", "path_escape")
	IncToolCall("att.project.create", "ok")
	IncProbeResult("http", "http_ok")
	IncProbeResult("command", "command_exit:2")
	IncWorkflowRun("passed")
	IncWorkflowRun("failed")
	IncBootstrapPhase("ci", "success")
	IncBootstrapPhase("deploy", "error")
	IncServerTransition("degraded")
	IncGitHubAPIError("create pull request", 502)
	IncEventAppendFailure()

	out := RenderPrometheus()

	escape := strings.Index(out, `atthub_tool_calls_total{tool="att.code.write",status="ok"}`)
	create := strings.Index(out, `atthub_tool_calls_total{tool="att.project.create",status="ok"}`)
	if escape < 0 || create < 0 {
		t.Fatalf("tool call metrics missing:\n%s", out)
	}
	if escape >= create {
		t.Fatal("tool labels are not rendered in stable lexical order")
	}

	for _, want := range []string{
		`atthub_probe_results_total{kind="command",reason="command_exit:2"} 1`,
		`atthub_probe_results_total{kind="http",reason="http_ok"} 1`,
		`atthub_workflow_runs_total{outcome="failed"} 1`,
		`atthub_workflow_runs_total{outcome="passed"} 1`,
		`atthub_bootstrap_phases_total{phase="ci",outcome="success"} 1`,
		`atthub_bootstrap_phases_total{phase="deploy",outcome="error"} 1`,
		`atthub_server_transitions_total{to_status="degraded"} 1`,
		`atthub_github_api_errors_total{operation="create pull request",status="502"} 1`,
		`atthub_event_append_failures_total 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestObserveToolDurationBuckets(t *testing.T) {
	defaultRegistry = newRegistry()

	ObserveToolDuration("att.test.run", 50*time.Millisecond)
	ObserveToolDuration("att.test.run", 3*time.Second)
	ObserveToolDuration("att.test.run", 2*time.Minute)

	out := RenderPrometheus()
	for _, want := range []string{
		`atthub_tool_duration_seconds_bucket{tool="att.test.run",le="0.1"} 1`,
		`atthub_tool_duration_seconds_bucket{tool="att.test.run",le="5"} 1`,
		`atthub_tool_duration_seconds_bucket{tool="att.test.run",le="+Inf"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}
