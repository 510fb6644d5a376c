// Package toolcall parses the external tool-name catalog into tagged
// operation records and the att:// resource URI grammar into resource
// references. Parsing is pure: no component is touched here.
package toolcall

import "fmt"

// ToolPrefix marks the tool names this parser owns.
const ToolPrefix = "att."

// ArgumentError reports a malformed or missing argument, naming the
// offending key.
type ArgumentError struct {
	Key string
	Msg string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("argument %q: %s", e.Key, e.Msg)
}

func (e *ArgumentError) ErrorCode() string { return "invalid_argument" }

// UnknownToolError reports an att.-prefixed name outside the catalog.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string { return fmt.Sprintf("unknown tool %q", e.Name) }

// Op is a parsed tool invocation. The concrete type identifies the
// operation; the dispatcher switches over it.
type Op interface{ isOp() }

// Project family.

type ProjectCreate struct {
	Name       string
	Path       string
	ConfigPath string
}

type ProjectClone struct {
	Name      string
	RemoteURL string
	Path      string
}

type ProjectGet struct{ ProjectID string }

type ProjectList struct{}

type ProjectDelete struct{ ProjectID string }

type ProjectDownload struct {
	ProjectID string
	BasePath  string
}

// Code family.

type CodeListFiles struct{ ProjectID string }

type CodeRead struct {
	ProjectID string
	Path      string
}

type CodeWrite struct {
	ProjectID string
	Path      string
	Content   string
}

type CodeSearch struct {
	ProjectID string
	Query     string
}

type CodeDiff struct {
	ProjectID string
	Path      string
	Content   string
}

// Git family.

type GitStatus struct{ ProjectID string }

type GitCommit struct {
	ProjectID string
	Message   string
}

type GitPush struct {
	ProjectID string
	Remote    string
	Branch    string
}

type GitBranch struct {
	ProjectID string
	Name      string
	Checkout  bool
}

type GitLog struct {
	ProjectID string
	Limit     int
}

type GitActions struct {
	ProjectID string
	Limit     int
}

type GitPRCreate struct {
	ProjectID string
	Title     string
	Body      string
	Base      string
	Head      string
}

type GitPRMerge struct {
	ProjectID string
	PRRef     string
	Strategy  string
}

type GitPRReviews struct {
	ProjectID string
	PRRef     string
}

// Runtime family.

type RuntimeStart struct {
	ProjectID     string
	Command       string
	HealthURL     string
	HealthCommand []string
}

type RuntimeStop struct{ ProjectID string }

type RuntimeStatus struct{ ProjectID string }

type RuntimeLogs struct {
	ProjectID string
	Cursor    *int
	Limit     int
}

// Test family.

type TestRun struct {
	ProjectID      string
	Suite          string
	Markers        string
	TimeoutSeconds int
}

// Debug family.

type DebugLog struct {
	ProjectID string
	Message   string
	Level     string
}

type DebugLogs struct {
	ProjectID string
	Limit     int
}

// Deploy family.

type DeployBuild struct{ ProjectID string }

type DeployRun struct {
	ProjectID string
	Command   string
	HealthURL string
}

type DeployStatus struct{ ProjectID string }

func (ProjectCreate) isOp()   {}
func (ProjectClone) isOp()    {}
func (ProjectGet) isOp()      {}
func (ProjectList) isOp()     {}
func (ProjectDelete) isOp()   {}
func (ProjectDownload) isOp() {}
func (CodeListFiles) isOp()   {}
func (CodeRead) isOp()        {}
func (CodeWrite) isOp()       {}
func (CodeSearch) isOp()      {}
func (CodeDiff) isOp()        {}
func (GitStatus) isOp()       {}
func (GitCommit) isOp()       {}
func (GitPush) isOp()         {}
func (GitBranch) isOp()       {}
func (GitLog) isOp()          {}
func (GitActions) isOp()      {}
func (GitPRCreate) isOp()     {}
func (GitPRMerge) isOp()      {}
func (GitPRReviews) isOp()    {}
func (RuntimeStart) isOp()    {}
func (RuntimeStop) isOp()     {}
func (RuntimeStatus) isOp()   {}
func (RuntimeLogs) isOp()     {}
func (TestRun) isOp()         {}
func (DebugLog) isOp()        {}
func (DebugLogs) isOp()       {}
func (DeployBuild) isOp()     {}
func (DeployRun) isOp()       {}
func (DeployStatus) isOp()    {}
