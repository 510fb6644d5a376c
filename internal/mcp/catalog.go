package mcp

func schemaString(desc string) map[string]string {
	if desc == "" {
		return map[string]string{"type": "string"}
	}
	return map[string]string{"type": "string", "description": desc}
}

func schemaInt(desc string) map[string]string {
	if desc == "" {
		return map[string]string{"type": "integer"}
	}
	return map[string]string{"type": "integer", "description": desc}
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	s := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// ToolDefinitions returns the full 30-entry tool catalog served by
// tools/list. The names are the stable external contract.
func ToolDefinitions() []map[string]any {
	return []map[string]any{
		{
			"name":        "att.project.create",
			"description": "Register a new project rooted at a local directory",
			"inputSchema": objectSchema(map[string]any{
				"name":        schemaString("Human-readable project name"),
				"path":        schemaString("Absolute filesystem root; derived from name when omitted"),
				"config_path": schemaString("Optional project config file"),
			}, "name"),
		},
		{
			"name":        "att.project.clone",
			"description": "Clone a remote repository and register it as a project",
			"inputSchema": objectSchema(map[string]any{
				"name":       schemaString("Human-readable project name"),
				"remote_url": schemaString("Remote VCS URL"),
				"path":       schemaString("Clone destination; derived from name when omitted"),
			}, "name", "remote_url"),
		},
		{
			"name":        "att.project.get",
			"description": "Fetch one project record",
			"inputSchema": objectSchema(map[string]any{
				"project_id": schemaString(""),
			}, "project_id"),
		},
		{
			"name":        "att.project.list",
			"description": "List all registered projects",
			"inputSchema": objectSchema(map[string]any{}),
		},
		{
			"name":        "att.project.delete",
			"description": "Remove a project record; files on disk are untouched",
			"inputSchema": objectSchema(map[string]any{
				"project_id": schemaString(""),
			}, "project_id"),
		},
		{
			"name":        "att.project.download",
			"description": "Package the project tree into a zip archive",
			"inputSchema": objectSchema(map[string]any{
				"project_id": schemaString(""),
				"base_path":  schemaString("Archive destination; a temp path is derived when omitted"),
			}, "project_id"),
		},
		{
			"name":        "att.code.list_files",
			"description": "List files under the project root",
			"inputSchema": objectSchema(map[string]any{
				"project_id": schemaString(""),
			}, "project_id"),
		},
		{
			"name":        "att.code.read",
			"description": "Read one file inside the project sandbox",
			"inputSchema": objectSchema(map[string]any{
				"project_id": schemaString(""),
				"path":       schemaString("Path relative to the project root"),
			}, "project_id", "path"),
		},
		{
			"name":        "att.code.write",
			"description": "Write one file inside the project sandbox",
			"inputSchema": objectSchema(map[string]any{
				"project_id": schemaString(""),
				"path":       schemaString("Path relative to the project root"),
				"content":    schemaString("Full file content"),
			}, "project_id", "path", "content"),
		},
		{
			"name":        "att.code.search",
			"description": "Search project files for a substring",
			"inputSchema": objectSchema(map[string]any{
				"project_id": schemaString(""),
				"query":      schemaString("Substring to look for"),
			}, "project_id", "query"),
		},
		{
			"name":        "att.code.diff",
			"description": "Unified diff between the file on disk and the provided content",
			"inputSchema": objectSchema(map[string]any{
				"project_id": schemaString(""),
				"path":       schemaString("Path relative to the project root"),
				"content":    schemaString("Proposed file content"),
			}, "project_id", "path", "content"),
		},
		{
			"name":        "att.git.status",
			"description": "git status for the project working tree",
			"inputSchema": objectSchema(map[string]any{
				"project_id": schemaString(""),
			}, "project_id"),
		},
		{
			"name":        "att.git.commit",
			"description": "Stage all changes and commit",
			"inputSchema": objectSchema(map[string]any{
				"project_id": schemaString(""),
				"message":    schemaString("Commit message"),
			}, "project_id", "message"),
		},
		{
			"name":        "att.git.push",
			"description": "Push a branch to the remote",
			"inputSchema": objectSchema(map[string]any{
				"project_id": schemaString(""),
				"remote":     schemaString("Remote name; defaults to origin"),
				"branch":     schemaString("Branch to push"),
			}, "project_id", "branch"),
		},
		{
			"name":        "att.git.branch",
			"description": "Create a branch, optionally checking it out",
			"inputSchema": objectSchema(map[string]any{
				"project_id": schemaString(""),
				"name":       schemaString("Branch name"),
				"checkout":   map[string]string{"type": "boolean"},
			}, "project_id", "name"),
		},
		{
			"name":        "att.git.log",
			"description": "Recent commit log",
			"inputSchema": objectSchema(map[string]any{
				"project_id": schemaString(""),
				"limit":      schemaInt("Max entries, default 20"),
			}, "project_id"),
		},
		{
			"name":        "att.git.actions",
			"description": "Recent hosted CI runs for the project",
			"inputSchema": objectSchema(map[string]any{
				"project_id": schemaString(""),
				"limit":      schemaInt("Max entries, default 10"),
			}, "project_id"),
		},
		{
			"name":        "att.git.pr_create",
			"description": "Open a pull request from the current branch",
			"inputSchema": objectSchema(map[string]any{
				"project_id": schemaString(""),
				"title":      schemaString("PR title"),
				"body":       schemaString("PR body"),
				"base":       schemaString("Base branch"),
				"head":       schemaString("Head branch"),
			}, "project_id", "title"),
		},
		{
			"name":        "att.git.pr_merge",
			"description": "Merge a pull request",
			"inputSchema": objectSchema(map[string]any{
				"project_id": schemaString(""),
				"pr_ref":     schemaString("PR number or URL"),
				"strategy":   schemaString("squash, merge, or rebase; default squash"),
			}, "project_id", "pr_ref"),
		},
		{
			"name":        "att.git.pr_reviews",
			"description": "List reviews on a pull request",
			"inputSchema": objectSchema(map[string]any{
				"project_id": schemaString(""),
				"pr_ref":     schemaString("PR number or URL"),
			}, "project_id", "pr_ref"),
		},
		{
			"name":        "att.runtime.start",
			"description": "Start the project process under the supervisor",
			"inputSchema": objectSchema(map[string]any{
				"project_id": schemaString(""),
				"command":    schemaString("Shell command to run"),
				"health_url": schemaString("Optional HTTP health probe URL"),
				"health_command": map[string]any{
					"type": "array", "items": map[string]string{"type": "string"},
					"description": "Optional health probe command",
				},
			}, "project_id", "command"),
		},
		{
			"name":        "att.runtime.stop",
			"description": "Stop the supervised process (graceful, then kill)",
			"inputSchema": objectSchema(map[string]any{
				"project_id": schemaString(""),
			}, "project_id"),
		},
		{
			"name":        "att.runtime.status",
			"description": "Supervisor state for the project process",
			"inputSchema": objectSchema(map[string]any{
				"project_id": schemaString(""),
			}, "project_id"),
		},
		{
			"name":        "att.runtime.logs",
			"description": "Read captured process output from the log ring",
			"inputSchema": objectSchema(map[string]any{
				"project_id": schemaString(""),
				"cursor":     schemaInt("Absolute line cursor; omit for the tail"),
				"limit":      schemaInt("Max lines, default 100"),
			}, "project_id"),
		},
		{
			"name":        "att.test.run",
			"description": "Run a test suite inside the project",
			"inputSchema": objectSchema(map[string]any{
				"project_id":      schemaString(""),
				"suite":           schemaString("Suite path or selector"),
				"markers":         schemaString("Optional marker expression"),
				"timeout_seconds": schemaInt("Per-run budget; harness default when omitted"),
			}, "project_id", "suite"),
		},
		{
			"name":        "att.debug.log",
			"description": "Append an entry to the project debug log",
			"inputSchema": objectSchema(map[string]any{
				"project_id": schemaString(""),
				"message":    schemaString("Log message"),
				"level":      schemaString("Log level, default info"),
			}, "project_id", "message"),
		},
		{
			"name":        "att.debug.logs",
			"description": "Read recent project debug log entries",
			"inputSchema": objectSchema(map[string]any{
				"project_id": schemaString(""),
				"limit":      schemaInt("Max entries, default 100"),
			}, "project_id"),
		},
		{
			"name":        "att.deploy.build",
			"description": "Validate that the project has a build manifest",
			"inputSchema": objectSchema(map[string]any{
				"project_id": schemaString(""),
			}, "project_id"),
		},
		{
			"name":        "att.deploy.run",
			"description": "Build then start the project under the supervisor",
			"inputSchema": objectSchema(map[string]any{
				"project_id": schemaString(""),
				"command":    schemaString("Shell command to run"),
				"health_url": schemaString("Optional HTTP health probe URL"),
			}, "project_id", "command"),
		},
		{
			"name":        "att.deploy.status",
			"description": "Current deploy status mirroring the supervisor",
			"inputSchema": objectSchema(map[string]any{
				"project_id": schemaString(""),
			}, "project_id"),
		},
	}
}
