package toolcall

import "strings"

// Parse turns a tool name plus argument map into a tagged operation.
// Names outside the att. prefix return (nil, nil); att.-prefixed names
// outside the catalog return UnknownToolError; argument violations
// return ArgumentError naming the key.
func Parse(name string, args map[string]any) (Op, error) {
	if !strings.HasPrefix(name, ToolPrefix) {
		return nil, nil
	}
	if args == nil {
		args = map[string]any{}
	}

	switch name {
	case "att.project.create":
		return parseProjectCreate(args)
	case "att.project.clone":
		return parseProjectClone(args)
	case "att.project.get":
		return parseProjectRef(args, func(id string) Op { return ProjectGet{ProjectID: id} })
	case "att.project.list":
		return ProjectList{}, nil
	case "att.project.delete":
		return parseProjectRef(args, func(id string) Op { return ProjectDelete{ProjectID: id} })
	case "att.project.download":
		return parseProjectDownload(args)

	case "att.code.list_files":
		return parseProjectRef(args, func(id string) Op { return CodeListFiles{ProjectID: id} })
	case "att.code.read":
		return parseCodeRead(args)
	case "att.code.write":
		return parseCodeWrite(args)
	case "att.code.search":
		return parseCodeSearch(args)
	case "att.code.diff":
		return parseCodeDiff(args)

	case "att.git.status":
		return parseProjectRef(args, func(id string) Op { return GitStatus{ProjectID: id} })
	case "att.git.commit":
		return parseGitCommit(args)
	case "att.git.push":
		return parseGitPush(args)
	case "att.git.branch":
		return parseGitBranch(args)
	case "att.git.log":
		return parseGitLog(args)
	case "att.git.actions":
		return parseGitActions(args)
	case "att.git.pr_create":
		return parseGitPRCreate(args)
	case "att.git.pr_merge":
		return parseGitPRMerge(args)
	case "att.git.pr_reviews":
		return parseGitPRReviews(args)

	case "att.runtime.start":
		return parseRuntimeStart(args)
	case "att.runtime.stop":
		return parseProjectRef(args, func(id string) Op { return RuntimeStop{ProjectID: id} })
	case "att.runtime.status":
		return parseProjectRef(args, func(id string) Op { return RuntimeStatus{ProjectID: id} })
	case "att.runtime.logs":
		return parseRuntimeLogs(args)

	case "att.test.run":
		return parseTestRun(args)

	case "att.debug.log":
		return parseDebugLog(args)
	case "att.debug.logs":
		return parseDebugLogs(args)

	case "att.deploy.build":
		return parseProjectRef(args, func(id string) Op { return DeployBuild{ProjectID: id} })
	case "att.deploy.run":
		return parseDeployRun(args)
	case "att.deploy.status":
		return parseProjectRef(args, func(id string) Op { return DeployStatus{ProjectID: id} })
	}

	return nil, &UnknownToolError{Name: name}
}

func parseProjectRef(args map[string]any, build func(id string) Op) (Op, error) {
	id, err := reqString(args, "project_id")
	if err != nil {
		return nil, err
	}
	return build(id), nil
}

func parseProjectCreate(args map[string]any) (Op, error) {
	name, err := reqString(args, "name")
	if err != nil {
		return nil, err
	}
	path, err := optString(args, "path")
	if err != nil {
		return nil, err
	}
	configPath, err := optString(args, "config_path")
	if err != nil {
		return nil, err
	}
	return ProjectCreate{Name: name, Path: path, ConfigPath: configPath}, nil
}

func parseProjectClone(args map[string]any) (Op, error) {
	name, err := reqString(args, "name")
	if err != nil {
		return nil, err
	}
	remote, err := reqString(args, "remote_url")
	if err != nil {
		return nil, err
	}
	path, err := optString(args, "path")
	if err != nil {
		return nil, err
	}
	return ProjectClone{Name: name, RemoteURL: remote, Path: path}, nil
}

func parseProjectDownload(args map[string]any) (Op, error) {
	id, err := reqString(args, "project_id")
	if err != nil {
		return nil, err
	}
	base, err := optString(args, "base_path")
	if err != nil {
		return nil, err
	}
	return ProjectDownload{ProjectID: id, BasePath: base}, nil
}

func parseCodeRead(args map[string]any) (Op, error) {
	id, err := reqString(args, "project_id")
	if err != nil {
		return nil, err
	}
	path, err := reqString(args, "path")
	if err != nil {
		return nil, err
	}
	return CodeRead{ProjectID: id, Path: path}, nil
}

func parseCodeWrite(args map[string]any) (Op, error) {
	id, err := reqString(args, "project_id")
	if err != nil {
		return nil, err
	}
	path, err := reqString(args, "path")
	if err != nil {
		return nil, err
	}
	content, err := reqString(args, "content")
	if err != nil {
		return nil, err
	}
	return CodeWrite{ProjectID: id, Path: path, Content: content}, nil
}

func parseCodeSearch(args map[string]any) (Op, error) {
	id, err := reqString(args, "project_id")
	if err != nil {
		return nil, err
	}
	query, err := reqString(args, "query")
	if err != nil {
		return nil, err
	}
	return CodeSearch{ProjectID: id, Query: query}, nil
}

func parseCodeDiff(args map[string]any) (Op, error) {
	id, err := reqString(args, "project_id")
	if err != nil {
		return nil, err
	}
	path, err := reqString(args, "path")
	if err != nil {
		return nil, err
	}
	content, err := reqString(args, "content")
	if err != nil {
		return nil, err
	}
	return CodeDiff{ProjectID: id, Path: path, Content: content}, nil
}

func parseGitCommit(args map[string]any) (Op, error) {
	id, err := reqString(args, "project_id")
	if err != nil {
		return nil, err
	}
	message, err := reqString(args, "message")
	if err != nil {
		return nil, err
	}
	return GitCommit{ProjectID: id, Message: message}, nil
}

func parseGitPush(args map[string]any) (Op, error) {
	id, err := reqString(args, "project_id")
	if err != nil {
		return nil, err
	}
	remote, err := optString(args, "remote")
	if err != nil {
		return nil, err
	}
	branch, err := reqString(args, "branch")
	if err != nil {
		return nil, err
	}
	return GitPush{ProjectID: id, Remote: remote, Branch: branch}, nil
}

func parseGitBranch(args map[string]any) (Op, error) {
	id, err := reqString(args, "project_id")
	if err != nil {
		return nil, err
	}
	name, err := reqString(args, "name")
	if err != nil {
		return nil, err
	}
	checkout, err := optBool(args, "checkout", false)
	if err != nil {
		return nil, err
	}
	return GitBranch{ProjectID: id, Name: name, Checkout: checkout}, nil
}

func parseGitLog(args map[string]any) (Op, error) {
	id, err := reqString(args, "project_id")
	if err != nil {
		return nil, err
	}
	limit, err := optInt(args, "limit", 20, positive)
	if err != nil {
		return nil, err
	}
	return GitLog{ProjectID: id, Limit: limit}, nil
}

func parseGitActions(args map[string]any) (Op, error) {
	id, err := reqString(args, "project_id")
	if err != nil {
		return nil, err
	}
	limit, err := optInt(args, "limit", 10, positive)
	if err != nil {
		return nil, err
	}
	return GitActions{ProjectID: id, Limit: limit}, nil
}

func parseGitPRCreate(args map[string]any) (Op, error) {
	id, err := reqString(args, "project_id")
	if err != nil {
		return nil, err
	}
	title, err := reqString(args, "title")
	if err != nil {
		return nil, err
	}
	body, err := optString(args, "body")
	if err != nil {
		return nil, err
	}
	base, err := optString(args, "base")
	if err != nil {
		return nil, err
	}
	head, err := optString(args, "head")
	if err != nil {
		return nil, err
	}
	return GitPRCreate{ProjectID: id, Title: title, Body: body, Base: base, Head: head}, nil
}

func parseGitPRMerge(args map[string]any) (Op, error) {
	id, err := reqString(args, "project_id")
	if err != nil {
		return nil, err
	}
	ref, err := reqString(args, "pr_ref")
	if err != nil {
		return nil, err
	}
	strategy, err := optString(args, "strategy")
	if err != nil {
		return nil, err
	}
	if strategy == "" {
		strategy = "squash"
	}
	switch strategy {
	case "squash", "merge", "rebase":
	default:
		return nil, &ArgumentError{Key: "strategy", Msg: "must be one of squash, merge, rebase"}
	}
	return GitPRMerge{ProjectID: id, PRRef: ref, Strategy: strategy}, nil
}

func parseGitPRReviews(args map[string]any) (Op, error) {
	id, err := reqString(args, "project_id")
	if err != nil {
		return nil, err
	}
	ref, err := reqString(args, "pr_ref")
	if err != nil {
		return nil, err
	}
	return GitPRReviews{ProjectID: id, PRRef: ref}, nil
}

func parseRuntimeStart(args map[string]any) (Op, error) {
	id, err := reqString(args, "project_id")
	if err != nil {
		return nil, err
	}
	command, err := reqString(args, "command")
	if err != nil {
		return nil, err
	}
	healthURL, err := optString(args, "health_url")
	if err != nil {
		return nil, err
	}
	healthCmd, err := optStringSlice(args, "health_command")
	if err != nil {
		return nil, err
	}
	return RuntimeStart{ProjectID: id, Command: command, HealthURL: healthURL, HealthCommand: healthCmd}, nil
}

func parseRuntimeLogs(args map[string]any) (Op, error) {
	id, err := reqString(args, "project_id")
	if err != nil {
		return nil, err
	}
	cursor, err := optIntPtr(args, "cursor", nonNegative)
	if err != nil {
		return nil, err
	}
	limit, err := optInt(args, "limit", 100, positive)
	if err != nil {
		return nil, err
	}
	return RuntimeLogs{ProjectID: id, Cursor: cursor, Limit: limit}, nil
}

func parseTestRun(args map[string]any) (Op, error) {
	id, err := reqString(args, "project_id")
	if err != nil {
		return nil, err
	}
	suite, err := reqString(args, "suite")
	if err != nil {
		return nil, err
	}
	markers, err := optString(args, "markers")
	if err != nil {
		return nil, err
	}
	timeout, err := optInt(args, "timeout_seconds", 0, positive)
	if err != nil {
		return nil, err
	}
	return TestRun{ProjectID: id, Suite: suite, Markers: markers, TimeoutSeconds: timeout}, nil
}

func parseDebugLog(args map[string]any) (Op, error) {
	id, err := reqString(args, "project_id")
	if err != nil {
		return nil, err
	}
	message, err := reqString(args, "message")
	if err != nil {
		return nil, err
	}
	level, err := optString(args, "level")
	if err != nil {
		return nil, err
	}
	if level == "" {
		level = "info"
	}
	return DebugLog{ProjectID: id, Message: message, Level: level}, nil
}

func parseDebugLogs(args map[string]any) (Op, error) {
	id, err := reqString(args, "project_id")
	if err != nil {
		return nil, err
	}
	limit, err := optInt(args, "limit", 100, positive)
	if err != nil {
		return nil, err
	}
	return DebugLogs{ProjectID: id, Limit: limit}, nil
}

func parseDeployRun(args map[string]any) (Op, error) {
	id, err := reqString(args, "project_id")
	if err != nil {
		return nil, err
	}
	command, err := reqString(args, "command")
	if err != nil {
		return nil, err
	}
	healthURL, err := optString(args, "health_url")
	if err != nil {
		return nil, err
	}
	return DeployRun{ProjectID: id, Command: command, HealthURL: healthURL}, nil
}
