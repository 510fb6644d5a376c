package github

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/atthub/atthub/internal/bootstrap"
)

// Providers adapts the client to the self-bootstrap pipeline hooks.
// ciRef is the commit ref polled for CI state; mergeMethod is applied
// when the pipeline auto-merges. Deploy, health, and watchdog hooks are
// local concerns and stay unset here.
func Providers(c *Client, ciRef, mergeMethod string) bootstrap.Providers {
	if ciRef == "" {
		ciRef = "HEAD"
	}
	if mergeMethod == "" {
		mergeMethod = "merge"
	}
	return bootstrap.Providers{
		CIStatus: func(ctx context.Context) (string, error) {
			state, err := c.CombinedStatus(ctx, ciRef)
			if err != nil {
				return "", err
			}
			switch state {
			case "success":
				return bootstrap.CISuccess, nil
			case "failure", "error":
				return bootstrap.CIFailure, nil
			default:
				return bootstrap.CIPending, nil
			}
		},
		PRCreate: func(ctx context.Context, req bootstrap.PRRequest) (string, error) {
			pr, err := c.CreatePullRequest(ctx, req.Title, req.Body, req.Base, req.Branch)
			if err != nil {
				return "", err
			}
			return pr.HTMLURL, nil
		},
		PRMerge: func(ctx context.Context, url string) error {
			number, err := prNumberFromURL(url)
			if err != nil {
				return err
			}
			return c.MergePullRequest(ctx, number, mergeMethod)
		},
	}
}

// prNumberFromURL extracts the trailing PR number from an html_url like
// https://github.com/owner/repo/pull/42.
func prNumberFromURL(url string) (int, error) {
	trimmed := strings.TrimRight(url, "/")
	idx := strings.LastIndexByte(trimmed, '/')
	if idx < 0 {
		return 0, fmt.Errorf("malformed pull request url %q", url)
	}
	n, err := strconv.Atoi(trimmed[idx+1:])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("malformed pull request url %q", url)
	}
	return n, nil
}
