package toolcall

import (
	"net/url"
	"strings"
)

// Resource is a parsed att:// resource reference.
type Resource interface{ isResource() }

type ResProjects struct{}

type ResFiles struct{ ProjectID string }

type ResConfig struct{ ProjectID string }

type ResTests struct{ ProjectID string }

type ResLogs struct {
	ProjectID string
	Cursor    *int
	Limit     int
}

type ResCI struct{ ProjectID string }

func (ResProjects) isResource() {}
func (ResFiles) isResource()    {}
func (ResConfig) isResource()   {}
func (ResTests) isResource()    {}
func (ResLogs) isResource()     {}
func (ResCI) isResource()       {}

// ParseResourceURI parses the six att:// shapes. Only the logs shape
// accepts a query string, and only the cursor and limit keys.
func ParseResourceURI(raw string) (Resource, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "att" {
		return nil, &ArgumentError{Key: "uri", Msg: "expected att:// scheme"}
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	if u.Host == "projects" {
		if u.Path != "" && u.Path != "/" {
			return nil, &ArgumentError{Key: "uri", Msg: "unexpected path under att://projects"}
		}
		if u.RawQuery != "" {
			return nil, &ArgumentError{Key: "uri", Msg: "att://projects accepts no query"}
		}
		return ResProjects{}, nil
	}

	if u.Host != "project" || len(segments) != 2 || segments[0] == "" {
		return nil, &ArgumentError{Key: "uri", Msg: "unrecognized resource shape"}
	}
	id, leaf := segments[0], segments[1]

	if leaf != "logs" && u.RawQuery != "" {
		return nil, &ArgumentError{Key: "uri", Msg: "query parameters are only valid on the logs resource"}
	}

	switch leaf {
	case "files":
		return ResFiles{ProjectID: id}, nil
	case "config":
		return ResConfig{ProjectID: id}, nil
	case "tests":
		return ResTests{ProjectID: id}, nil
	case "ci":
		return ResCI{ProjectID: id}, nil
	case "logs":
		return parseLogsQuery(id, u.Query())
	}
	return nil, &ArgumentError{Key: "uri", Msg: "unrecognized resource shape"}
}

func parseLogsQuery(id string, q url.Values) (Resource, error) {
	res := ResLogs{ProjectID: id, Limit: 100}
	for key, vals := range q {
		switch key {
		case "cursor":
			n, err := coerceInt("cursor", vals[0])
			if err != nil {
				return nil, err
			}
			if err := checkInt("cursor", n, nonNegative); err != nil {
				return nil, err
			}
			res.Cursor = &n
		case "limit":
			n, err := coerceInt("limit", vals[0])
			if err != nil {
				return nil, err
			}
			if err := checkInt("limit", n, positive); err != nil {
				return nil, err
			}
			res.Limit = n
		default:
			return nil, &ArgumentError{Key: key, Msg: "unsupported query key on logs resource"}
		}
	}
	return res, nil
}
