package audit

import (
	"net/http"
	"strings"
)

// ActionResource holds action and resource derived from an HTTP route.
type ActionResource struct {
	Action   string
	Resource string
}

// ParseRoute returns action and resource for an HTTP method and chi route pattern
// (e.g. POST /v1/tamper-flags/{id}/review -> review on tamper_flag).
// The resource is the first path segment after the version, singularized with dashes as underscores.
// The action is the last literal segment when it differs from the resource segment, otherwise a verb from the method.
func ParseRoute(method, pattern string) ActionResource {
	var literals []string
	for _, seg := range strings.Split(strings.Trim(pattern, "/"), "/") {
		if seg == "" || strings.HasPrefix(seg, "{") || isVersion(seg) {
			continue
		}
		literals = append(literals, seg)
	}
	if len(literals) == 0 {
		return ActionResource{Action: methodToAction(method, false), Resource: "unknown"}
	}
	resource := segmentToResource(literals[0])
	if len(literals) > 1 {
		return ActionResource{Action: strings.ReplaceAll(literals[len(literals)-1], "-", "_"), Resource: resource}
	}
	hasParam := strings.Contains(pattern, "{")
	return ActionResource{Action: methodToAction(method, hasParam), Resource: resource}
}

func isVersion(seg string) bool {
	if len(seg) < 2 || seg[0] != 'v' {
		return false
	}
	for _, c := range seg[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func segmentToResource(seg string) string {
	// tamper-flags -> tamper_flag, signals -> signal
	s := strings.ReplaceAll(seg, "-", "_")
	if strings.HasSuffix(s, "s") && !strings.HasSuffix(s, "ss") {
		s = strings.TrimSuffix(s, "s")
	}
	return s
}

func methodToAction(method string, hasParam bool) string {
	switch method {
	case http.MethodGet:
		if hasParam {
			return "get"
		}
		return "list"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return strings.ToLower(method)
	}
}
