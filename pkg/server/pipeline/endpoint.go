package pipeline

import "strings"

// APIPrefix marks REST requests.
const APIPrefix = "/rest/"

// Classify returns the endpoint a path belongs to and whether it is a
// REST call. Pages are keyed by their first path segment, REST calls by
// their first two: /get/device/3 is /get, /rest/instance/device/r1 is
// /rest/instance.
func Classify(path string) (endpoint string, api bool) {
	api = strings.HasPrefix(path, APIPrefix)
	n := 2
	if api {
		n = 3
	}
	parts := strings.SplitN(path, "/", n+1)
	if len(parts) > n {
		parts = parts[:n]
	}
	return strings.Join(parts, "/"), api
}
