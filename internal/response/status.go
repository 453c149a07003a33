package response

import "strconv"

var statusDescriptions = map[int]string{
	// 2xx
	200: "OK",
	201: "Created",
	202: "Accepted",
	204: "No Content",

	// 3xx
	301: "Moved Permanently",
	302: "Found",
	304: "Not Modified",

	// 4xx
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	408: "Request Timeout",
	409: "Conflict",
	422: "Unprocessable Entity",
	429: "Too Many Requests",

	// 5xx
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
	504: "Gateway Timeout",
}

// IsSuccessStatus reports whether code is in the 2xx range.
func IsSuccessStatus(code int) bool {
	return code >= 200 && code < 300
}

// DescribeStatus returns a short human-readable description of code, or
// "HTTP <code>" for codes outside the built-in table.
func DescribeStatus(code int) string {
	if d, ok := statusDescriptions[code]; ok {
		return d
	}
	return "HTTP " + strconv.Itoa(code)
}
