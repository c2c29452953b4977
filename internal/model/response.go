package model

// ListResponse is the standard envelope for list endpoints, wrapping results
// in a "resource" array with pagination metadata.
type ListResponse struct {
	Resource interface{}   `json:"resource"`
	Meta     *ResponseMeta `json:"meta,omitempty"`
}

// ResponseMeta contains pagination information for list responses.
type ResponseMeta struct {
	Count  int    `json:"count"`
	Total  *int64 `json:"total,omitempty"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// ErrorResponse is the standard envelope for error responses.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the stable machine-readable code alongside the HTTP
// status and a human-readable message. Clients branch on Code, not Message.
type ErrorDetail struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
