package types

type SuccessEnvelope struct {
	Data any       `json:"data"`
	Page *PageMeta `json:"page,omitempty"`
}

// PageMeta accompanies cursor-paginated list responses.
type PageMeta struct {
	NextCursor string `json:"nextCursor,omitempty"`
	Limit      int    `json:"limit"`
}

type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
	Details   any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
