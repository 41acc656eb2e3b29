package schemas

// ErrorPayload is the uniform error shape returned by every tool:
// {"error": <kind>, "message": <text>, <context key>: <original input>}.
type ErrorPayload struct {
	Kind       string
	Message    string
	ContextKey string
	Context    interface{}
}

// NewErrorPayload builds a payload carrying the caller's original input under key.
// An empty key omits the context entry.
func NewErrorPayload(kind, message, key string, value interface{}) *ErrorPayload {
	return &ErrorPayload{Kind: kind, Message: message, ContextKey: key, Context: value}
}

func (e *ErrorPayload) Error() string { return e.Kind + ": " + e.Message }

// Map flattens the payload into its wire form.
func (e *ErrorPayload) Map() map[string]interface{} {
	m := map[string]interface{}{
		"error":   e.Kind,
		"message": e.Message,
	}
	if e.ContextKey != "" {
		m[e.ContextKey] = e.Context
	}
	return m
}

// MarshalJSON implements json.Marshaler.
func (e *ErrorPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Map())
}
