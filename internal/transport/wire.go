package transport

import "encoding/json"

// Request — тело запроса к endpoint.
type Request struct {
	Action  string `json:"action"`
	Nonce   string `json:"nonce,omitempty"`
	SiteID  string `json:"site_id,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// Envelope — конверт ответа: {"success": bool, "data": object|string}.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Success формирует успешный конверт.
func Success(data any) Envelope {
	return newEnvelope(true, data)
}

// Failure формирует конверт отказа с сообщением.
func Failure(message string) Envelope {
	return newEnvelope(false, map[string]any{"message": message})
}

func newEnvelope(ok bool, data any) Envelope {
	env := Envelope{Success: ok}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			env.Data = raw
		}
	}
	return env
}
