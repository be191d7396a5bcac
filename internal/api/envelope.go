package api

import "encoding/json"

// The backend answers in one of three envelope shapes depending on how the
// request was routed: a Lambda proxy envelope {statusCode, body}, a gateway
// wrapper carrying a nested body, or a bare JSON object. envelopeKind tags
// which variant was recognized so decoding happens exactly once, here;
// downstream code only ever sees the flattened payload.
type envelopeKind int

const (
	envelopeBare envelopeKind = iota
	envelopeLambda
	envelopeGateway
	envelopeUnknown
)

func classifyEnvelope(v any) envelopeKind {
	m, ok := v.(map[string]any)
	if !ok {
		return envelopeUnknown
	}
	if _, hasStatus := m["statusCode"]; hasStatus {
		if _, hasBody := m["body"]; hasBody {
			return envelopeLambda
		}
	}
	if _, hasResponse := m["response"]; hasResponse {
		return envelopeGateway
	}
	return envelopeBare
}

// decodeEnvelope flattens any of the known envelope shapes into the payload
// object. Unparseable bodies and unrecognized shapes degrade to an empty
// object rather than erroring; availability wins over signaling here.
func decodeEnvelope(v any) map[string]any {
	switch classifyEnvelope(v) {
	case envelopeLambda:
		m := v.(map[string]any)
		return decodeBody(m["body"])
	case envelopeGateway:
		m := v.(map[string]any)
		inner, ok := m["response"].(map[string]any)
		if !ok {
			return map[string]any{}
		}
		return decodeBody(inner["body"])
	case envelopeBare:
		return v.(map[string]any)
	default:
		return map[string]any{}
	}
}

// decodeBody resolves an envelope body that may be a JSON string, an already
// structured object, or absent.
func decodeBody(body any) map[string]any {
	switch b := body.(type) {
	case string:
		var out map[string]any
		if err := json.Unmarshal([]byte(b), &out); err != nil {
			return map[string]any{"body": b}
		}
		return out
	case map[string]any:
		return b
	case nil:
		return map[string]any{}
	default:
		return map[string]any{}
	}
}
