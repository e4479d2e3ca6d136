package mapper

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseReply decodes a suggester reply into a mapping. Markdown code fences
// and prose around the object are tolerated. Entries whose value is not a
// non-empty string are returned in skipped.
func ParseReply(text string) (mapping map[string]string, skipped []string, err error) {
	s := stripCodeFence(strings.TrimSpace(text))

	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		if strings.HasPrefix(s, "[") {
			return nil, nil, fmt.Errorf("%w: reply is a JSON array", ErrMalformedResponse)
		}
		start, end := strings.Index(s, "{"), strings.LastIndex(s, "}")
		if start < 0 || end <= start {
			return nil, nil, fmt.Errorf("%w: no JSON object in reply", ErrMalformedResponse)
		}
		obj = nil
		if err := json.Unmarshal([]byte(s[start:end+1]), &obj); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	}
	if obj == nil {
		return nil, nil, fmt.Errorf("%w: reply is not a JSON object", ErrMalformedResponse)
	}

	mapping = make(map[string]string, len(obj))
	for k, v := range obj {
		str, ok := v.(string)
		if !ok || strings.TrimSpace(str) == "" {
			skipped = append(skipped, k)
			continue
		}
		mapping[k] = str
	}
	return mapping, skipped, nil
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
