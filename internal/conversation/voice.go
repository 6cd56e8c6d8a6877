package conversation

import "strings"

// StripFence removes a leading/trailing markdown code fence from a voice-mode
// reply. Models sometimes wrap the JSON contract in ```json fences despite
// the directive. The content is returned as-is otherwise; no JSON validation
// happens here, so consumers must tolerate parse failure.
func StripFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}

	// drop the opening fence line, including a language tag like ```json
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		t = t[i+1:]
	} else {
		t = strings.TrimPrefix(t, "```")
	}

	t = strings.TrimSpace(t)
	if strings.HasSuffix(t, "```") {
		t = t[:len(t)-3]
	}
	return strings.TrimSpace(t)
}
