package conversation

import "testing"

func TestStripFence(t *testing.T) {
	payload := `{"input":"hello","instructions":"calm"}`

	cases := []struct {
		name string
		in   string
	}{
		{"no fence", payload},
		{"plain fence", "```\n" + payload + "\n```"},
		{"json fence", "```json\n" + payload + "\n```"},
		{"leading whitespace", "  ```json\n" + payload + "\n```  "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StripFence(tc.in); got != payload {
				t.Fatalf("got %q, want %q", got, payload)
			}
		})
	}
}

func TestStripFence_NonJSONContentUntouched(t *testing.T) {
	if got := StripFence("just some prose"); got != "just some prose" {
		t.Fatalf("got %q", got)
	}
}

func TestStripFence_FenceOnSingleLine(t *testing.T) {
	if got := StripFence("```{\"input\":\"x\"}```"); got != `{"input":"x"}` {
		t.Fatalf("got %q", got)
	}
}
