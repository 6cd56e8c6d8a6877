package conversation

// Tone is a static catalog entry. Instruction is the natural-language
// fragment appended to the system prompt when the tone is selected.
type Tone struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Instruction string `json:"-"`
}

var tones = []Tone{
	{
		ID:          "friendly",
		Name:        "Friendly",
		Description: "Warm and approachable",
		Instruction: "Keep a warm, friendly and approachable tone.",
	},
	{
		ID:          "formal",
		Name:        "Formal",
		Description: "Professional and precise",
		Instruction: "Maintain a formal, professional register with precise language.",
	},
	{
		ID:          "humorous",
		Name:        "Humorous",
		Description: "Playful and witty",
		Instruction: "Be playful and witty; light humor is welcome where it fits.",
	},
	{
		ID:          "skeptical",
		Name:        "Skeptical",
		Description: "Questioning and critical",
		Instruction: "Take a skeptical stance: question assumptions and probe weak arguments.",
	},
	{
		ID:          "analytical",
		Name:        "Analytical",
		Description: "Structured and evidence-driven",
		Instruction: "Reason analytically, structure your points and back them with evidence.",
	},
	{
		ID:          "passionate",
		Name:        "Passionate",
		Description: "Energetic and enthusiastic",
		Instruction: "Argue with energy and conviction; let enthusiasm show.",
	},
}

// Tones returns the read-only tone catalog.
func Tones() []Tone {
	out := make([]Tone, len(tones))
	copy(out, tones)
	return out
}

// toneInstruction looks up a tone's prompt fragment. Unknown or empty ids
// yield "" so the clause is silently omitted.
func toneInstruction(id string) string {
	for _, t := range tones {
		if t.ID == id {
			return t.Instruction
		}
	}
	return ""
}
