package conversation

import (
	"fmt"
	"strings"
)

const defaultPersona = "You are a thoughtful conversationalist taking part in a group discussion."

// The voice directive is a hard output-format contract: the playback side
// depends on the two-field JSON shape.
const voiceDirective = `Respond with only a JSON object containing exactly two string fields: "input" (the literal text to be spoken aloud) and "instructions" (a description of the delivery: affect, tone, pacing, emotion). Do not wrap the object in markdown code fences and do not add any prose outside the JSON object.`

var shapeDirectives = map[ResponseType]string{
	ResponsePrecise:  "Keep your response brief and to the point: a few sentences at most.",
	ResponseNormal:   "Respond conversationally with a moderate amount of detail.",
	ResponseDetailed: "Give a thorough, well-developed response that explores the topic in depth.",
	ResponseVoice:    voiceDirective,
}

// BuildSystemPrompt assembles a model's system prompt from persona, peer
// awareness, tone and response-shape clauses, in that fixed order. Pure;
// no I/O.
func BuildSystemPrompt(persona, toneID string, responseType ResponseType, modelName, peerNames string) string {
	var parts []string

	p := strings.TrimSpace(persona)
	if p == "" {
		p = defaultPersona
	}
	parts = append(parts, p)

	if modelName != "" && peerNames != "" {
		parts = append(parts, fmt.Sprintf(
			"You are %s, in a conversation with %s. Listen to what the others say and build on their remarks rather than repeating them.",
			modelName, peerNames))
	}

	if instr := toneInstruction(toneID); instr != "" {
		parts = append(parts, instr)
	}

	if shape, ok := shapeDirectives[responseType]; ok {
		parts = append(parts, shape)
	} else {
		parts = append(parts, shapeDirectives[ResponseNormal])
	}

	return strings.Join(parts, " ")
}
