package playback

// voices is the fixed rotation used to tell speakers apart.
var voices = []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"}

// VoiceFor maps a model's position in the conversation to a voice. Stable
// for the conversation's duration so listeners can distinguish speakers.
func VoiceFor(modelIndex int) string {
	if modelIndex < 0 {
		modelIndex = -modelIndex
	}
	return voices[modelIndex%len(voices)]
}
