// Package speech reads tutor replies aloud with Azure neural text-to-speech.
package speech

// DefaultVoice is a Castilian Spanish neural voice.
// Full list: https://learn.microsoft.com/en-us/azure/ai-services/speech-service/language-support
const DefaultVoice = "es-ES-ElviraNeural"

// DefaultLanguage is the xml:lang of every synthesis request.
const DefaultLanguage = "es-ES"

// Audio format returned by Azure and expected by the player.
const DefaultAudioFormat = "riff-24khz-16bit-mono-pcm"

// Audio parameters matching the default format.
const (
	SampleRate   = 24000
	ChannelCount = 1
)
