package transcription

// ChunkProcessor defines the interface for audio chunk pipelines
type ChunkProcessor interface {
	HandleChunk(base64WAV string) error
	SetLanguage(code string)
	SetAnalyzeScam(enabled bool)
	Stop()
}

// Ensure the processor implements the interface
var _ ChunkProcessor = (*Processor)(nil)
