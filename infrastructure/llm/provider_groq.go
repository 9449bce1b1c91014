package llm

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

func init() {
	RegisterProviderFactory("groq", openAICompatibleFactory("groq", GroqBaseURL))
}
