package core

// prompts.go holds the fixed texts of the wellness assistant.  Keeping them
// together makes them easy to tweak without touching the state machine.

const (
	// SystemPrompt instructs the completion service.  It is applied by the
	// transport layer, never stored in the transcript.
	SystemPrompt = "You are a friendly Ayurvedic wellness assistant. Answer in plain, warm language. " +
		"Share general lifestyle, diet and traditional-remedy information, but never give a diagnosis " +
		"or prescribe treatment. Recommend seeing a qualified practitioner for anything serious, " +
		"persistent or urgent. Keep answers short and ask one follow-up question when it helps."

	// SeedGreeting is the first assistant message of every new session.
	SeedGreeting = "Namaste! I'm your Ayurvedic wellness assistant. How can I help you today?"

	// FallbackReply replaces a completion that came back without usable text.
	FallbackReply = "I'm sorry, I couldn't come up with an answer to that. Could you rephrase your question?"

	// CompletionErrorReply is appended when the completion call fails.
	CompletionErrorReply = "I'm sorry, I'm having trouble responding right now. Please try again in a moment."

	// NoticeCompletionFailed is the transient notification shown alongside
	// CompletionErrorReply.
	NoticeCompletionFailed = "The assistant could not be reached. Your message was kept."

	// NoticeTerminationFailed warns that the server copy may outlive the
	// locally closed session.
	NoticeTerminationFailed = "Session closed on this device, but the server record may still exist."

	// NoticeSessionClosed confirms a clean termination.
	NoticeSessionClosed = "Your chat session has been closed."
)

// suggestedQueries are offered while the transcript holds only the greeting.
var suggestedQueries = []string{
	"Are Ayurvedic remedies effective for digestive issues?",
	"What is my dosha and why does it matter?",
	"Which herbs are traditionally used for better sleep?",
	"How can I adjust my diet for the changing seasons?",
}
