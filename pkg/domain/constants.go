package domain

// Delta field names. They double as JSON keys when deltas are logged.
const (
	FieldConversationHistory = "conversation_history"
	FieldProjectPhase        = "project_phase"
	FieldPresentationPlan    = "presentation_plan"
	FieldSlides              = "slides"
	FieldSystemPrompt        = "system_prompt"
	FieldGenerationConfig    = "generation_config"
)

// Graph sentinels. They can appear as edge endpoints but never as registered nodes.
const (
	Start = "__start__"
	End   = "__end__"
)
