package models

import "time"

// PersonaModel is the synthesized personality/knowledge/speech profile of a
// target plus its rendered role-play system prompt. Created once per
// investigation when scraping completes and immutable thereafter.
type PersonaModel struct {
	TargetID    string      `json:"targetId"`
	TargetName  string      `json:"targetName"`
	Identity    Identity    `json:"identity"`
	Personality Personality `json:"personality"`
	Knowledge   Knowledge   `json:"knowledge"`
	Speech      Speech      `json:"speech"`
	// SystemPrompt instructs a downstream LLM to role-play the subject.
	SystemPrompt string    `json:"systemPrompt"`
	CreatedAt    time.Time `json:"createdAt"`
	DataPoints   int       `json:"dataPoints"`
}

// Identity holds who the target is.
type Identity struct {
	FullName        string `json:"fullName"`
	Role            string `json:"role,omitempty"`
	Company         string `json:"company,omitempty"`
	Location        string `json:"location,omitempty"`
	Bio             string `json:"bio,omitempty"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
}

// Personality holds inferred character traits.
type Personality struct {
	Traits             []string `json:"traits,omitempty"`
	CommunicationStyle string   `json:"communicationStyle,omitempty"`
	Values             []string `json:"values,omitempty"`
	Quirks             []string `json:"quirks,omitempty"`
}

// Knowledge holds what the target knows and has done.
type Knowledge struct {
	Expertise   []string     `json:"expertise,omitempty"`
	Opinions    []Opinion    `json:"opinions,omitempty"`
	Experiences []string     `json:"experiences,omitempty"`
	Education   []string     `json:"education,omitempty"`
	WorkHistory []Experience `json:"workHistory,omitempty"`
}

// Speech holds how the target talks.
type Speech struct {
	Tone             string   `json:"tone,omitempty"`
	Vocabulary       []string `json:"vocabulary,omitempty"`
	SignaturePhrases []string `json:"signaturePhrases,omitempty"`
	ExampleQuotes    []string `json:"exampleQuotes,omitempty"`
}
