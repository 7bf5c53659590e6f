package models

import "time"

// Status tracks an investigation through its pipeline stages.
type Status string

const (
	StatusPending            Status = "pending"
	StatusConfirmingIdentity Status = "confirming_identity"
	StatusScraping           Status = "scraping"
	StatusBuildingPersona    Status = "building_persona"
	StatusReady              Status = "ready"
	StatusError              Status = "error"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusReady || s == StatusError
}

// SourceType is one external public-information venue the scraper knows how to query.
// The set is closed. The string values are part of the API contract.
type SourceType string

const (
	SourceProfessionalNetwork SourceType = "professional-network"
	SourceSocialNetwork       SourceType = "social-network"
	SourceEncyclopedia        SourceType = "encyclopedia"
	SourceNews                SourceType = "news"
	SourceCompanySite         SourceType = "company-site"
	SourcePodcastDirectory    SourceType = "podcast-directory"
	SourceVideoPlatform       SourceType = "video-platform"
	SourceCodeHosting         SourceType = "code-hosting"
	SourceGenericSearch       SourceType = "generic-search"
	SourceOther               SourceType = "other"
)

// AllSourceTypes lists every scrapeable source in the scraper's priority order.
func AllSourceTypes() []SourceType {
	return []SourceType{
		SourceEncyclopedia,
		SourceProfessionalNetwork,
		SourceCompanySite,
		SourceNews,
		SourceCodeHosting,
		SourceVideoPlatform,
		SourcePodcastDirectory,
		SourceSocialNetwork,
		SourceGenericSearch,
	}
}

// Investigation is one end-to-end run of the pipeline for a single target name.
// It is owned and mutated exclusively by the coordinator; everything else gets copies.
type Investigation struct {
	TargetID   string `json:"targetId"`
	TargetName string `json:"targetName"`
	// TargetContext is the disambiguating context supplied at start, kept for
	// re-resolution with merged context.
	TargetContext      string              `json:"targetContext,omitempty"`
	Status             Status              `json:"status"`
	IdentityCandidates []IdentityCandidate `json:"identityCandidates,omitempty"`
	ConfirmedIdentity  *IdentityCandidate  `json:"confirmedIdentity,omitempty"`
	SourcesScraped     int                 `json:"sourcesScraped"`
	DataPoints         int                 `json:"dataPoints"`
	ScrapedData        []ScrapedData       `json:"scrapedData,omitempty"`
	Persona            *PersonaModel       `json:"persona,omitempty"`
	ConversationID     string              `json:"conversationId,omitempty"`
	Error              string              `json:"error,omitempty"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
}

// IdentityCandidate is one plausible real-world match for an ambiguous input name.
// Immutable once produced by the identity resolver.
type IdentityCandidate struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Confidence   int      `json:"confidence"`
	SourceURLs   []string `json:"sourceUrls,omitempty"`
	ThumbnailURL string   `json:"thumbnailUrl,omitempty"`
}

// ScrapedData is one source's contribution to an investigation. Immutable once produced.
type ScrapedData struct {
	ID         string     `json:"id"`
	SourceType SourceType `json:"sourceType"`
	SourceURL  string     `json:"sourceUrl"`
	ScrapedAt  time.Time  `json:"scrapedAt"`
	// Confidence is fixed per source type, not computed from content quality.
	Confidence int        `json:"confidence"`
	Data       PersonData `json:"data"`
	RawExcerpt string     `json:"rawExcerpt,omitempty"`
}

// PersonData holds loosely-structured extracted facts. All fields are
// optional; absence means "not found", not "empty".
type PersonData struct {
	FullName        string       `json:"fullName,omitempty"`
	Role            string       `json:"role,omitempty"`
	Company         string       `json:"company,omitempty"`
	Location        string       `json:"location,omitempty"`
	Bio             string       `json:"bio,omitempty"`
	ProfileImageURL string       `json:"profileImageUrl,omitempty"`
	Education       []string     `json:"education,omitempty"`
	WorkHistory     []Experience `json:"workHistory,omitempty"`
	Quotes          []Quote      `json:"quotes,omitempty"`
	Opinions        []Opinion    `json:"opinions,omitempty"`
	Skills          []string     `json:"skills,omitempty"`
}

// Quote is a verbatim statement attributed to the target.
type Quote struct {
	Text    string `json:"text"`
	Source  string `json:"source,omitempty"`
	Context string `json:"context,omitempty"`
	Date    string `json:"date,omitempty"`
}

// Opinion is a position the target holds on a topic.
type Opinion struct {
	Topic      string `json:"topic"`
	Position   string `json:"position"`
	Confidence int    `json:"confidence"`
}

// Experience is one work-history entry.
type Experience struct {
	Role        string `json:"role"`
	Company     string `json:"company,omitempty"`
	Period      string `json:"period,omitempty"`
	Description string `json:"description,omitempty"`
}

// CountDataPoints counts the atomic facts in a PersonData record: each present
// scalar field contributes one, each list field contributes its length.
func CountDataPoints(d PersonData) int {
	count := 0
	for _, scalar := range []string{d.FullName, d.Role, d.Company, d.Location, d.Bio, d.ProfileImageURL} {
		if scalar != "" {
			count++
		}
	}
	count += len(d.Education)
	count += len(d.WorkHistory)
	count += len(d.Quotes)
	count += len(d.Opinions)
	count += len(d.Skills)
	return count
}
