// Package voice picks a synthetic voice for a persona. Selection is a chain
// of swappable policies: provider catalog match, first-name lookup table, bio
// keyword heuristic, fixed default. The table-based policies are crude on
// purpose; they are the documented fallback, not a gender oracle.
package voice

import (
	"strings"

	"github.com/myrjola/doppel/internal/models"
)

// Selector proposes a voice id for a persona. ok is false when the policy has
// no opinion and the next policy in the chain should decide.
type Selector interface {
	Select(persona models.PersonaModel) (voiceID string, ok bool)
}

// Chain tries each policy in order and returns the first proposal.
type Chain []Selector

func (c Chain) Select(persona models.PersonaModel) (string, bool) {
	for _, selector := range c {
		if voiceID, ok := selector.Select(persona); ok {
			return voiceID, true
		}
	}
	return "", false
}

// Catalog matches the persona's first name against the provider's voice
// catalog.
type Catalog struct {
	Voices []string
}

func (s Catalog) Select(persona models.PersonaModel) (string, bool) {
	firstName := strings.ToLower(firstName(persona.Identity.FullName))
	for _, catalogVoice := range s.Voices {
		if strings.ToLower(catalogVoice) == firstName {
			return catalogVoice, true
		}
	}
	return "", false
}

// Masculine and feminine presenting voices in the provider's lineup.
const (
	masculineVoice = "onyx"
	feminineVoice  = "nova"
)

// firstNames maps common first names to a voice. Static and incomplete by
// nature; unknown names fall through to the next policy.
var firstNames = map[string]string{
	"james": masculineVoice, "john": masculineVoice, "robert": masculineVoice,
	"michael": masculineVoice, "david": masculineVoice, "william": masculineVoice,
	"richard": masculineVoice, "thomas": masculineVoice, "mark": masculineVoice,
	"charles": masculineVoice, "peter": masculineVoice, "paul": masculineVoice,
	"george": masculineVoice, "kenneth": masculineVoice, "andrew": masculineVoice,
	"mary": feminineVoice, "patricia": feminineVoice, "linda": feminineVoice,
	"barbara": feminineVoice, "elizabeth": feminineVoice, "jennifer": feminineVoice,
	"maria": feminineVoice, "susan": feminineVoice, "margaret": feminineVoice,
	"lisa": feminineVoice, "nancy": feminineVoice, "karen": feminineVoice,
	"ada": feminineVoice, "grace": feminineVoice, "anna": feminineVoice,
}

// NameTable is the static first-name lookup policy.
type NameTable struct{}

func (NameTable) Select(persona models.PersonaModel) (string, bool) {
	voiceID, ok := firstNames[strings.ToLower(firstName(persona.Identity.FullName))]
	return voiceID, ok
}

// BioKeywords scans the bio for gendered keywords.
type BioKeywords struct{}

func (BioKeywords) Select(persona models.PersonaModel) (string, bool) {
	bio := " " + strings.ToLower(persona.Identity.Bio) + " "
	for _, keyword := range []string{" she ", " her ", " hers ", " herself ", " actress ", " businesswoman "} {
		if strings.Contains(bio, keyword) {
			return feminineVoice, true
		}
	}
	for _, keyword := range []string{" he ", " his ", " him ", " himself ", " businessman "} {
		if strings.Contains(bio, keyword) {
			return masculineVoice, true
		}
	}
	return "", false
}

// Default always proposes a fixed voice. Put it last in the chain.
type Default struct {
	Voice string
}

func (s Default) Select(models.PersonaModel) (string, bool) {
	return s.Voice, true
}

// NewDefaultChain assembles the standard policy order over the provider's
// voice catalog.
func NewDefaultChain(catalog []string) Selector {
	return Chain{
		Catalog{Voices: catalog},
		NameTable{},
		BioKeywords{},
		Default{Voice: "alloy"},
	}
}

func firstName(fullName string) string {
	fields := strings.Fields(fullName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
