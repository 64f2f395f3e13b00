package lexicon

import (
	"strings"

	"go.uber.org/zap"
)

// Canonical list names. Detection patterns, the learning pipeline, and the
// relationship extractor all key off these.
const (
	ListDialogueVerbs    = "dialogue_verbs"
	ListActionVerbs      = "action_verbs"
	ListTitles           = "titles"
	ListPlaceTypes       = "place_types"
	ListObjectTypes      = "object_types"
	ListFactionWords     = "faction_words"
	ListConnectors       = "connectors"
	ListSentenceStarters = "sentence_starters"
	ListCommonWords      = "common_words"
	ListStopWords        = "stop_words"
	ListSpatialVerbs     = "spatial_verbs"
	ListPossessionVerbs  = "possession_verbs"
	ListSocialVerbs      = "social_verbs"
	ListCombatVerbs      = "combat_verbs"
)

// defaultLists seeds a fresh store. Order matters only for display.
var defaultLists = []struct {
	name  string
	words []string
}{
	{ListDialogueVerbs, []string{
		"said", "asked", "replied", "whispered", "shouted", "exclaimed",
		"muttered", "answered", "called", "cried", "yelled", "spoke",
		"responded", "stated", "declared", "announced", "snapped", "growled",
		"hissed", "sighed", "added", "continued", "interrupted", "demanded",
	}},
	{ListActionVerbs, []string{
		"walked", "ran", "jumped", "looked", "turned", "grabbed", "drew",
		"swung", "nodded", "smiled", "frowned", "stood", "sat", "moved",
		"stepped", "raised", "pulled", "pushed", "opened", "closed",
		"climbed", "leaned", "knelt", "pointed", "paused",
	}},
	{ListTitles, []string{
		"lord", "lady", "king", "queen", "prince", "princess", "sir",
		"duke", "duchess", "baron", "baroness", "captain", "general",
		"commander", "sergeant", "lieutenant", "doctor", "professor",
		"master", "mistress", "elder", "chief", "father", "mother",
		"brother", "sister", "saint",
	}},
	{ListPlaceTypes, []string{
		"forest", "city", "town", "village", "castle", "keep", "tower",
		"mountain", "mountains", "river", "lake", "valley", "plains",
		"desert", "swamp", "cave", "caverns", "dungeon", "temple", "shrine",
		"tavern", "inn", "harbor", "bridge", "gate", "ruins", "kingdom",
		"realm", "empire", "isle", "island", "woods", "fields", "road",
		"pass", "peak", "falls", "bay", "coast",
	}},
	{ListObjectTypes, []string{
		"sword", "blade", "shield", "bow", "staff", "wand", "ring",
		"amulet", "cloak", "armor", "helm", "gauntlet", "dagger", "axe",
		"hammer", "spear", "tome", "scroll", "potion", "crystal", "orb",
		"crown", "pendant", "stone", "gem", "key", "lantern", "banner",
		"horn", "mirror",
	}},
	{ListFactionWords, []string{
		"guild", "order", "clan", "legion", "brotherhood", "sisterhood",
		"company", "syndicate", "circle", "council", "cult", "alliance",
		"coalition", "house", "tribe", "covenant", "court", "army",
		"guard", "watch",
	}},
	{ListConnectors, []string{
		"of", "the", "in", "and", "on", "at", "for", "to", "from", "by",
		"with", "de", "von", "van", "le", "la", "du",
	}},
	{ListSentenceStarters, []string{
		"the", "a", "an", "he", "she", "it", "they", "we", "i", "you",
		"then", "but", "and", "so", "when", "after", "before", "suddenly",
		"meanwhile", "however", "there", "this", "that", "as", "while",
		"once", "now", "still", "soon", "later", "inside", "outside",
		"beyond", "perhaps", "maybe", "finally", "eventually",
	}},
	{ListCommonWords, []string{
		"the", "a", "an", "and", "or", "but", "in", "on", "at", "to",
		"for", "of", "with", "by", "from", "up", "down", "about", "into",
		"over", "after", "under", "again", "then", "once", "here", "there",
		"all", "any", "both", "each", "few", "more", "most", "other",
		"some", "such", "only", "own", "same", "than", "too", "very",
		"just", "now", "not", "one", "two", "new", "old", "good", "great",
		"little", "long", "way", "well", "back", "even", "still", "also",
	}},
	{ListStopWords, []string{
		"the", "a", "an", "and", "or", "but", "is", "are", "was", "were",
		"be", "been", "being", "have", "has", "had", "do", "does", "did",
		"will", "would", "could", "should", "may", "might", "must",
		"shall", "can", "this", "that", "these", "those", "his", "her",
		"its", "their", "our", "your", "him", "them", "she", "they",
		"you", "not", "all", "any", "some", "very", "just", "than",
		"then", "too", "also", "only", "own", "same", "more", "most",
		"other", "such", "into", "through", "during", "before", "after",
		"above", "below", "between", "out", "off", "again", "further",
		"once", "here", "there", "where", "when", "what", "who", "how",
		"why", "with", "from", "about", "against",
	}},
	{ListSpatialVerbs, []string{
		"entered", "left", "arrived", "reached", "stood", "remained",
		"traveled", "approached", "departed", "crossed", "climbed",
		"descended", "visited", "returned",
	}},
	{ListPossessionVerbs, []string{
		"carried", "held", "wielded", "owned", "wore", "bore", "clutched",
		"gripped", "possessed", "kept", "sheathed", "raised", "brandished",
	}},
	{ListSocialVerbs, []string{
		"met", "greeted", "thanked", "embraced", "kissed", "served",
		"followed", "accompanied", "joined", "married", "befriended",
		"betrayed", "trusted", "visited", "summoned",
	}},
	{ListCombatVerbs, []string{
		"attacked", "fought", "struck", "defeated", "killed", "wounded",
		"defended", "ambushed", "charged", "parried", "slew", "bested",
		"captured", "rescued", "saved",
	}},
}

// staticBlacklist holds words that are never entities no matter what the
// learned table says. Matches are case-insensitive.
var staticBlacklist = map[string]bool{
	"yes": true, "no": true, "okay": true, "ok": true, "oh": true,
	"ah": true, "hey": true, "hello": true, "well": true, "hmm": true,
	"huh": true, "wow": true, "damn": true, "alright": true,
	"something": true, "someone": true, "somewhere": true, "anything": true,
	"anyone": true, "anywhere": true, "everything": true, "everyone": true,
	"everywhere": true, "nothing": true, "nobody": true, "nowhere": true,
	"today": true, "tomorrow": true, "yesterday": true, "tonight": true,
	"morning": true, "evening": true, "afternoon": true, "night": true,
	"north": true, "south": true, "east": true, "west": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
	"god": true, "gods": true, "hell": true, "heavens": true,
	"chapter": true, "part": true, "end": true, "beginning": true,
}

// genderedTitles maps a title to the grammatical gender it implies, used
// only by the pronoun resolver.
var genderedTitles = map[string]string{
	"lord": "male", "sir": "male", "king": "male", "prince": "male",
	"duke": "male", "baron": "male", "master": "male", "father": "male",
	"brother": "male",
	"lady": "female", "queen": "female", "princess": "female",
	"duchess": "female", "baroness": "female", "mistress": "female",
	"mother": "female", "sister": "female",
}

// TitleGender returns the gender a title implies, or "" when neutral.
func TitleGender(title string) string {
	return genderedTitles[normalizeWord(title)]
}

// abstractSuffixes is the morphological blacklist fallback: long abstract
// nouns ending in these are rejected without a stored entry.
var abstractSuffixes = []string{"ness", "ment", "tion", "ity", "ance", "ence"}

func hasAbstractSuffix(word string) bool {
	for _, suf := range abstractSuffixes {
		if len(word) > len(suf)+3 && strings.HasSuffix(word, suf) {
			return true
		}
	}
	return false
}

// seedDefaults installs the default vocabulary into a fresh lexicon.
func (l *Lexicon) seedDefaults() {
	for _, dl := range defaultLists {
		l.listNames = append(l.listNames, dl.name)
		l.lists[dl.name] = append([]string(nil), dl.words...)
	}
	l.dirty[DocWordLists] = true
	l.logger.Debug("seeded default word lists", zap.Int("lists", len(defaultLists)))
}
