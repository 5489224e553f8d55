package emotion

import "regexp"

// Rule maps a keyword pattern to the label it implies.
type Rule struct {
	Label   Label
	Pattern *regexp.Regexp
}

// Guesser evaluates rules in order; the first matching rule wins.
type Guesser struct {
	rules []Rule
}

var defaultRules = []Rule{
	{Sad, regexp.MustCompile(`(?i)\b(sad|sadness|unhappy|down|lonely|alone|cry|crying|cried|tears|heartbroken|miserable|hopeless|empty|grief|grieving|hurt)\b`)},
	{Anxious, regexp.MustCompile(`(?i)\b(anxious|anxiety|worried|worry|worrying|nervous|panic|panicking|afraid|scared|fear|fearful|uneasy|on edge)\b`)},
	{Stressed, regexp.MustCompile(`(?i)\b(stress|stressed|stressful|overwhelmed|overwhelming|pressure|burned out|burnt out|burnout|exhausted|swamped|deadlines?)\b`)},
	{Happy, regexp.MustCompile(`(?i)\b(happy|glad|great|good|excited|joy|joyful|grateful|thankful|awesome|wonderful|amazing|proud|relieved)\b`)},
	{Angry, regexp.MustCompile(`(?i)\b(angry|mad|furious|annoyed|irritated|hate|rage|frustrated|frustrating|pissed)\b`)},
}

// NewGuesser returns a Guesser over rules; nil or empty rules use the
// built-in table.
func NewGuesser(rules []Rule) *Guesser {
	if len(rules) == 0 {
		rules = defaultRules
	}
	return &Guesser{rules: append([]Rule(nil), rules...)}
}

// Guess returns the label of the first rule matching text, or Neutral.
func (g *Guesser) Guess(text string) Label {
	if text == "" {
		return Neutral
	}
	for _, rule := range g.rules {
		if rule.Pattern.MatchString(text) {
			return rule.Label
		}
	}
	return Neutral
}

var defaultGuesser = NewGuesser(nil)

// Guess classifies text with the built-in rule table.
func Guess(text string) Label {
	return defaultGuesser.Guess(text)
}
