package intent

import "regexp"

// Contact sub-types and short-query labels.
const (
	ContactEmail   = "email"
	ContactPhone   = "phone"
	ContactGeneral = "general"
	ContactNone    = "none"

	LabelContactEmail = "contact_email"
	LabelContactPhone = "contact_phone"
	LabelWebsite      = "website"
	LabelPricing      = "pricing"
	LabelAppointment  = "appointment"
	LabelOther        = "other"
)

// RestrictedMessage is the fixed refusal returned for off-topic requests.
const RestrictedMessage = "I can only answer questions about this knowledge base. Please ask something related to our content."

// greetingFallbackPattern covers common greetings across the supported
// languages, used when the model classification is unavailable.
var greetingFallbackPattern = regexp.MustCompile(`(?i)^\s*(hi+|hello|hey|howdy|greetings|yo|sup|good\s+(morning|afternoon|evening|day)|namaste|namaskar|hola|buenos\s+d[ií]as|bonjour|salut|hallo|guten\s+(tag|morgen|abend))[\s!.,?]*$`)

var greetingReplies = map[string]string{
	"en": "Hello! How can I help you today?",
	"hi": "Namaste! Main aapki kaise madad kar sakta hoon?",
	"es": "¡Hola! ¿En qué puedo ayudarte hoy?",
	"fr": "Bonjour ! Comment puis-je vous aider ?",
	"de": "Hallo! Wie kann ich Ihnen helfen?",
}

type topicRule struct {
	Tag     string
	Pattern *regexp.Regexp
}

// restrictedRules is the ordered, data-driven policy table for topics the bot
// refuses outright. Editing policy means editing this table, not control flow.
var restrictedRules = []topicRule{
	{"code", regexp.MustCompile(`(?i)\b(write|generate|debug|fix)\b.*\b(code|program|script|function|loop|algorithm)\b`)},
	{"code", regexp.MustCompile(`(?i)\b(python|javascript|java|golang|c\+\+|sql)\b.*\b(code|program|script|example)\b`)},
	{"math", regexp.MustCompile(`(?i)\b(solve|calculate|compute)\b.*\b(equation|integral|derivative|math)\b`)},
	{"math", regexp.MustCompile(`(?i)\bwhat\s+is\s+\d+\s*[-+*/^]\s*\d+`)},
	{"weather", regexp.MustCompile(`(?i)\b(weather|temperature|forecast|rain|humidity)\b.*\b(today|tomorrow|now|outside)\b`)},
	{"time", regexp.MustCompile(`(?i)\bwhat\s+(time|day|date)\s+is\s+it\b`)},
	{"translation", regexp.MustCompile(`(?i)\btranslate\b.*\b(to|into|in)\b.*\b(english|hindi|spanish|french|german|language)\b`)},
	{"recipe", regexp.MustCompile(`(?i)\b(recipe|how\s+to\s+(cook|bake|make))\b.*\b(food|dish|cake|curry|bread|meal)\b`)},
	{"medical", regexp.MustCompile(`(?i)\b(diagnose|prescri(be|ption)|medical\s+advice|symptoms?\s+of|treatment\s+for)\b`)},
	{"legal", regexp.MustCompile(`(?i)\b(legal\s+advice|sue|lawsuit|is\s+it\s+legal)\b`)},
	{"financial", regexp.MustCompile(`(?i)\b(invest(ment)?\s+advice|stock\s+tips?|which\s+(stocks?|crypto)\s+(to|should))\b`)},
	{"essay", regexp.MustCompile(`(?i)\b(write|compose)\b.*\b(essay|poem|story|homework|assignment|letter)\b`)},
	{"opinion", regexp.MustCompile(`(?i)\b(your|you)\b.*\b(opinion|think|feel|believe)\b.*\babout\b`)},
}

// Patterns matched against stored corpus questions when resolving a contact
// request. Keyed by contact sub-type; evaluated in order, first match wins.
var contactQuestionRules = map[string][]*regexp.Regexp{
	ContactPhone: {
		regexp.MustCompile(`(?i)\b(phone|call|mobile|telephone|helpline|number)\b`),
	},
	ContactEmail: {
		regexp.MustCompile(`(?i)\b(e-?mail|mail\s+(us|id|address))\b`),
	},
	ContactGeneral: {
		regexp.MustCompile(`(?i)\b(contact|reach|address|location|office|get\s+in\s+touch|support)\b`),
	},
}

// Patterns matched against stored answers, as a fallback when no question
// matches. Only literal values qualify here: an answer that merely mentions
// "call" or "mail" must not resolve a contact request.
var contactLiteralRules = map[string][]*regexp.Regexp{
	ContactPhone: {
		regexp.MustCompile(`\+?\d[\d\s().-]{7,}\d`),
	},
	ContactEmail: {
		regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.-]+`),
	},
}

var (
	phoneKeywordPattern   = regexp.MustCompile(`(?i)\b(phone|number|mobile|call|telephone)\b`)
	emailKeywordPattern   = regexp.MustCompile(`(?i)\b(e-?mail|mail)\b`)
	contactKeywordPattern = regexp.MustCompile(`(?i)\b(contact|reach|touch)\b`)
)

var contactNotFoundMessages = map[string]string{
	ContactPhone:   "I couldn't find a phone number in this knowledge base.",
	ContactEmail:   "I couldn't find an email address in this knowledge base.",
	ContactGeneral: "I couldn't find contact information in this knowledge base.",
}
