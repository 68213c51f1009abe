package agent

import "strings"

// Kind is the failure classification driving the retry decision.
type Kind int

const (
	// KindOther marks failures that are terminal for the request.
	KindOther Kind = iota

	// KindCredentialExpired marks failures recoverable by a token refresh.
	KindCredentialExpired
)

func (k Kind) String() string {
	if k == KindCredentialExpired {
		return "credential_expired"
	}
	return "other"
}

// Classifier maps invocation errors onto retry classes by matching
// configurable substrings against the error text. The runtime reports an
// expired bearer token only through its message, so substring matching is
// the contract here.
type Classifier struct {
	phrases []string
}

// NewClassifier creates a Classifier for the given phrases. Without
// arguments, the session initialization failure phrase is used.
func NewClassifier(phrases ...string) *Classifier {
	if len(phrases) == 0 {
		phrases = []string{initFailurePrefix}
	}
	lowered := make([]string, len(phrases))
	for i, phrase := range phrases {
		lowered[i] = strings.ToLower(phrase)
	}
	return &Classifier{phrases: lowered}
}

// Classify returns the retry class of err. Matching is case-insensitive.
func (c *Classifier) Classify(err error) Kind {
	if err == nil {
		return KindOther
	}
	message := strings.ToLower(err.Error())
	for _, phrase := range c.phrases {
		if strings.Contains(message, phrase) {
			return KindCredentialExpired
		}
	}
	return KindOther
}
