package vectorstore

// Stopword filtering for the lexical overlap term. QMS corpora are German
// with English loanwords, so both lists apply.

var stopWords = map[string]bool{
	// German
	"aber": true, "alle": true, "als": true, "also": true, "auch": true,
	"auf": true, "aus": true, "bei": true, "bin": true, "bis": true,
	"bist": true, "da": true, "damit": true, "dann": true, "das": true,
	"dass": true, "dein": true, "dem": true, "den": true, "der": true,
	"des": true, "die": true, "dies": true, "diese": true, "dieser": true,
	"dieses": true, "doch": true, "dort": true, "durch": true, "ein": true,
	"eine": true, "einem": true, "einen": true, "einer": true, "eines": true,
	"er": true, "es": true, "euer": true, "für": true, "gegen": true,
	"gelten": true, "hab": true, "habe": true, "haben": true, "hat": true,
	"hatte": true, "hier": true, "hin": true, "ich": true, "ihr": true,
	"im": true, "in": true, "ist": true, "ja": true, "jede": true,
	"jedem": true, "jeden": true, "jeder": true, "jedes": true, "kann": true,
	"können": true, "mein": true, "mit": true, "muss": true, "müssen": true,
	"nach": true, "nicht": true, "noch": true, "nun": true, "nur": true,
	"ob": true, "oder": true, "ohne": true, "sein": true, "seine": true,
	"sich": true, "sie": true, "sind": true, "so": true, "über": true,
	"um": true, "und": true, "uns": true, "unter": true, "vom": true,
	"von": true, "vor": true, "war": true, "waren": true, "was": true,
	"welche": true, "welcher": true, "wenn": true, "werden": true,
	"wie": true, "wir": true, "wird": true, "wo": true, "zu": true,
	"zum": true, "zur": true, "zwischen": true,
	// English
	"the": true, "be": true, "to": true, "of": true, "and": true,
	"a": true, "that": true, "have": true, "it": true, "for": true,
	"not": true, "on": true, "with": true, "as": true, "you": true,
	"do": true, "at": true, "this": true, "but": true, "his": true,
	"by": true, "from": true, "they": true, "we": true, "or": true,
	"an": true, "will": true, "all": true, "would": true, "there": true,
	"their": true, "what": true, "about": true, "which": true, "when": true,
	"can": true, "no": true, "into": true, "is": true, "are": true,
	"been": true, "has": true, "had": true, "were": true,
	"any": true, "these": true, "some": true, "than": true, "then": true,
	"its": true, "how": true, "our": true, "other": true,
}

func isStopWord(word string) bool {
	return stopWords[word]
}
