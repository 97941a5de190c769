package normalize

import "sort"

// PhraseTable maps phrase ids to the text spoken for them.
// Treat it as immutable once handed to the gateway.
type PhraseTable map[int]string

// DefaultPhrases is the canned phrase set shipped with the rover.
func DefaultPhrases() PhraseTable {
	return PhraseTable{
		1: "Hello, Hunter.",
		2: "Hunter is so cool.",
		3: "Please do not touch my wheels.",
		4: "Hunter is the greatest.",
	}
}

// Lookup validates id as an integer and returns its phrase.
func (p PhraseTable) Lookup(id any) (int, string, error) {
	n, err := Integer("phraseId", id)
	if err != nil {
		return 0, "", err
	}
	text, ok := p[n]
	if !ok || text == "" {
		return n, "", invalid("phraseId", ErrUnknownPhrase)
	}
	return n, text, nil
}

// IDs returns the known ids in ascending order.
func (p PhraseTable) IDs() []int {
	ids := make([]int, 0, len(p))
	for id := range p {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
