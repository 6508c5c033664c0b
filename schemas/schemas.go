package schemas

// Collections known to the document store.
const (
	Users       string = "users"
	Tags        string = "tags"
	Votes       string = "votes"
	Reputations string = "reputations"
)

// Description term names.
const (
	TermAuthor string = "author"
	TermTarget string = "target"
	TermTag    string = "tag"
	TermUser   string = "user"
	TermName   string = "name"
	TermHandle string = "handle"
)

func IsKnownCollection(c string) bool {
	switch c {
	case Users, Tags, Votes, Reputations:
		return true
	default:
		return false
	}
}
