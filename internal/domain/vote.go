package domain

import "time"

// Vote is one entry of the ledger. Timestamp is the creation time of the
// vote document and survives re-votes.
type Vote struct {
	Key       string    `json:"-"`
	AuthorKey string    `json:"author_key"`
	TargetKey string    `json:"target_key"`
	TagKey    string    `json:"tag_key"`
	Value     int       `json:"value"`
	Weight    float64   `json:"weight"`
	Timestamp time.Time `json:"-"`
}

func ValidVoteValue(v int) bool {
	return v == -1 || v == 0 || v == 1
}

func ValidVoteWeight(w float64) bool {
	return w >= 0 && w <= 1
}

// User is a participant identified by the caller principal.
type User struct {
	Key         string `json:"-"`
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name"`
}

const (
	HandleMinLength      = 3
	HandleMaxLength      = 30
	DisplayNameMaxLength = 100
)
