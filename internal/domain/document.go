package domain

import "time"

// Document is a versioned, keyed entry in one collection of the store.
// Data is an opaque encoded blob decoded on read.
type Document struct {
	Collection  string
	Key         string
	Owner       string
	Description string
	Data        []byte
	Version     uint64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DocumentWrite is a proposed write. Version is the version the caller
// expects to overwrite; zero means the document must not exist yet.
type DocumentWrite struct {
	Collection string
	Key        string
	Caller     string
	Data       []byte
	Version    uint64
}

// ListFilter narrows a List call. Every Description term must appear
// verbatim in the document description.
type ListFilter struct {
	Key         string
	KeyPrefix   string
	Owner       string
	Description []string
	After       string
	Limit       int
}

type ListPage struct {
	Items []Document
	// Next is the cursor to pass as After, empty once exhausted.
	Next string
}
