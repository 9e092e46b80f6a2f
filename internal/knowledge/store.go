// Package knowledge provides read-only access to the knowledge base:
// markdown documents and map indexes searched by keyword and loaded
// under explicit byte ceilings.
package knowledge

import "context"

// Document is a knowledge base entry that matched a search. It carries
// identification and lightweight metadata only; content is loaded
// separately so that callers can filter before paying the load cost.
type Document struct {
	ID      string  // stable identifier, the path relative to its root
	Path    string  // absolute path on disk
	Title   string  // first heading, or the filename if none
	Summary string  // first paragraph after the title
	Score   float64 // relevance to the search keywords
}

// Store is the read-only interface over a knowledge base.
type Store interface {
	// Search returns documents relevant to the keywords, most relevant
	// first, at most limit entries. Matching inspects filenames and a
	// bounded content sample; it never loads whole documents.
	Search(ctx context.Context, keywords []string, limit int) ([]Document, error)

	// Load returns the content of the identified document, truncated
	// to maxBytes. The bool reports whether truncation occurred.
	Load(ctx context.Context, id string, maxBytes int) ([]byte, bool, error)
}
