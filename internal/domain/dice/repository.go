package dice

import "context"

// Store persists the Document as a single unit.
type Store interface {
	// Load returns the stored document, creating and saving the default when none exists.
	Load(ctx context.Context) (*Document, error)
	// Save overwrites the stored document.
	Save(ctx context.Context, doc *Document) error
}
