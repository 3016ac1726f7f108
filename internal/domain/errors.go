package domain

import "errors"

var (
	ErrUnknownDoctype    = errors.New("unknown document type")
	ErrInvalidDoctype    = errors.New("invalid document type")
	ErrMissingDoctype    = errors.New("either an id or a document type and workflow are required")
	ErrCollectionPlace   = errors.New("new collection requires parent and left sibling")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidSort       = errors.New("invalid sort key")
	ErrEnrichmentOptions = errors.New("invalid enrichment options")
	ErrEnrichmentValue   = errors.New("invalid enrichment value")
	ErrMandatoryGroup    = errors.New("at least one field of the group is required")
)
