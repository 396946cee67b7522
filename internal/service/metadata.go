package service

import "iter"

// AbilityMeta is one ability dictionary row from the saved-variables
// reader.
type AbilityMeta struct {
	ID   int64
	Name string
	Icon string
}

// ItemMeta is one item dictionary row.
type ItemMeta struct {
	ID   int64
	Name string
	Icon string
}

// SetMeta is one gear-set dictionary row.
type SetMeta struct {
	ID   int64
	Name string
}

// MetadataProvider is the external saved-variables dictionary reader.
// Implementations yield lazily; the service only consumes what a lookup
// needs and never couples the dictionaries to the ingestion pipeline.
type MetadataProvider interface {
	Abilities() iter.Seq[AbilityMeta]
	Items() iter.Seq[ItemMeta]
	Sets() iter.Seq[SetMeta]
}
