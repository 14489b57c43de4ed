// Package domain contains the core business entities for safekb.
//
// The domain layer has no dependencies on infrastructure. Entities are
// plain structs; business rules live in the core services that operate
// on them. Persistence, embedding generation and source fetching are
// abstracted behind ports (see internal/core/ports).
package domain
