package credits

import "github.com/xraph/credits/id"

// ID is the generated identifier type used for charge keys and minted
// grant ids. Ledger entry ids with deterministic semantics (plan
// switches, monthly resets) are plain strings instead.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
