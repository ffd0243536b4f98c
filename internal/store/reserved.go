package store

import (
	"fmt"

	"github.com/rumor-ml/deckhand/internal/card"
)

// reservedKeys are document keys only the store may assign.
var reservedKeys = map[string]struct{}{
	card.KeyID:         {},
	card.KeyCreatedBy:  {},
	card.KeyCreatedAt:  {},
	card.KeyModifiedBy: {},
	card.KeyModifiedAt: {},
	card.KeyVisible:    {},
}

// checkReserved rejects payloads that try to set server-assigned keys.
func checkReserved(fields map[string]any) error {
	for key := range fields {
		if _, ok := reservedKeys[key]; ok {
			return &Error{Kind: KindInvalid, Err: fmt.Errorf("field %q is server-assigned", key)}
		}
	}
	return nil
}
