package util

import (
	"hash/fnv"
	"strconv"

	"github.com/google/uuid"
)

// maxInvoiceNumber is the largest value that fits the host's 8-digit invoice column
const maxInvoiceNumber = 99_999_999

// UUIDToInvoiceNumber reduces a UUID to a Merchantware invoice number in 1..99,999,999.
// FNV-1a keeps it deterministic: the same UUID always yields the same number.
// The result is a trace identifier only; collisions are tolerated.
func UUIDToInvoiceNumber(id uuid.UUID) string {
	h := fnv.New64a()
	h.Write(id[:])
	return strconv.FormatUint(h.Sum64()%maxInvoiceNumber+1, 10)
}

// NewInvoiceNumber derives an invoice number from a fresh time-ordered UUID.
func NewInvoiceNumber() (string, uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", uuid.Nil, err
	}
	return UUIDToInvoiceNumber(id), id, nil
}
