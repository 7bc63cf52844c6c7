package orders

import (
	"fmt"
	"math/rand"
	"time"
)

const referencePrefix = "ORD"

// NewReference builds the customer-facing order number: prefix, year, six
// random digits. Not guaranteed unique on its own; the repository retries on
// an insert conflict.
func NewReference() string {
	return fmt.Sprintf("%s-%d-%06d", referencePrefix, time.Now().UTC().Year(), rand.Intn(1_000_000))
}
