package businessflow

// MaxVariants bounds how many message variants one schedule call may use
const MaxVariants = 3

// Variant is one message alternative; ID is a letter ("A", "B", "C")
type Variant struct {
	ID      string
	Subject string
	Body    string
}

// Recipient is an address plus the fields its templates are rendered with
type Recipient struct {
	Email  string
	Fields map[string]string
}

// VariantAssignment pairs a recipient with the variant it receives
type VariantAssignment struct {
	Recipient Recipient
	Variant   Variant
}

// AssignVariants splits recipients into contiguous, front-loaded buckets of
// ceil(n/len(variants)) in the order given. The last variant may get fewer.
func AssignVariants(recipients []Recipient, variants []Variant) []VariantAssignment {
	if len(recipients) == 0 || len(variants) == 0 {
		return []VariantAssignment{}
	}

	perVariant := (len(recipients) + len(variants) - 1) / len(variants)
	out := make([]VariantAssignment, len(recipients))
	for i, r := range recipients {
		idx := min(i/perVariant, len(variants)-1)
		out[i] = VariantAssignment{Recipient: r, Variant: variants[idx]}
	}

	return out
}

// VariantLetter returns the id of the i-th variant
func VariantLetter(i int) string {
	return string(rune('A' + i))
}
