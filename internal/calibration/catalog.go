package calibration

import (
	"fmt"
	"math"
	"strings"
)

// CustomReferenceID selects a reference weight typed in by the user.
const CustomReferenceID = "custom"

// Reference is a known mass usable for calibration, typically an empty
// filament spool.
type Reference struct {
	ID    string
	Label string
	Grams float64
}

// Custom reports whether the reference weight is entered by hand.
func (r Reference) Custom() bool {
	return r.ID == CustomReferenceID
}

// BuiltinReferences are empty masterspools with a well-known weight.
var BuiltinReferences = []Reference{
	{ID: "bambu_grey", Label: "BambuLab Grey", Grams: 210},
	{ID: "bambu_transp", Label: "BambuLab Transparent", Grams: 215},
	{ID: "r3d_grey", Label: "R3D Grey", Grams: 239},
}

// Catalog is the ordered list of references offered by the wizard. The
// custom entry is always last.
type Catalog struct {
	refs []Reference
}

// NewCatalog returns the built-in references followed by extra. Entries are
// validated the same way the config file is.
func NewCatalog(extra ...Reference) (*Catalog, error) {
	refs := make([]Reference, 0, len(BuiltinReferences)+len(extra)+1)
	refs = append(refs, BuiltinReferences...)

	seen := make(map[string]bool, cap(refs))
	for _, r := range refs {
		seen[r.ID] = true
	}
	for _, r := range extra {
		if err := ValidateReference(r); err != nil {
			return nil, err
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("duplicate reference id %q", r.ID)
		}
		seen[r.ID] = true
		refs = append(refs, r)
	}

	refs = append(refs, Reference{ID: CustomReferenceID, Label: "Custom weight"})
	return &Catalog{refs: refs}, nil
}

// DefaultCatalog returns the built-in references only.
func DefaultCatalog() *Catalog {
	c, _ := NewCatalog()
	return c
}

// ValidateReference checks a user-defined reference.
func ValidateReference(r Reference) error {
	id := strings.TrimSpace(r.ID)
	switch {
	case id == "":
		return fmt.Errorf("reference id must not be empty")
	case id == CustomReferenceID:
		return fmt.Errorf("reference id %q is reserved", CustomReferenceID)
	case !(r.Grams >= MinReferenceGrams) || math.IsInf(r.Grams, 0):
		return fmt.Errorf("reference %q weighs %.0f g, minimum is %.0f g", id, r.Grams, MinReferenceGrams)
	}
	return nil
}

// All returns the references in display order.
func (c *Catalog) All() []Reference {
	out := make([]Reference, len(c.refs))
	copy(out, c.refs)
	return out
}

// Lookup finds a reference by id.
func (c *Catalog) Lookup(id string) (Reference, bool) {
	for _, r := range c.refs {
		if r.ID == id {
			return r, true
		}
	}
	return Reference{}, false
}
