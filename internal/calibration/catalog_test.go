package calibration

import "testing"

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	all := c.All()

	if len(all) != 4 {
		t.Fatalf("len(All()) = %d, want 4", len(all))
	}
	if !all[len(all)-1].Custom() {
		t.Error("custom entry should be last")
	}

	ref, ok := c.Lookup("bambu_transp")
	if !ok || ref.Grams != 215 || ref.Label != "BambuLab Transparent" {
		t.Errorf("Lookup(bambu_transp) = %+v, %v", ref, ok)
	}
	if _, ok := c.Lookup("nope"); ok {
		t.Error("Lookup(nope) should fail")
	}
}

func TestNewCatalog_Extra(t *testing.T) {
	c, err := NewCatalog(Reference{ID: "sunlu", Label: "Sunlu 1kg", Grams: 250})
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	all := c.All()
	if all[3].ID != "sunlu" || !all[4].Custom() {
		t.Errorf("All() = %+v", all)
	}
}

func TestValidateReference(t *testing.T) {
	tests := []struct {
		name    string
		ref     Reference
		wantErr bool
	}{
		{name: "ok", ref: Reference{ID: "x", Grams: 200}},
		{name: "empty id", ref: Reference{ID: " ", Grams: 300}, wantErr: true},
		{name: "reserved id", ref: Reference{ID: CustomReferenceID, Grams: 300}, wantErr: true},
		{name: "too light", ref: Reference{ID: "x", Grams: 199}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateReference(tt.ref); (err != nil) != tt.wantErr {
				t.Errorf("ValidateReference() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if _, err := NewCatalog(Reference{ID: "bambu_grey", Grams: 300}); err == nil {
		t.Error("duplicate of a built-in id should be rejected")
	}
}
