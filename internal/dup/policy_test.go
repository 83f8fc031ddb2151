package dup

import (
	"testing"
)

func TestAddStorePolicyDeduplicates(t *testing.T) {
	p := NewPolicy()
	sp := StorePolicy{DestStoreID: "providerX", DestSpaceID: "photos-backup"}

	if !p.AddStorePolicy("photos", sp) {
		t.Fatal("first add should return true")
	}
	if p.AddStorePolicy("photos", sp) {
		t.Error("second add of equal policy should return false")
	}
	if got := len(p.StorePolicies("photos")); got != 1 {
		t.Errorf("expected 1 policy after duplicate add, got %d", got)
	}

	// A different destination for the same space is a new entry.
	if !p.AddStorePolicy("photos", StorePolicy{DestStoreID: "providerY", DestSpaceID: "photos-backup"}) {
		t.Error("distinct policy should be added")
	}
}

func TestStorePoliciesPreserveInsertionOrder(t *testing.T) {
	p := NewPolicy()
	dests := []StorePolicy{
		{DestStoreID: "s3", DestSpaceID: "a"},
		{DestStoreID: "glacier", DestSpaceID: "b"},
		{DestStoreID: "sdsc", DestSpaceID: "c"},
	}
	for _, sp := range dests {
		p.AddStorePolicy("docs", sp)
	}

	got := p.StorePolicies("docs")
	if len(got) != len(dests) {
		t.Fatalf("expected %d policies, got %d", len(dests), len(got))
	}
	for i, sp := range dests {
		if got[i] != sp {
			t.Errorf("position %d: expected %+v, got %+v", i, sp, got[i])
		}
	}
}

func TestStorePoliciesUnknownSpace(t *testing.T) {
	p := NewPolicy()
	if got := p.StorePolicies("nope"); got != nil {
		t.Errorf("unknown space should return nil, got %v", got)
	}
}

func TestPolicyRoundTrip(t *testing.T) {
	p := NewPolicy()
	p.AddStorePolicy("photos", StorePolicy{DestStoreID: "providerX", DestSpaceID: "photos-backup"})
	p.AddStorePolicy("photos", StorePolicy{DestStoreID: "providerY", DestSpaceID: "photos-dr"})
	p.AddStorePolicy("docs", StorePolicy{DestStoreID: "providerX", DestSpaceID: "docs-backup"})

	data, err := p.Marshall()
	if err != nil {
		t.Fatalf("Marshall failed: %v", err)
	}
	got, err := UnmarshallPolicy(data)
	if err != nil {
		t.Fatalf("UnmarshallPolicy failed: %v", err)
	}

	if len(got.Spaces()) != len(p.Spaces()) {
		t.Fatalf("space count mismatch: %v vs %v", got.Spaces(), p.Spaces())
	}
	for _, spaceID := range p.Spaces() {
		want := p.StorePolicies(spaceID)
		have := got.StorePolicies(spaceID)
		if len(want) != len(have) {
			t.Fatalf("space %s: expected %d policies, got %d", spaceID, len(want), len(have))
		}
		for i := range want {
			if want[i] != have[i] {
				t.Errorf("space %s position %d: expected %+v, got %+v", spaceID, i, want[i], have[i])
			}
		}
	}
}

func TestUnmarshallPolicyMalformed(t *testing.T) {
	if _, err := UnmarshallPolicy([]byte("not json")); err == nil {
		t.Fatal("expected error for malformed input")
	}
	if _, err := UnmarshallPolicy([]byte(`["wrong","shape"]`)); err == nil {
		t.Fatal("expected error for wrong document shape")
	}
}

func TestUnmarshallPolicyIgnoresUnknownFields(t *testing.T) {
	doc := `{"photos":[{"storeId":"x","spaceId":"y","futureField":42}]}`
	p, err := UnmarshallPolicy([]byte(doc))
	if err != nil {
		t.Fatalf("UnmarshallPolicy failed: %v", err)
	}
	got := p.StorePolicies("photos")
	if len(got) != 1 || got[0] != (StorePolicy{DestStoreID: "x", DestSpaceID: "y"}) {
		t.Errorf("unexpected policies: %+v", got)
	}
}
