package main

import (
	"encoding/json"
	"testing"
)

func TestBuildBoostRecords(t *testing.T) {
	meta := BoostMetadata{
		Title:      "Episode 12",
		Artist:     "The Band",
		Album:      "Live Sessions",
		FeedID:     920666,
		ItemID:     21811500,
		Timestamp:  1234,
		SenderName: "satoshi",
		Message:    "boosting from the road",
	}

	records := BuildBoostRecords(meta, "The Band", 50, 100, "TestApp", "1.0")

	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}

	var boost boostPayload
	if err := json.Unmarshal([]byte(records[TLVTypeBoost]), &boost); err != nil {
		t.Fatalf("boost record is not valid JSON: %v", err)
	}
	if boost.Action != "boost" {
		t.Errorf("action = %q, want %q", boost.Action, "boost")
	}
	if boost.ValueMsat != 50000 {
		t.Errorf("value_msat = %d, want 50000", boost.ValueMsat)
	}
	if boost.ValueMsatTotal != 100000 {
		t.Errorf("value_msat_total = %d, want 100000", boost.ValueMsatTotal)
	}
	if boost.Podcast != "The Band" || boost.Episode != "Episode 12" {
		t.Errorf("podcast/episode = %q/%q", boost.Podcast, boost.Episode)
	}
	if boost.UUID == "" {
		t.Error("boost record missing UUID")
	}
	if boost.AppName != "TestApp" {
		t.Errorf("app_name = %q", boost.AppName)
	}

	if records[TLVTypeMessage] != meta.Message {
		t.Errorf("message record = %q, want the raw message", records[TLVTypeMessage])
	}

	var sphinx sphinxPayload
	if err := json.Unmarshal([]byte(records[TLVTypeSphinx]), &sphinx); err != nil {
		t.Fatalf("sphinx record is not valid JSON: %v", err)
	}
	if sphinx.AmountMsat != 50000 {
		t.Errorf("sphinx amt_msat = %d, want 50000", sphinx.AmountMsat)
	}
	if sphinx.UUID != boost.UUID {
		t.Errorf("sphinx UUID %q does not match boost UUID %q", sphinx.UUID, boost.UUID)
	}
}

func TestBuildBoostRecordsNoMessage(t *testing.T) {
	records := BuildBoostRecords(BoostMetadata{Title: "Quiet Track"}, "", 10, 10, "TestApp", "1.0")

	if _, ok := records[TLVTypeMessage]; ok {
		t.Error("message record present despite empty message")
	}
	if _, ok := records[TLVTypeBoost]; !ok {
		t.Error("boost record missing")
	}
	if _, ok := records[TLVTypeSphinx]; !ok {
		t.Error("sphinx record missing")
	}
}

// Each invocation mints a fresh UUID; records are batch-descriptive, not
// identity-bearing.
func TestBuildBoostRecordsFreshUUID(t *testing.T) {
	meta := BoostMetadata{Title: "Track"}

	first := BuildBoostRecords(meta, "", 10, 10, "TestApp", "1.0")
	second := BuildBoostRecords(meta, "", 10, 10, "TestApp", "1.0")

	var a, b boostPayload
	json.Unmarshal([]byte(first[TLVTypeBoost]), &a)
	json.Unmarshal([]byte(second[TLVTypeBoost]), &b)

	if a.UUID == b.UUID {
		t.Errorf("UUID reused across invocations: %q", a.UUID)
	}
}
