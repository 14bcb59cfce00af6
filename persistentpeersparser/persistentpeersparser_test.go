package persistentpeersparser

import (
	"testing"
)

func TestParseEntries(t *testing.T) {
	entries, err := ParseEntries("abc123@ygg://[200:1234::1]:4224, DEF456@10.0.0.7:26656 ,beef@tcp://node.example,")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries", len(entries))
	}

	ygg := entries[0]
	if ygg.ID != "abc123" || ygg.Proto != "ygg" || ygg.Address != "200:1234::1" || ygg.Port == nil || *ygg.Port != 4224 {
		t.Errorf("ygg entry = %+v", ygg)
	}
	plain := entries[1]
	if plain.Proto != "" || plain.Address != "10.0.0.7" || *plain.Port != 26656 {
		t.Errorf("plain entry = %+v", plain)
	}
	if entries[2].Port != nil || entries[2].Address != "node.example" {
		t.Errorf("portless entry = %+v", entries[2])
	}
}

func TestParseEntriesRejects(t *testing.T) {
	for _, in := range []string{
		"nothex!@1.2.3.4:1",
		"abc@1.2.3.4:99999",
		"missing-at-sign",
	} {
		if _, err := ParseEntries(in); err == nil {
			t.Errorf("ParseEntries(%q) succeeded", in)
		}
	}
	if entries, err := ParseEntries(""); err != nil || len(entries) != 0 {
		t.Errorf("empty input: %v %v", entries, err)
	}
}

func TestEntryStringRoundTrip(t *testing.T) {
	for _, in := range []string{
		"abc123@ygg://[200:1234::1]:4224",
		"def456@10.0.0.7:26656",
		"beef@tcp://node.example",
	} {
		entries, err := ParseEntries(in)
		if err != nil {
			t.Fatal(err)
		}
		if got := entries[0].String(); got != in {
			t.Errorf("String() = %q, want %q", got, in)
		}
	}
}
