package ingest

import (
	"log/slog"
	"testing"

	"arbbot/internal/config"
)

func testExtractor() *EventExtractorStep {
	return NewEventExtractorStep(slog.Default(), []config.IngestDexConfig{
		{
			Name: "hyperion",
			Events: map[string]string{
				"pool_snapshot": "0x1::hyperion::PoolSnapshot",
				"swap":          "0x1::hyperion::SwapEvent",
			},
			Pools: []string{"0xpool1"},
		},
		{
			Name: "thala",
			Events: map[string]string{
				"pool_snapshot": "0x1::thala::PoolSnapshot",
				"swap":          "0x1::thala::SwapEvent",
			},
		},
	})
}

func TestExtractorMatchesConfiguredEventType(t *testing.T) {
	t.Parallel()
	s := testExtractor()

	tx := Transaction{Version: 1, Events: []RawEvent{
		{TypeStr: "0x1::hyperion::SwapEvent", AccountAddress: "0xpool1"},
		{TypeStr: "0x1::unrelated::Event", AccountAddress: "0xpool1"},
	}}

	got := s.ProcessTransaction(tx)
	if len(got) != 1 {
		t.Fatalf("expected 1 relevant event, got %d: %+v", len(got), got)
	}
	if got[0].TypeStr != "0x1::hyperion::SwapEvent" {
		t.Fatalf("unexpected event: %+v", got[0])
	}
}

func TestExtractorRejectsUnlistedPool(t *testing.T) {
	t.Parallel()
	s := testExtractor()

	tx := Transaction{Version: 2, Events: []RawEvent{
		{TypeStr: "0x1::hyperion::SwapEvent", AccountAddress: "0xnot-whitelisted"},
	}}

	got := s.ProcessTransaction(tx)
	if len(got) != 0 {
		t.Fatalf("expected pool whitelist to reject event, got %+v", got)
	}
}

func TestExtractorNoPoolFilterPassesAnyAddress(t *testing.T) {
	t.Parallel()
	s := testExtractor()

	tx := Transaction{Version: 3, Events: []RawEvent{
		{TypeStr: "0x1::thala::SwapEvent", AccountAddress: "0xanything"},
	}}

	got := s.ProcessTransaction(tx)
	if len(got) != 1 {
		t.Fatalf("expected event with no configured pool filter to pass, got %+v", got)
	}
}

func TestExtractorIgnoresEventsWithoutAccountAddress(t *testing.T) {
	t.Parallel()
	s := testExtractor()

	tx := Transaction{Version: 4, Events: []RawEvent{
		{TypeStr: "0x1::hyperion::SwapEvent", AccountAddress: ""},
	}}

	got := s.ProcessTransaction(tx)
	if len(got) != 0 {
		t.Fatalf("expected event without account address to be dropped, got %+v", got)
	}
}
