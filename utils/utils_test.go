package utils

import (
	"testing"
	"time"
)

func TestChunkSlice(t *testing.T) {
	symbols := []string{"2330", "2317", "0050", "00679B", "2454", "6488", "2881"}

	tests := []struct {
		name      string
		chunkSize int
		expected  int
	}{
		{"Chunk by 2", 2, 4},
		{"Chunk by 3", 3, 3},
		{"Chunk by 5", 5, 2},
		{"Chunk by 10", 10, 1},
		{"Chunk by 0", 0, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := ChunkSlice(symbols, tt.chunkSize)
			if len(chunks) != tt.expected {
				t.Errorf("Expected %d chunks, got %d", tt.expected, len(chunks))
			}

			total := 0
			for _, chunk := range chunks {
				total += len(chunk)
			}
			if total != len(symbols) {
				t.Errorf("Expected %d total symbols, got %d", len(symbols), total)
			}
		})
	}

	if ChunkSlice([]string{}, 3) != nil {
		t.Error("Expected nil for empty input")
	}
}

func TestUnixToTaipei(t *testing.T) {
	ts := UnixToTaipei(1718236800) // 2024-06-13T00:00:00Z
	if ts.Hour() != 8 {
		t.Errorf("Expected 08:00 in Taipei, got %v", ts)
	}

	d := TaipeiDate(ts.Add(5 * time.Hour))
	if d.Hour() != 0 || d.Day() != 13 {
		t.Errorf("Expected midnight of the 13th, got %v", d)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-06-13")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Year() != 2024 || d.Month() != time.June || d.Day() != 13 {
		t.Errorf("Unexpected date %v", d)
	}

	if _, err := ParseDate("13/06/2024"); err == nil {
		t.Error("Expected error for wrong layout")
	}
}
