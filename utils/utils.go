package utils

import (
	"time"
)

// TaipeiLocation is Asia/Taipei, or a fixed UTC+8 zone when tzdata is missing.
var TaipeiLocation = loadTaipei()

func loadTaipei() *time.Location {
	loc, err := time.LoadLocation("Asia/Taipei")
	if err != nil {
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
}

// UnixToTaipei converts a UNIX timestamp in seconds to Taipei time.
func UnixToTaipei(sec int64) time.Time {
	return time.Unix(sec, 0).In(TaipeiLocation)
}

// UnixMilliToTaipei converts a millisecond timestamp to Taipei time.
func UnixMilliToTaipei(ms int64) time.Time {
	return time.UnixMilli(ms).In(TaipeiLocation)
}

// TaipeiDate truncates t to midnight in Taipei.
func TaipeiDate(t time.Time) time.Time {
	t = t.In(TaipeiLocation)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, TaipeiLocation)
}

// ParseDate parses YYYY-MM-DD as a Taipei calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, TaipeiLocation)
}

// ChunkSlice splits a slice into chunks of at most size elements.
func ChunkSlice[T any](items []T, size int) [][]T {
	if size < 1 {
		size = 1
	}
	if len(items) == 0 {
		return nil
	}

	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for i := 0; i < len(items); i += size {
		end := min(i+size, len(items))
		chunks = append(chunks, items[i:end])
	}
	return chunks
}
