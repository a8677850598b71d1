// Command chaptest probes an audio file the way the inbox does and reports
// the chapter plan the pipeline would use for it.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/chaptermark/chaptermark-server/internal/acquire"
	"github.com/chaptermark/chaptermark-server/internal/chapters"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: chaptest <audio_file>")
	}

	path := os.Args[1]
	fmt.Printf("Testing: %s\n\n", path)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	info, err := acquire.ProbeAudio(ctx, path)
	if err != nil {
		log.Fatalf("Failed to read audio metadata: %v", err)
	}

	d := info.DurationSeconds()
	fmt.Printf("Title:    %s\n", info.Title)
	fmt.Printf("Duration: %s (%d s)\n", chapters.FormatTimestamp(d), d)
	fmt.Printf("Model target: %d chapters\n", chapters.TargetCount(d))
	fmt.Printf("Fallback:     %d chapters\n", chapters.FallbackCount(d))
	fmt.Println()

	fmt.Printf("Embedded chapters: %d\n", len(info.Chapters))
	for i, ch := range info.Chapters {
		if i < 10 {
			fmt.Printf("  [%d] %s %s\n", i, ch.Timestamp, ch.Title)
		}
	}
	if len(info.Chapters) > 10 {
		fmt.Printf("  ... and %d more chapters\n", len(info.Chapters)-10)
	}

	if len(info.Chapters) > 0 {
		q := chapters.AnalyzeChapters(info.Chapters)
		fmt.Printf("\nPlaceholder titles: %d of %d", q.GenericCount, q.Total)
		if q.LowQuality {
			fmt.Print(" (low quality)")
		}
		fmt.Println()
	}

	fmt.Println("\nFallback plan:")
	for _, ch := range chapters.Fallback(d) {
		fmt.Printf("  %s %s\n", ch.Timestamp, ch.Title)
	}
}
