// Command check_pages compares the page counts of an original PDF and its
// translation and flags translations that lost too many pages.
//
// Usage:
//
//	go run ./cmd/check_pages <original.pdf> <translated.pdf>
package main

import (
	"fmt"
	"os"

	"pdf-translator/internal/pdf"
)

// maxShrink is the tolerated fraction of pages a translation may lose
const maxShrink = 0.15

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: check_pages <original.pdf> <translated.pdf>")
		fmt.Println()
		fmt.Println("Warns when the translated PDF has more than 15% fewer pages than the original.")
		os.Exit(1)
	}

	originalPath := os.Args[1]
	translatedPath := os.Args[2]

	original, err := pdf.PageCount(originalPath)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	translated, err := pdf.PageCount(translatedPath)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if err := pdf.Validate(translatedPath); err != nil {
		fmt.Printf("Warning: %v\n", err)
	}

	fmt.Printf("  Original:   %s (%d pages)\n", originalPath, original)
	fmt.Printf("  Translated: %s (%d pages)\n", translatedPath, translated)

	if original > 0 && float64(original-translated)/float64(original) > maxShrink {
		fmt.Printf("Translated PDF is missing %d page(s)\n", original-translated)
		os.Exit(2)
	}
	fmt.Println("Page counts look consistent")
}
