package main

import (
	"fmt"
	"io"
	"os"

	"pixwebhook/internal/logger"
	"pixwebhook/internal/parser"
)

// parsetest runs the extraction engine on a saved message and prints what each
// cascade found. Reads stdin when no path is given.
func main() {
	var (
		raw []byte
		err error
	)
	switch len(os.Args) {
	case 1:
		raw, err = io.ReadAll(os.Stdin)
	case 2:
		raw, err = os.ReadFile(os.Args[1])
	default:
		fmt.Println("Usage: parsetest [path-to-message]")
		os.Exit(1)
	}
	if err != nil {
		fmt.Printf("Error reading message: %v\n", err)
		os.Exit(1)
	}

	log := logger.Init(logger.Options{Level: "debug", Format: "text"})
	norm := parser.Normalize(raw)

	fmt.Printf("Class:          %s\n", parser.Classify(string(raw)))
	fmt.Printf("Text chars:     %d\n", len(norm.Text))
	if id, ok := parser.ForwardedAccountID(norm.Decoded); ok {
		fmt.Printf("Forwarded ID:   %d\n", id)
	}

	p, err := parser.NewEngine(log).Extract(raw)
	if err != nil {
		fmt.Printf("\nExtraction failed: %v\n", err)
		fmt.Println("\nNormalized text:")
		fmt.Println("----------------")
		fmt.Println(norm.Text)
		os.Exit(1)
	}

	fmt.Printf("Payer:          %s  [%s]\n", p.PayerName, p.NameRule)
	fmt.Printf("Amount:         %s  [%s]\n", p.Amount.BRL(), p.AmountRule)
	if p.OccurredAt != "" {
		fmt.Printf("Occurred at:    %s\n", p.OccurredAt)
	}
}
