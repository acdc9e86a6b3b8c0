package commands

import (
	"fmt"
	"strings"
)

const (
	ruleHeavy = "═══════════════════════════════════════════════════════════"
	ruleLight = "───────────────────────────────────────────────────────────"
)

// printHeader prints a boxed command banner with aligned key/value lines
func printHeader(title string, fields ...[2]string) {
	fmt.Println()
	fmt.Println(ruleHeavy)
	fmt.Printf("  %s\n", title)
	if len(fields) > 0 {
		fmt.Println(ruleLight)
		width := 0
		for _, f := range fields {
			width = max(width, len(f[0]))
		}
		for _, f := range fields {
			fmt.Printf("  %s : %s\n", f[0]+strings.Repeat(" ", width-len(f[0])), f[1])
		}
	}
	fmt.Println(ruleHeavy)
}

// printSection prints a section title under a light rule
func printSection(title string) {
	fmt.Println()
	fmt.Println(ruleLight)
	fmt.Printf("  %s\n", title)
	fmt.Println(ruleLight)
}
