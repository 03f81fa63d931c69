package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
)

// Turns the RFC 7541 Appendix A listing (index;name;value per line) into
// the array literal entries used by internal/hpack/static.go.
func main() {
	var path = flag.String("content", "", "File with one 'index;name;value' line per entry")
	flag.Parse()

	if *path == "" {
		panic("The file path is required")
	}

	f, err := os.Open(*path)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.SplitN(line, ";", 3)
		if len(parts) < 2 {
			log.Fatalf("malformed line: %q", line)
		}
		value := ""
		if len(parts) == 3 {
			value = strings.TrimSpace(parts[2])
		}

		fmt.Printf("%s: {%q, %q},\n", strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), value)
	}

	if err := scanner.Err(); err != nil {
		log.Fatal(err)
	}
}
