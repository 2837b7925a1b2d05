// Command ngsi-contractgen writes explicit entity contracts for the tagged
// structs of a package, so the contract store never needs tag discovery at
// run time.
//
// Usage:
//
//	ngsi-contractgen [-dir .] [-output ngsi_contracts_gen.go] [-types Room,Sensor] [-func RegisterContracts]
//
// Typical use is a go:generate line next to the entity types:
//
//	//go:generate go run github.com/ngsi-go/ngsi/cmd/ngsi-contractgen -types Room
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/tools/imports"
)

func main() {
	dir := flag.String("dir", ".", "Package directory to scan")
	output := flag.String("output", "ngsi_contracts_gen.go", "Output file name, relative to -dir")
	types := flag.String("types", "", "Comma separated struct names (default: every struct with id and type members)")
	funcName := flag.String("func", "RegisterContracts", "Name of the generated registration function")
	flag.Parse()

	if err := run(*dir, *output, *types, *funcName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(dir, output, types, funcName string) error {
	var only []string
	for _, name := range strings.Split(types, ",") {
		if name = strings.TrimSpace(name); name != "" {
			only = append(only, name)
		}
	}

	pkg, err := ParseDir(dir, output, only)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", dir, err)
	}
	code, err := Generate(pkg, funcName)
	if err != nil {
		return err
	}

	outPath := filepath.Join(dir, output)
	if err := writeFormatted(outPath, code); err != nil {
		return err
	}
	fmt.Printf("  generated %s (%d types)\n", outPath, len(pkg.Entities))
	return nil
}

func writeFormatted(path string, code string) error {
	formatted, err := imports.Process(path, []byte(code), nil)
	if err != nil {
		// Write unformatted so the generator output can be inspected.
		_ = os.WriteFile(path+".broken", []byte(code), 0o644)
		return fmt.Errorf("goimports %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, formatted, 0o644)
}
