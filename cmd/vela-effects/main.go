// Command vela-effects inspects effect metadata: it decodes persisted
// 32-bit effect words and single-byte override declarations into readable
// form, encodes a guarantee list back into a word, and dumps cache
// snapshot files.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/vela-lang/vela/internal/effects"
	"github.com/vela-lang/vela/internal/metacache"
)

func main() {
	var (
		decodeWord   string
		decodeByte   string
		encodeFlags  string
		snapshotPath string
	)

	flag.StringVar(&decodeWord, "decode", "", "decode a 32-bit effects word (decimal or 0x hex)")
	flag.StringVar(&decodeByte, "decode-override", "", "decode a single-byte override (decimal or 0x hex)")
	flag.StringVar(&encodeFlags, "encode", "", "encode a comma-separated guarantee list into an effects word")
	flag.StringVar(&snapshotPath, "snapshot", "", "print the entries of a cache snapshot file")
	flag.Parse()

	switch {
	case decodeWord != "":
		if err := runDecode(decodeWord); err != nil {
			fatal(err)
		}
	case decodeByte != "":
		if err := runDecodeOverride(decodeByte); err != nil {
			fatal(err)
		}
	case encodeFlags != "":
		if err := runEncode(encodeFlags); err != nil {
			fatal(err)
		}
	case snapshotPath != "":
		if err := runSnapshot(snapshotPath); err != nil {
			fatal(err)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "vela-effects:", err)
	os.Exit(1)
}

func runDecode(arg string) error {
	word, err := strconv.ParseUint(arg, 0, 32)
	if err != nil {
		return fmt.Errorf("effects word %q: %w", arg, err)
	}

	e := effects.DecodeEffects(uint32(word))
	fmt.Printf("word      %#x\n", uint32(word))
	fmt.Printf("summary   %s\n", e)
	fmt.Printf("consistency      %s\n", e.Consistent)
	printFlag("effect_free", e.EffectFree)
	printFlag("nothrow", e.NoThrow)
	printFlag("terminates", e.Terminates)
	printFlag("notaskstate", e.NoTaskState)
	printFlag("noglobal", e.NoGlobal)
	printFlag("nonoverlayed", e.NonOverlayed)
	fmt.Printf("foldable         %v\n", e.IsFoldable())
	fmt.Printf("total            %v\n", e.IsTotal())
	fmt.Printf("removable-unused %v\n", e.IsRemovableIfUnused())

	return nil
}

func printFlag(name string, v bool) {
	fmt.Printf("%-16s %v\n", name, v)
}

func runDecodeOverride(arg string) error {
	b, err := strconv.ParseUint(arg, 0, 8)
	if err != nil {
		return fmt.Errorf("override byte %q: %w", arg, err)
	}

	o := effects.DecodeOverride(uint8(b))
	fmt.Printf("byte     %#x\n", uint8(b))
	fmt.Printf("declared %s\n", o)

	return nil
}

// guaranteeNames maps the accepted tokens of -encode to field setters.
var guaranteeNames = map[string]func(effects.Effects) effects.Effects{
	"effect_free":  func(e effects.Effects) effects.Effects { return e.WithEffectFree(true) },
	"nothrow":      func(e effects.Effects) effects.Effects { return e.WithNoThrow(true) },
	"terminates":   func(e effects.Effects) effects.Effects { return e.WithTerminates(true) },
	"notaskstate":  func(e effects.Effects) effects.Effects { return e.WithNoTaskState(true) },
	"noglobal":     func(e effects.Effects) effects.Effects { return e.WithNoGlobal(true) },
	"nonoverlayed": func(e effects.Effects) effects.Effects { return e.WithNonOverlayed(true) },
}

func runEncode(list string) error {
	e := effects.Arbitrary
	consistency := effects.NotConsistent

	for _, tok := range strings.Split(list, ",") {
		tok = strings.TrimSpace(strings.ToLower(tok))
		if tok == "" {
			continue
		}

		switch tok {
		case "consistent":
			consistency = 0
		case "consistent_if_notreturned":
			consistency = consistency&^effects.NotConsistent | effects.ConsistentIfNotReturned
		case "consistent_if_noglobal":
			consistency = consistency&^effects.NotConsistent | effects.ConsistentIfNoGlobal
		default:
			set, ok := guaranteeNames[tok]
			if !ok {
				return fmt.Errorf("unknown guarantee %q", tok)
			}

			e = set(e)
		}
	}

	e = e.WithConsistent(consistency)
	fmt.Printf("word    %#x\n", e.Encode())
	fmt.Printf("summary %s\n", e)

	return nil
}

func runSnapshot(path string) error {
	cache, err := metacache.Load(path)
	if err != nil {
		return err
	}

	entries := cache.Entries()
	fmt.Printf("%d entries\n", len(entries))

	for _, entry := range entries {
		e := effects.DecodeEffects(entry.Effects)
		fmt.Printf("%-40s %#06x  %s", entry.Method, entry.Effects, e)

		if entry.Source != "" {
			fmt.Printf("  (%s)", entry.Source)
		}

		fmt.Println()
	}

	return nil
}
