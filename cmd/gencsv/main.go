// Command gencsv writes synthetic "uuid,visibility_level" CSV fixtures for
// exercising the lookup engine's Index variants at scale.
package main

import (
	"bufio"
	crand "crypto/rand"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"os"

	"github.com/mwangi/occlusion/id"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "gencsv:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("gencsv", flag.ContinueOnError)
	output := fs.String("output", "-", "output file path, or - for stdout")
	seed := fs.Uint64("seed", 0, "random seed for reproducible output (0 picks a random seed)")
	skewed := fs.Bool("skewed", false, "use an 80%-at-level-0 distribution instead of uniform")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() != 2 {
		return fmt.Errorf("usage: gencsv [flags] ROWS LEVELS")
	}
	rows, err := parsePositiveInt(fs.Arg(0), "ROWS")
	if err != nil {
		return err
	}
	levels, err := parsePositiveInt(fs.Arg(1), "LEVELS")
	if err != nil {
		return err
	}
	if levels < 1 || levels > 256 {
		return fmt.Errorf("LEVELS must be between 1 and 256, got %d", levels)
	}

	s := *seed
	if s == 0 {
		s = randomSeed()
	}
	rng := rand.New(rand.NewPCG(s, s))

	w := stdout
	if *output != "-" {
		f, err := os.Create(*output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", *output, err)
		}
		defer f.Close()
		w = f
	}

	return generate(bufio.NewWriter(w), rng, rows, levels, *skewed)
}

// rngReader adapts a math/rand/v2 source to an io.Reader so UUIDs can be
// drawn from it via [id.NewUUIDFromReader], keeping a single seeded stream
// for both UUID and visibility-level generation.
type rngReader struct{ rng *rand.Rand }

func (r rngReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(r.rng.IntN(256))
	}
	return len(p), nil
}

func generate(w *bufio.Writer, rng *rand.Rand, rows, levels int, skewed bool) error {
	defer w.Flush()

	if _, err := fmt.Fprintln(w, "uuid,visibility_level"); err != nil {
		return err
	}

	src := rngReader{rng: rng}
	for i := 0; i < rows; i++ {
		u, err := id.NewUUIDFromReader(src)
		if err != nil {
			return err
		}
		level := pickLevel(rng, levels, skewed)
		if _, err := fmt.Fprintf(w, "%s,%d\n", u.String(), level); err != nil {
			return err
		}
	}
	return w.Flush()
}

func pickLevel(rng *rand.Rand, levels int, skewed bool) uint8 {
	if !skewed {
		return uint8(rng.IntN(levels))
	}
	if rng.Float32() < 0.8 {
		return 0
	}
	if levels > 1 {
		return uint8(1 + rng.IntN(levels-1))
	}
	return 0
}

func parsePositiveInt(s, name string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", name, s)
	}
	return n, nil
}

func randomSeed() uint64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		panic(err)
	}
	return binary.LittleEndian.Uint64(b[:])
}
