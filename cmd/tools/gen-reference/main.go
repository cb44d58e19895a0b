// Command gen-reference writes a tungsten-halogen reference spectrum as a
// wavelength,value CSV suitable for PUT /api/reference.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/banshee-data/spectrum.report/internal/spectro/l4reference"
)

func main() {
	temp := flag.Float64("temp", l4reference.IlluminantATemp, "filament temperature in kelvin")
	step := flag.Float64("step", 1, "wavelength step in nm")
	output := flag.String("o", "", "output path (stdout when empty)")
	flag.Parse()

	ref, err := l4reference.Tungsten(*temp, *step)
	if err != nil {
		log.Fatalf("generate reference: %v", err)
	}

	out := os.Stdout
	if *output != "" {
		fh, err := os.Create(*output)
		if err != nil {
			log.Fatalf("create %s: %v", *output, err)
		}
		defer fh.Close()
		out = fh
	}
	if err := l4reference.WriteReferenceCSV(out, ref); err != nil {
		log.Fatalf("write reference: %v", err)
	}
	if *output != "" {
		log.Printf("✓ Created: %s (%s, %d rows)", *output, ref.Name, ref.Len())
	}
}
