// Command terrastl converts a district boundary dataset plus a GeoTIFF
// DEM into one 3D-printable STL per district.
//
//	terrastl [OPTIONS] <districts file> <dem file>
//
// Per-district failures (no raster overlap, degenerate geometry, write
// errors) are logged and skipped; only unreadable inputs abort the run
// with a non-zero exit code.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	terrastl "github.com/geoforms/terrastl"
	"github.com/geoforms/terrastl/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "terrastl:", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg terrastl.Config
	flag.StringVar(&cfg.OutputDir, "o", terrastl.DefaultOutputDir, "output folder for STL files")
	flag.StringVar(&cfg.OutputDir, "output", terrastl.DefaultOutputDir, "output folder for STL files")
	flag.Float64Var(&cfg.Exaggeration, "e", terrastl.DefaultExaggeration, "vertical exaggeration factor")
	flag.Float64Var(&cfg.Exaggeration, "exaggeration", terrastl.DefaultExaggeration, "vertical exaggeration factor")
	flag.Float64Var(&cfg.TargetSizeMM, "s", terrastl.DefaultTargetSizeMM, "target size in mm for the longest side of the combined extent")
	flag.Float64Var(&cfg.TargetSizeMM, "scale", terrastl.DefaultTargetSizeMM, "target size in mm for the longest side of the combined extent")
	flag.IntVar(&cfg.TargetEPSG, "c", 0, "EPSG code to reproject DEM and districts to (optional)")
	flag.IntVar(&cfg.TargetEPSG, "epsg", 0, "EPSG code to reproject DEM and districts to (optional)")
	flag.BoolVar(&cfg.ASCII, "ascii", false, "write ASCII STL instead of binary")
	flag.BoolVar(&cfg.Preview, "preview", false, "render a PNG preview next to every STL")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s [OPTIONS] <districts file> <dem file>:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	switch flag.NArg() {
	case 2:
	case 0, 1:
		flag.Usage()
		return errors.New("need a districts file and a dem file")
	default:
		flag.Usage()
		return fmt.Errorf("unrecognised extra arguments %v", flag.Args()[2:])
	}
	cfg.DistrictsPath = flag.Arg(0)
	cfg.DEMPath = flag.Arg(1)
	// The flag default is non-zero, so a zero here is an explicit
	// -e 0 and must not fall back to the default inside Run.
	if cfg.Exaggeration <= 0 {
		return fmt.Errorf("exaggeration must be positive, got %v", cfg.Exaggeration)
	}
	if cfg.TargetSizeMM <= 0 {
		return fmt.Errorf("scale must be positive, got %v", cfg.TargetSizeMM)
	}

	log := logging.NewFromEnv()
	results, err := terrastl.Run(cfg, log)
	if err != nil {
		return err
	}
	for _, res := range results {
		if res.Err == nil {
			fmt.Println(res.Path)
		}
	}
	return nil
}
