// Command adter-transcode encodes and decodes ADTER event streams from the
// command line.
//
// Usage:
//
//	adter-transcode enc [options] <frames-dir> <output.adter>   PNG frames → ADTER stream
//	adter-transcode dec [options] <input.adter> <frames-dir>    ADTER stream → PNG frames
//	adter-transcode info <input.adter>                          Display stream metadata
package main

import (
	"context"
	"fmt"
	"flag"
	"image"
	"image/color"
	"image/png"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/adter/adter"
	"github.com/adter/adter/internal/container"
	"github.com/adter/adter/internal/framer"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "enc":
		err = runEnc(os.Args[2:])
	case "dec":
		err = runDec(os.Args[2:])
	case "info":
		err = runInfo(os.Args[2:])
	case "-h", "-help", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "adter-transcode: unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "adter-transcode: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage:
  adter-transcode enc [options] <frames-dir> <output.adter>   Encode a PNG frame sequence
  adter-transcode dec [options] <input.adter> <frames-dir>    Decode to a PNG frame sequence
  adter-transcode info <input.adter>                          Display stream metadata

Frames are read from/written to <frames-dir> as frame-00000.png, frame-00001.png, ...

Run "adter-transcode <command> -h" for command-specific options.
`)
}

// --- enc ---

func runEnc(args []string) error {
	fs := flag.NewFlagSet("enc", flag.ContinueOnError)
	tps := fs.Uint("tps", 1_000_000, "ticks per second")
	refInterval := fs.Uint("ref_interval", 5_000, "nominal frame period, in ticks")
	deltaTMax := fs.Uint("delta_t_max", 0, "max speculative integration time, in ticks (0=CRF default)")
	crf := fs.Int("crf", 4, "quality 0 (highest) - 9 (lowest)")
	chunkRows := fs.Int("chunk_rows", 0, "row-band size for parallel dispatch (0=whole plane)")
	compressed := fs.Bool("compressed", false, "write the tiled, arithmetic-coded format instead of raw")
	progressEvery := fs.Int("progress_every", 30, "log one line every N frames when stdout isn't a terminal")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("enc: missing <frames-dir> <output.adter>\nUsage: adter-transcode enc [options] <frames-dir> <output.adter>")
	}
	framesDir, outputPath := fs.Arg(0), fs.Arg(1)

	paths, err := sortedPNGs(framesDir)
	if err != nil {
		return fmt.Errorf("enc: %w", err)
	}
	if len(paths) == 0 {
		return fmt.Errorf("enc: no PNG frames found in %s", framesDir)
	}

	width, height, channels, err := probeDimensions(paths[0])
	if err != nil {
		return fmt.Errorf("enc: %w", err)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer out.Close()

	opts := adter.DefaultEncoderOptions(width, height, channels)
	opts.TPS = uint32(*tps)
	opts.RefInterval = uint32(*refInterval)
	opts.DeltaTMax = uint32(*deltaTMax)
	opts.CRF = *crf
	opts.ChunkRows = *chunkRows
	opts.Compressed = *compressed

	enc, err := adter.NewEncoder(out, opts)
	if err != nil {
		return fmt.Errorf("enc: %w", err)
	}

	ctx := context.Background()
	matrix := make([]float64, width*height*channels)
	timeSpanned := float64(opts.RefInterval) // each frame spans one nominal frame period, in ticks
	bar := newProgress(len(paths))

	for i, p := range paths {
		if err := fillMatrix(p, matrix, width, height, channels); err != nil {
			return fmt.Errorf("enc: frame %d: %w", i, err)
		}
		if err := enc.IngestFrame(ctx, matrix, timeSpanned); err != nil {
			return fmt.Errorf("enc: frame %d: %w", i, err)
		}
		bar.step(i+1, *progressEvery)
	}
	bar.done()

	if err := enc.Close(); err != nil {
		return fmt.Errorf("enc: %w", err)
	}
	fi, _ := out.Stat()
	fmt.Fprintf(os.Stderr, "Encoded %d frames -> %s (%d bytes)\n", len(paths), outputPath, fi.Size())
	return nil
}

func sortedPNGs(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".png") {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

func probeDimensions(path string) (width, height, channels int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, 0, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, 0, err
	}
	return cfg.Width, cfg.Height, 1, nil
}

// fillMatrix decodes the PNG at path into matrix as row-major grayscale
// intensity, one channel. Non-grayscale sources are flattened via
// color.GrayModel.
func fillMatrix(path string, matrix []float64, width, height, channels int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return err
	}
	b := img.Bounds()
	if b.Dx() != width || b.Dy() != height {
		return fmt.Errorf("frame size %dx%d, want %dx%d", b.Dx(), b.Dy(), width, height)
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			gr := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			matrix[(y*width+x)*channels] = float64(gr.Y)
		}
	}
	return nil
}

// --- dec ---

func runDec(args []string) error {
	fs := flag.NewFlagSet("dec", flag.ContinueOnError)
	fps := fs.Float64("fps", 30, "reconstructed frame rate")
	outWidth := fs.Int("out_width", 0, "resample output frames to this width (0=native)")
	outHeight := fs.Int("out_height", 0, "resample output frames to this height (0=native)")
	progressEvery := fs.Int("progress_every", 30, "log one line every N frames when stdout isn't a terminal")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("dec: missing <input.adter> <frames-dir>\nUsage: adter-transcode dec [options] <input.adter> <frames-dir>")
	}
	inputPath, framesDir := fs.Arg(0), fs.Arg(1)

	in, err := os.Open(inputPath)
	if err != nil {
		return err
	}
	defer in.Close()

	h, err := readHeader(in)
	if err != nil {
		return fmt.Errorf("dec: %w", err)
	}
	if _, err := in.Seek(0, 0); err != nil {
		return fmt.Errorf("dec: %w", err)
	}

	dec, err := adter.NewDecoder[uint8](in, adter.DefaultDecoderOptions(*fps, adter.Continuous),
		func(v float64) uint8 {
			if v < 0 {
				return 0
			}
			if v > 255 {
				return 255
			}
			return uint8(v)
		},
		func(v uint8) float64 { return float64(v) })
	if err != nil {
		return fmt.Errorf("dec: %w", err)
	}

	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		return fmt.Errorf("dec: %w", err)
	}

	ow, oh := *outWidth, *outHeight
	if ow <= 0 {
		ow = int(h.Width)
	}
	if oh <= 0 {
		oh = int(h.Height)
	}

	bar := newProgress(0)
	frames := 0
	for {
		frame, err := dec.ReadFrame()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("dec: %w", err)
		}
		img, err := framer.ExportScaled(frame, int(h.Width), int(h.Height), int(h.Channels),
			func(v uint8) float64 { return float64(v) }, ow, oh)
		if err != nil {
			return fmt.Errorf("dec: frame %d: %w", frames, err)
		}
		if err := writeFramePNG(framesDir, frames, img); err != nil {
			return fmt.Errorf("dec: frame %d: %w", frames, err)
		}
		frames++
		bar.step(frames, *progressEvery)
	}
	bar.done()

	fmt.Fprintf(os.Stderr, "Decoded %s -> %s (%d frames)\n", inputPath, framesDir, frames)
	return nil
}

func writeFramePNG(dir string, index int, img *image.Gray) error {
	out, err := os.Create(filepath.Join(dir, fmt.Sprintf("frame-%05d.png", index)))
	if err != nil {
		return err
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// --- info ---

func runInfo(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("info: missing input file\nUsage: adter-transcode info <input.adter>")
	}
	inputPath := args[0]

	in, err := os.Open(inputPath)
	if err != nil {
		return err
	}
	defer in.Close()

	h, err := readHeader(in)
	if err != nil {
		return fmt.Errorf("info: %w", err)
	}

	format := "raw"
	if h.Compressed {
		format = "compressed"
	}

	fmt.Printf("File:         %s\n", inputPath)
	fmt.Printf("Format:       %s (version %d)\n", format, h.Version)
	fmt.Printf("Dimensions:   %d x %d, %d channel(s)\n", h.Width, h.Height, h.Channels)
	fmt.Printf("TPS:          %d\n", h.TPS)
	fmt.Printf("RefInterval:  %d\n", h.RefInterval)
	fmt.Printf("DeltaTMax:    %d\n", h.DeltaTMax)
	fmt.Printf("TimeMode:     %s\n", h.TimeMode)
	fmt.Printf("SourceCamera: %s\n", h.SourceCamera)

	fi, err := os.Stat(inputPath)
	if err == nil {
		fmt.Printf("File size:    %d bytes\n", fi.Size())
	}
	return nil
}

func readHeader(r *os.File) (container.Header, error) {
	head := make([]byte, 64)
	n, err := io.ReadFull(r, head)
	if err != nil && n == 0 {
		return container.Header{}, err
	}
	h, _, err := container.Read(head[:n])
	return h, err
}

// progress renders a carriage-return progress line when stdout is a
// terminal (via term.IsTerminal), otherwise logs one line every N frames.
type progress struct {
	total      int
	isTerminal bool
	start      time.Time
}

func newProgress(total int) *progress {
	return &progress{
		total:      total,
		isTerminal: term.IsTerminal(int(os.Stdout.Fd())),
		start:      time.Now(),
	}
}

func (p *progress) step(n, every int) {
	if p.isTerminal {
		if p.total > 0 {
			fmt.Fprintf(os.Stderr, "\rframe %d/%d", n, p.total)
		} else {
			fmt.Fprintf(os.Stderr, "\rframe %d", n)
		}
		return
	}
	if every <= 0 {
		every = 1
	}
	if n%every == 0 {
		fmt.Fprintf(os.Stderr, "frame %d (%s elapsed)\n", n, time.Since(p.start).Round(time.Second))
	}
}

func (p *progress) done() {
	if p.isTerminal {
		fmt.Fprintln(os.Stderr)
	}
}
