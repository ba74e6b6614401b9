package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"strings"

	"github.com/asticode/go-astikit"
	"github.com/pkg/profile"

	"github.com/nilsable/tsdemux"
)

const (
	ioBufSize = 10 * 1024 * 1024
)

// esOut is one elementary stream's output file: raw access-unit payload
// bytes, concatenated in emission order, nothing else.
type esOut struct {
	name   string
	closer io.Closer
	*bufio.Writer
}

func newESOut(name string) (*esOut, error) {
	f, err := os.Create(name)
	if err != nil {
		return nil, err
	}
	return &esOut{name: name, closer: f, Writer: bufio.NewWriterSize(f, ioBufSize)}, nil
}

func (o *esOut) Close() error {
	if err := o.Flush(); err != nil {
		log.Printf("error flushing %s: %v", o.name, err)
	}
	if err := o.closer.Close(); err != nil {
		return fmt.Errorf("error closing %s: %w", o.name, err)
	}
	return nil
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Split a TS file into one raw elementary-stream file per PID\n")
		fmt.Fprintf(flag.CommandLine.Output(), "%s INPUT_FILE [FLAGS]:\n", os.Args[0])
		flag.PrintDefaults()
	}

	memoryProfiling := flag.Bool("mp", false, "if yes, memory profiling is enabled")
	cpuProfiling := flag.Bool("cp", false, "if yes, cpu profiling is enabled")
	outDir := flag.String("o", "out", "output dir, 'out' by default")
	inputFile := astikit.FlagCmd()
	flag.Parse()

	if *cpuProfiling {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	} else if *memoryProfiling {
		defer profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop()
	}

	infile, err := os.Open(inputFile)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer infile.Close()

	if _, err = os.Stat(*outDir); !os.IsNotExist(err) {
		log.Fatalf("can't write to '%s': already exists", *outDir)
	}
	if err = os.MkdirAll(*outDir, os.ModePerm); err != nil {
		log.Fatalf("%v", err)
	}

	outs := map[uint16]*esOut{}
	defer func() {
		for _, o := range outs {
			if err := o.Close(); err != nil {
				log.Print(err)
			}
		}
	}()

	dmx := tsdemux.NewDemuxer(
		tsdemux.WithAccessUnitSink(func(au tsdemux.AccessUnit) {
			o, ok := outs[au.PID]
			if !ok {
				codec := strings.ReplaceAll(au.Codec.String(), "/", "_")
				name := path.Join(*outDir, fmt.Sprintf("%d.%s.es", au.PID, codec))
				var err error
				if o, err = newESOut(name); err != nil {
					log.Fatalf("%v", err)
				}
				outs[au.PID] = o
			}
			if _, err := o.Write(au.Payload); err != nil {
				log.Fatalf("writing access unit for pid %d: %v", au.PID, err)
			}
		}),
		tsdemux.WithDiagnosticSink(func(ev tsdemux.Diagnostic) {
			if ev.Kind == tsdemux.DiagnosticContinuityLoss {
				log.Print(ev.String())
			}
		}),
	)

	r := bufio.NewReaderSize(infile, ioBufSize)
	packet := make([]byte, tsdemux.PacketSize)
	for {
		if _, err = io.ReadFull(r, packet); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			log.Fatalf("%v", err)
		}

		if err := dmx.Feed(packet); err != nil {
			// Feed already reported the diagnostic; keep going.
			continue
		}
	}

	dmx.Flush()
	log.Printf("done")
}
