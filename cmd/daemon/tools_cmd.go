// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ManuGH/mpdgate/internal/pointer"
	"github.com/ManuGH/mpdgate/internal/pssh"
)

// runDecodeCLI prints the URL hidden in a playback pointer.
func runDecodeCLI(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("mpdgate decode", flag.ContinueOnError)
	fs.SetOutput(stderr)
	secret := fs.String("secret", pointer.DefaultSecret, "pointer secret")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: mpdgate decode [--secret s] <pointer>")
		return 2
	}

	decoded, err := pointer.NewCodec(*secret).Decode(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "decode failed: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, decoded)
	return 0
}

// runEncodeCLI is the inverse of decode, for building test pointers.
func runEncodeCLI(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("mpdgate encode", flag.ContinueOnError)
	fs.SetOutput(stderr)
	secret := fs.String("secret", pointer.DefaultSecret, "pointer secret")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: mpdgate encode [--secret s] <url>")
		return 2
	}

	encoded, err := pointer.Encode(fs.Arg(0), pointer.DeriveKey(*secret))
	if err != nil {
		fmt.Fprintf(stderr, "encode failed: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, encoded)
	return 0
}

// runExtractCLI lists the pssh boxes of an init segment file and prints the
// key id and boxes the resolver would inject. With --box the file must hold a
// single pssh box, which is decoded on its own.
func runExtractCLI(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("mpdgate extract", flag.ContinueOnError)
	fs.SetOutput(stderr)
	single := fs.Bool("box", false, "treat the file as one pssh box")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: mpdgate extract [--box] <init-segment>")
		return 2
	}

	segment, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "read segment: %v\n", err)
		return 1
	}

	if *single {
		b, err := pssh.ParseBox(segment)
		if errors.Is(err, pssh.ErrNotPssh) {
			fmt.Fprintln(stderr, "not a pssh box, run without --box to scan a segment")
			return 1
		}
		if err != nil {
			fmt.Fprintf(stderr, "parse box: %v\n", err)
			return 1
		}
		printBox(stdout, 1, b)
		return 0
	}

	for i, b := range pssh.FindBoxes(segment) {
		printBox(stdout, i+1, b)
	}
	drm, err := pssh.Extract(segment)
	if err != nil {
		fmt.Fprintf(stderr, "extract failed: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "kid: %s\n", drm.KID)
	fmt.Fprintf(stdout, "widevine: %s\n", drm.WidevineBase64())
	if pr := drm.PlayReadyBase64(); pr != "" {
		fmt.Fprintf(stdout, "playready: %s\n", pr)
	}
	return 0
}

func printBox(w io.Writer, n int, b *pssh.Box) {
	fmt.Fprintf(w, "box %d: %s v%d size=%d data=%d", n, b.SystemName(), b.Version, b.Size, len(b.Data))
	for _, kid := range b.KeyIDs {
		fmt.Fprintf(w, " kid=%s", pssh.FormatKID(kid))
	}
	fmt.Fprintln(w)
}
