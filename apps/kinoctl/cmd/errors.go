package cmd

import (
	"errors"
	"log"
	"os"

	"github.com/quatton/kino/pkg/ksdk"
	"github.com/quatton/kino/pkg/ksdk/kerr"
)

var errInterrupted = errors.New("interrupted")

// exitIfSdkError inspects errors returned from the SDK and emits user-friendly
// guidance before exiting. Non-SDK errors fall back to log.Fatalf.
func exitIfSdkError(err error) {
	if err == nil {
		return
	}
	log.SetFlags(0)
	switch {
	case errors.Is(err, errInterrupted):
		log.Println("interrupted")
		os.Exit(130)
	case kerr.IsAuthentication(err):
		log.Fatalf("authentication required: run 'kinoctl auth login' (%v)", err)
	case kerr.IsNetwork(err):
		log.Fatalf("render service unreachable, check --base-url or run 'kinoctl health' (%v)", err)
	case kerr.IsNotFound(err):
		log.Fatalf("not found: %v", err)
	case errors.Is(err, ksdk.ErrJobSuperseded):
		log.Fatalf("render was replaced by a newer request")
	default:
		log.Fatalf("%v", err)
	}
}
