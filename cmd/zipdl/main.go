// Command zipdl fetches a manifest directly from an s3:// location and
// streams the resulting ZIP archive to a local file or to stdout, without
// running the HTTP gateway. Useful for operators debugging a manifest or
// an archive's layout in isolation.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/gaby/zipstream/internal/rangeio"
	"github.com/gaby/zipstream/internal/s3url"
	"github.com/gaby/zipstream/internal/upstream"
	"github.com/gaby/zipstream/internal/ziplayout"
)

func main() {
	var manifestPath, outputPath string
	flag.StringVar(&manifestPath, "manifest", "", "s3:// location of the manifest JSON (required)")
	flag.StringVar(&outputPath, "output", "", "output file path; defaults to stdout")
	flag.Parse()

	if manifestPath == "" {
		log.Fatal("zipdl: -manifest is required")
	}

	ctx := context.Background()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("zipdl: aws config: %v", err)
	}
	s3Client := s3.NewFromConfig(awsCfg)

	loc, err := s3url.Parse(manifestPath)
	if err != nil {
		log.Fatalf("zipdl: %v", err)
	}

	raw, err := fetchManifest(ctx, s3Client, loc)
	if err != nil {
		log.Fatalf("zipdl: fetching manifest: %v", err)
	}

	filename, etag, entries, err := upstream.Decode(raw, s3Client)
	if err != nil {
		log.Fatalf("zipdl: decoding manifest: %v", err)
	}

	archive := ziplayout.Build(entries, ziplayout.Options{})
	log.Printf("zipdl: streaming %s (etag %s): %d entries, %d bytes", filename, etag, len(entries), archive.Len())

	out := os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			log.Fatalf("zipdl: creating %s: %v", outputPath, err)
		}
		defer f.Close()
		out = f
	}

	rc, err := archive.Open(ctx, rangeio.Range{Start: 0, End: archive.Len()})
	if err != nil {
		log.Fatalf("zipdl: opening archive stream: %v", err)
	}
	defer rc.Close()

	written, err := io.Copy(out, rc)
	if err != nil {
		log.Fatalf("zipdl: writing archive: %v", err)
	}
	fmt.Fprintf(os.Stderr, "\n%d / %d bytes written\n", written, archive.Len())
}

func fetchManifest(ctx context.Context, client *s3.Client, loc s3url.URL) ([]byte, error) {
	out, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: &loc.Bucket, Key: &loc.Key})
	if err != nil {
		return nil, fmt.Errorf("GetObject %s: %w", loc, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}
