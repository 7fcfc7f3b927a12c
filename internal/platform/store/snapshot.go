package store

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	dd "dice-drop-bot/internal/domain/dice"
)

// ExportFile writes the document as indented JSON. Paths ending in .zst are zstd-compressed.
func ExportFile(path string, doc *dd.Document) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return Export(f, doc, strings.HasSuffix(path, ".zst"))
}

// Export writes the document to w, optionally through a zstd encoder.
func Export(w io.Writer, doc *dd.Document, compress bool) error {
	data, err := Encode(doc, true)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if !compress {
		_, err = w.Write(data)
		return err
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)
	if _, err := bw.Write(data); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// ImportFile reads a document written by ExportFile or by the file backend.
func ImportFile(path string) (*dd.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		r = dec
	}
	data, err := io.ReadAll(bufio.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Decode(data)
}
