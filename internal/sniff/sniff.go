// Package sniff detects whether an ingested artifact is a model or a dataset
// and which format it carries, from its name and leading bytes.
package sniff

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Kind separates model artifacts from companion datasets.
type Kind int

const (
	KindUnknown Kind = iota
	KindModel
	KindDataset
)

// Result is the outcome of sniffing one file.
type Result struct {
	Kind   Kind
	Format string // e.g. "tflite", "onnx", "csv"
}

// HeadSize is how many leading bytes Detect needs at most.
const HeadSize = 512

// Magic prefixes checked before falling back to the extension.
var (
	magicHDF5    = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}
	magicParquet = []byte("PAR1")
	magicZip     = []byte{'P', 'K', 0x03, 0x04}
)

var extFormats = map[string]Result{
	".tflite":  {KindModel, "tflite"},
	".onnx":    {KindModel, "onnx"},
	".pb":      {KindModel, "saved_model"},
	".h5":      {KindModel, "hdf5"},
	".keras":   {KindModel, "keras"},
	".pt":      {KindModel, "pytorch"},
	".pth":     {KindModel, "pytorch"},
	".pkl":     {KindModel, "pickle"},
	".csv":     {KindDataset, "csv"},
	".tsv":     {KindDataset, "csv"},
	".json":    {KindDataset, "json"},
	".jsonl":   {KindDataset, "jsonl"},
	".ndjson":  {KindDataset, "jsonl"},
	".parquet": {KindDataset, "parquet"},
}

// Detect classifies a file from its name and up to HeadSize leading bytes.
// Content magic wins over the extension when the two disagree.
func Detect(name string, head []byte) Result {
	byExt := detectByExt(name)

	// TFLite: flatbuffer identifier "TFL3" at offset 4
	if len(head) >= 8 && bytes.Equal(head[4:8], []byte("TFL3")) {
		return Result{KindModel, "tflite"}
	}
	if bytes.HasPrefix(head, magicHDF5) {
		return Result{KindModel, "hdf5"}
	}
	if bytes.HasPrefix(head, magicParquet) {
		return Result{KindDataset, "parquet"}
	}
	if bytes.HasPrefix(head, magicZip) {
		// .keras and torch archives are zip containers; trust the extension
		// for the format tag when it already says model, otherwise unknown.
		if byExt.Kind == KindModel {
			return byExt
		}
		return Result{KindUnknown, ""}
	}

	if byExt.Kind != KindUnknown {
		return byExt
	}

	// Last resort: text that looks like CSV or JSON rows
	if looksTextual(head) {
		trimmed := bytes.TrimLeft(head, " \t\r\n")
		if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
			return Result{KindDataset, "json"}
		}
		if bytes.ContainsRune(firstLine(head), ',') {
			return Result{KindDataset, "csv"}
		}
	}

	return Result{KindUnknown, ""}
}

// IsModelName is the cheap ingestion-time check used before any bytes exist.
func IsModelName(name string) bool {
	return detectByExt(name).Kind == KindModel
}

func detectByExt(name string) Result {
	ext := strings.ToLower(filepath.Ext(name))
	if r, ok := extFormats[ext]; ok {
		return r
	}
	return Result{KindUnknown, ""}
}

func looksTextual(head []byte) bool {
	if len(head) == 0 {
		return false
	}
	for _, b := range head {
		if b == 0 {
			return false
		}
	}
	return true
}

func firstLine(head []byte) []byte {
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		return head[:i]
	}
	return head
}
