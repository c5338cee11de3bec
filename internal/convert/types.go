// Package convert turns sets of vault files into notes through the agent's
// conversion endpoint, one file at a time.
package convert

import (
	"fmt"
	"strings"
	"time"
)

// Format is the output format requested from the agent
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// ParseFormat accepts "markdown"/"md" and "text"/"txt"
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (expected markdown or text)", s)
	}
}

// Extension returns the file extension written for f
func (f Format) Extension() string {
	if f == FormatMarkdown {
		return ".md"
	}
	return ".txt"
}

// Policy decides where converted files are written
type Policy int

const (
	SameLocation    Policy = iota // next to the source file
	DedicatedFolder               // all outputs in one folder
)

func (p Policy) String() string {
	if p == DedicatedFolder {
		return "dedicated-folder"
	}
	return "same-location"
}

// Destination is a Policy plus the folder for DedicatedFolder
type Destination struct {
	Policy Policy
	Folder string
}

// Alongside writes each output next to its source
func Alongside() Destination {
	return Destination{Policy: SameLocation}
}

// InFolder writes every output into folder
func InFolder(folder string) Destination {
	return Destination{Policy: DedicatedFolder, Folder: folder}
}

func (d Destination) String() string {
	if d.Policy == DedicatedFolder {
		return d.Folder
	}
	return d.Policy.String()
}

// Status is the outcome of converting one file
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Result describes one converted (or failed) file. DestinationPath is empty
// when nothing was written.
type Result struct {
	SourcePath      string `json:"source_path" yaml:"source_path"`
	OutputFormat    Format `json:"output_format" yaml:"output_format"`
	DestinationPath string `json:"destination_path,omitempty" yaml:"destination_path,omitempty"`
	Status          Status `json:"status" yaml:"status"`
	ErrorDetail     string `json:"error_detail,omitempty" yaml:"error_detail,omitempty"`
	Bytes           int    `json:"bytes" yaml:"bytes"`
}

// Report is the outcome of a batch, one Result per input in input order
type Report struct {
	ID          string    `json:"id" yaml:"id"`
	Format      Format    `json:"format" yaml:"format"`
	Destination string    `json:"destination" yaml:"destination"`
	StartedAt   time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time `json:"finished_at" yaml:"finished_at"`
	Canceled    bool      `json:"canceled" yaml:"canceled"`
	Succeeded   int       `json:"succeeded" yaml:"succeeded"`
	Failed      int       `json:"failed" yaml:"failed"`
	Results     []Result  `json:"results" yaml:"results"`
}

// Duration is how long the batch ran
func (r Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
	if res.Status == StatusSucceeded {
		r.Succeeded++
	} else {
		r.Failed++
	}
}
