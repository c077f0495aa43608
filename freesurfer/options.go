package freesurfer

import (
	"fmt"
	"time"
)

// WriteOption configures encoder behavior.
type WriteOption func(*writeOptions)

type writeOptions struct {
	creator   string
	faceCount int
}

func defaultWriteOptions() *writeOptions {
	return &writeOptions{
		creator: "go-freesurfer",
	}
}

func applyWriteOptions(opts []WriteOption) *writeOptions {
	o := defaultWriteOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithCreator sets the name stamped into the creation line of triangle
// surface files whose Surface.CreatedBy is empty.
func WithCreator(name string) WriteOption {
	return func(o *writeOptions) {
		if name != "" {
			o.creator = name
		}
	}
}

// WithFaceCount sets the face count recorded in curv headers. The field is
// informational, readers ignore it, and it defaults to 0.
func WithFaceCount(n int) WriteOption {
	return func(o *writeOptions) {
		if n >= 0 {
			o.faceCount = n
		}
	}
}

// creationLine builds the free-text header line of a triangle surface file
// in the style the original tools stamp, e.g.
// "created by fred on Thu Aug 20 10:15:00 2026".
func (o *writeOptions) creationLine() string {
	return fmt.Sprintf("created by %s on %s", o.creator, time.Now().Format(time.ANSIC))
}
