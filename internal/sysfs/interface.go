package sysfs

// Reader reads the text value of a control attribute.
type Reader interface {
	Read(path string) (string, error)
}

// Writer writes a text value to a control attribute.
type Writer interface {
	Write(path, value string) error
}

// ReadWriter is the full attribute I/O surface. Implementations never
// retry; callers decide what a failure means.
type ReadWriter interface {
	Reader
	Writer
}
