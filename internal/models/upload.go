package models

import "io"

// IncomingFile is an upload source: a named byte stream with a declared
// length and a client-declared content type. Content is consumed exactly once.
type IncomingFile struct {
	Name        string
	Size        int64
	ContentType string
	Content     io.Reader
}
