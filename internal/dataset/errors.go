package dataset

import "errors"

var (
	ErrNoDocuments   = errors.New("dataset contains no documents")
	ErrInvalidRecord = errors.New("invalid dataset record")
)
