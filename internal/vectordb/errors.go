package vectordb

import "errors"

var (
	ErrEmptyIndex  = errors.New("no data loaded in the vector database")
	ErrEmptyCorpus = errors.New("no records to index")
)
