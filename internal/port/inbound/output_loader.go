package inbound

import "context"

// LoadSummary reports the outcome of loading one output artifact.
type LoadSummary struct {
	Key           string
	Lines         int
	Loaded        int
	Placeholders  int
	Malformed     int
	EmptyPayloads int
	WriteFailures int
}

// OutputLoader demultiplexes a bulk job output artifact into result records.
type OutputLoader interface {
	// Load reads the artifact at key and upserts its result records. Bad lines
	// are skipped individually; an error means the artifact itself was unreadable.
	Load(ctx context.Context, key string) (*LoadSummary, error)
}
