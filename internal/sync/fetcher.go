package sync

import (
	"fmt"

	"netbill.id/panel/pkg/logger"
)

// Fetch result sources.
const (
	SourceBatched  = "batched"
	SourceFallback = "fallback"
)

// Fetcher enumerates a remote collection in full, batching where the
// firmware allows it and falling back to one unbounded query otherwise.
type Fetcher struct {
	logger *logger.Logger
}

func NewFetcher(log *logger.Logger) *Fetcher {
	return &Fetcher{logger: log}
}

// FetchResult carries validated records plus the reasons any were skipped.
type FetchResult struct {
	Records []map[string]string
	Skipped []string
	Source  string
}

// FetchAll pages through command with =offset=/=count=. Not every
// firmware line honors those words; any page error abandons batching for
// a single unbounded run. Records missing requiredKey are skipped with a
// recorded reason, never aborting the fetch — the device is known to
// return partial records under load.
func (f *Fetcher) FetchAll(r Runner, command, requiredKey string, batchSize int) (*FetchResult, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	raw, source, err := f.enumerate(r, command, batchSize)
	if err != nil {
		return nil, err
	}
	f.logger.Info("Remote listing fetched", "command", command, "records", len(raw), "source", source)

	result := &FetchResult{Source: source}
	for i, rec := range raw {
		if len(rec) == 0 {
			result.Skipped = append(result.Skipped, fmt.Sprintf("record %d: not a structured record", i))
			continue
		}
		if rec[requiredKey] == "" {
			result.Skipped = append(result.Skipped, fmt.Sprintf("record %d: missing required field %q", i, requiredKey))
			continue
		}
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

func (f *Fetcher) enumerate(r Runner, command string, batchSize int) ([]map[string]string, string, error) {
	var records []map[string]string
	offset := 0
	for {
		reply, err := r.Run(command,
			fmt.Sprintf("=offset=%d", offset),
			fmt.Sprintf("=count=%d", batchSize))
		if err != nil {
			f.logger.Warn("Batched fetch failed, falling back to unbounded query",
				"command", command, "offset", offset, "error", err.Error())
			return f.unbounded(r, command)
		}
		for _, sen := range reply.Re {
			records = append(records, sen.Map)
		}
		if len(reply.Re) < batchSize {
			return records, SourceBatched, nil
		}
		offset += batchSize
	}
}

func (f *Fetcher) unbounded(r Runner, command string) ([]map[string]string, string, error) {
	reply, err := r.Run(command)
	if err != nil {
		return nil, SourceFallback, Classify(command, err)
	}
	records := make([]map[string]string, 0, len(reply.Re))
	for _, sen := range reply.Re {
		records = append(records, sen.Map)
	}
	return records, SourceFallback, nil
}
