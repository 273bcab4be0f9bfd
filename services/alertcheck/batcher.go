package alertcheck

import "stockwatch_backend/models"

// InstrumentBatch groups pending alerts by instrument so each distinct
// (market, ticker) is priced at most once per run. Keys preserves first-seen
// order for chunking.
type InstrumentBatch struct {
	ByKey map[models.InstrumentKey][]models.Alert
	Keys  []models.InstrumentKey
}

// GroupByInstrument builds the per-instrument grouping for one run.
func GroupByInstrument(alerts []models.Alert) *InstrumentBatch {
	batch := &InstrumentBatch{
		ByKey: make(map[models.InstrumentKey][]models.Alert),
	}
	for _, alert := range alerts {
		key := alert.Key()
		if _, seen := batch.ByKey[key]; !seen {
			batch.Keys = append(batch.Keys, key)
		}
		batch.ByKey[key] = append(batch.ByKey[key], alert)
	}
	return batch
}

// Chunks partitions the distinct instrument keys into fixed-size chunks.
// Each chunk is fetched concurrently; chunks run sequentially to bound
// outbound vendor calls.
func (b *InstrumentBatch) Chunks(size int) [][]models.InstrumentKey {
	if size < 1 {
		size = 1
	}
	var chunks [][]models.InstrumentKey
	for i := 0; i < len(b.Keys); i += size {
		end := i + size
		if end > len(b.Keys) {
			end = len(b.Keys)
		}
		chunks = append(chunks, b.Keys[i:end])
	}
	return chunks
}
