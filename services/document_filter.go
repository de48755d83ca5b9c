package services

import (
	"reflect"

	"document-query-platform/models"
)

// DocumentFilter narrows candidate chunk sets through a chain of AND-ed
// predicates derived from a filter spec. All methods are pure: input slices
// are never mutated and relative order is preserved.
type DocumentFilter struct{}

// Apply returns the chunks for which every predicate in the spec passes.
// An empty or nil spec is the identity filter.
func (f DocumentFilter) Apply(chunks []models.DocumentChunk, spec models.FilterSpec) []models.DocumentChunk {
	if len(spec) == 0 {
		return chunks
	}

	filtered := make([]models.DocumentChunk, 0, len(chunks))
	for _, chunk := range chunks {
		if f.Match(chunk, spec) {
			filtered = append(filtered, chunk)
		}
	}
	return filtered
}

// Match evaluates every key of the spec against one chunk. Keys the chunk's
// metadata does not carry are not checked.
func (f DocumentFilter) Match(chunk models.DocumentChunk, spec models.FilterSpec) bool {
	for key, value := range spec {
		if key == "date_range" {
			if dateRange, ok := value.(map[string]any); ok {
				if !matchDateRange(chunk, dateRange) {
					return false
				}
				continue
			}
		}
		if key == "relevance_threshold" {
			if threshold, ok := asFloat(value); ok {
				if chunk.SimilarityScore < threshold {
					return false
				}
				continue
			}
		}
		if key == "document_ids" {
			if ids, ok := asList(value); ok {
				if !containsValue(ids, chunk.DocID()) {
					return false
				}
				continue
			}
		}
		if metaValue, ok := chunk.Metadata[key]; ok {
			if !matchMetadataValue(metaValue, value) {
				return false
			}
		}
	}
	return true
}

// matchDateRange compares the chunk's document date lexicographically
// against the range bounds. A chunk without a date passes vacuously.
func matchDateRange(chunk models.DocumentChunk, dateRange map[string]any) bool {
	docDate, ok := chunk.MetaString(models.MetaDocumentDate)
	if !ok || docDate == "" {
		return true
	}

	if start, ok := dateRange["start"].(string); ok && start != "" && docDate < start {
		return false
	}
	if end, ok := dateRange["end"].(string); ok && end != "" && docDate > end {
		return false
	}
	return true
}

// matchMetadataValue checks a metadata value against a filter value: list
// filters require membership, scalar filters require equality.
func matchMetadataValue(metaValue, filterValue any) bool {
	if list, ok := asList(filterValue); ok {
		return containsValue(list, metaValue)
	}
	return valuesEqual(metaValue, filterValue)
}

func containsValue(list []any, value any) bool {
	for _, item := range list {
		if valuesEqual(item, value) {
			return true
		}
	}
	return false
}

// valuesEqual compares two values the way JSON equality would: numbers
// compare by value regardless of their Go type, everything else by deep
// equality.
func valuesEqual(a, b any) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func asList(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		list := make([]any, len(v))
		for i, s := range v {
			list[i] = s
		}
		return list, true
	}
	return nil, false
}
