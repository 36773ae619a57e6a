package oracle

import (
	"errors"

	"github.com/abhisek/parley/internal/extract"
	"github.com/abhisek/parley/internal/llm"
)

// Failure reasons reported by Reason. They label fallbacks in logs,
// metrics and the fallback ledger.
const (
	ReasonTimeout     = "timeout"
	ReasonTransport   = "transport"
	ReasonBlocked     = "blocked"
	ReasonNoStructure = "no_structure"
	ReasonMalformed   = "malformed"
	ReasonSchema      = "schema"
	ReasonOther       = "other"
)

// Reason classifies an oracle error into a short label.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	switch kind := llm.KindOf(err); {
	case kind == llm.KindTimeout:
		return ReasonTimeout
	case kind == llm.KindBlocked:
		return ReasonBlocked
	case kind.NoReply():
		return ReasonTransport
	case errors.Is(err, extract.ErrNoStructureFound):
		return ReasonNoStructure
	case errors.Is(err, extract.ErrMalformedStructure):
		return ReasonMalformed
	case kind == llm.KindInvalid:
		return ReasonSchema
	}
	return ReasonOther
}
