package summarize

import "github.com/precis-labs/precis/internal/domain"

// The provider contracts consumed here are the canonical domain ones,
// so the transport implements a single set of interfaces.
type (
	Completer       = domain.Completer
	StreamCompleter = domain.StreamCompleter
)
