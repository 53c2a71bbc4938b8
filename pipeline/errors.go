package pipeline

import (
	"fmt"
	"strings"

	"github.com/vegasq/calcrule/formula"
)

// PipelineError wraps the first failure of a run with the rule that caused
// it. The underlying formula error is available through errors.As.
type PipelineError struct {
	Rule string
	Row  int              // failing row index, -1 when not a per-row failure
	Key  formula.GroupKey // failing group key, nil when not a per-group failure
	Err  error
}

// Error names the rule once, whether or not the wrapped error already does
func (e *PipelineError) Error() string {
	prefix := fmt.Sprintf("rule %q: ", e.Rule)
	msg := e.Err.Error()
	if strings.HasPrefix(msg, prefix) {
		return msg
	}
	return prefix + msg
}

func (e *PipelineError) Unwrap() error { return e.Err }
