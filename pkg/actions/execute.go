package actions

import (
	"context"

	"github.com/go-go-golems/scout/pkg/llm"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Result pairs a tool call with what its action produced. Err is an
// *ExecutionError when the action failed; Output is then error-tagged.
type Result struct {
	Call   llm.ToolCall
	Output Output
	Err    error
}

func (r *Registry) executeOne(ctx context.Context, call llm.ToolCall, ec ExecContext) (res Result) {
	res.Call = call
	fail := func(err error) Result {
		execErr := &ExecutionError{Action: call.Name, CallID: call.ID, Err: err}
		log.Warn().Err(execErr).Msg("action failed")
		return Result{Call: call, Output: Failed(execErr), Err: execErr}
	}
	defer func() {
		if p := recover(); p != nil {
			res = fail(errors.Errorf("panic: %v", p))
		}
	}()

	d, ok := r.Get(call.Name)
	if !ok {
		return fail(errors.New("unknown action"))
	}
	ec.CallID = call.ID
	out, err := d.Execute(ctx, call.Arguments, ec)
	if err != nil {
		return fail(err)
	}
	res.Output = out
	return res
}

// ExecuteAll runs every call concurrently and joins on all of them. A failing
// call never cancels its siblings. Results keep the order of calls.
func (r *Registry) ExecuteAll(ctx context.Context, calls []llm.ToolCall, ec ExecContext) []Result {
	results := make([]Result, len(calls))
	var g errgroup.Group
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i] = r.executeOne(ctx, call, ec)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
